// Package render - Draws detections onto images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// StrokeWidth is the rectangle outline width in pixels.
const StrokeWidth = 2

// DefaultColor is the outline and label color.
var DefaultColor = color.NRGBA{R: 255, A: 255}

// Renderer draws detections onto an image.
type Renderer interface {
	Render(dst draw.Image, detections []postprocess.Detection) error
}

// FormatLabel returns the overlay text for a detection, e.g. "Door: 87.50%".
func FormatLabel(d postprocess.Detection) string {
	return fmt.Sprintf("%s: %.2f%%", d.Label, d.Confidence*100)
}

// LabelOrigin returns the text baseline for a box. Labels sit 5px above the
// box, or at y=10 when the box top is within 10px of the image edge.
func LabelOrigin(box image.Rectangle) image.Point {
	y := 10
	if box.Min.Y > 10 {
		y = box.Min.Y - 5
	}
	return image.Pt(box.Min.X, y)
}

// Annotate copies img and renders detections onto the copy.
//
// Arguments:
//   - img: The original image. It is not modified.
//   - r: The renderer.
//   - detections: Detections in img pixel coordinates.
//
// Returns:
//   - *image.NRGBA: The annotated copy.
//   - error: The renderer error if any.
func Annotate(img image.Image, r Renderer, detections []postprocess.Detection) (*image.NRGBA, error) {
	dst := imaging.Clone(img)
	if err := r.Render(dst, detections); err != nil {
		return nil, err
	}
	return dst, nil
}
