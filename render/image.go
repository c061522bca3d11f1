package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nvr-ai/go-detect/models/postprocess"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageRenderer draws with the standard image/draw package and a bitmap font.
type ImageRenderer struct {
	Color color.Color
	Face  font.Face
}

// NewImageRenderer returns a red renderer using the 7x13 bitmap face.
func NewImageRenderer() *ImageRenderer {
	return &ImageRenderer{
		Color: DefaultColor,
		Face:  basicfont.Face7x13,
	}
}

// Render draws one outline and one label per detection.
func (r *ImageRenderer) Render(dst draw.Image, detections []postprocess.Detection) error {
	src := image.NewUniform(r.Color)

	for _, d := range detections {
		box := d.Box.ToRect()
		strokeRect(dst, box, src)

		drawer := &font.Drawer{
			Dst:  dst,
			Src:  src,
			Face: r.Face,
			Dot:  fixed.P(LabelOrigin(box).X, LabelOrigin(box).Y),
		}
		drawer.DrawString(FormatLabel(d))
	}
	return nil
}

// strokeRect draws the outline of r, StrokeWidth pixels wide, inside r.
func strokeRect(dst draw.Image, r image.Rectangle, src image.Image) {
	w := StrokeWidth
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y),
		image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}
