//go:build gocv

package render

import (
	"image/color"
	"image/draw"

	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MatRenderer draws with OpenCV.
type MatRenderer struct {
	Color     color.RGBA
	FontScale float64
}

// NewMatRenderer returns a red OpenCV renderer.
func NewMatRenderer() (*MatRenderer, error) {
	return &MatRenderer{
		Color:     color.RGBA{R: 255, A: 255},
		FontScale: 0.5,
	}, nil
}

// RenderMat draws detections directly onto an RGB mat.
func (r *MatRenderer) RenderMat(mat *gocv.Mat, detections []postprocess.Detection) {
	for _, d := range detections {
		box := d.Box.ToRect()
		gocv.Rectangle(mat, box, r.Color, StrokeWidth)
		gocv.PutText(mat, FormatLabel(d), LabelOrigin(box), gocv.FontHersheySimplex, r.FontScale, r.Color, 1)
	}
}

// Render converts dst to a mat, draws, and copies the pixels back.
func (r *MatRenderer) Render(dst draw.Image, detections []postprocess.Detection) error {
	mat, err := gocv.ImageToMatRGB(dst)
	if err != nil {
		return errors.Wrap(err, "failed to convert image to mat")
	}
	defer mat.Close()

	r.RenderMat(&mat, detections)

	out, err := mat.ToImage()
	if err != nil {
		return errors.Wrap(err, "failed to convert mat to image")
	}

	draw.Draw(dst, dst.Bounds(), out, out.Bounds().Min, draw.Src)
	return nil
}
