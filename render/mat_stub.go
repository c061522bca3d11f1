//go:build !gocv
// +build !gocv

package render

import (
	"image/draw"

	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
)

// ErrGoCVUnavailable is returned when the binary was built without the gocv tag.
var ErrGoCVUnavailable = errors.New("built without gocv support")

// MatRenderer is unavailable without the gocv build tag.
type MatRenderer struct{}

// NewMatRenderer returns ErrGoCVUnavailable.
func NewMatRenderer() (*MatRenderer, error) {
	return nil, ErrGoCVUnavailable
}

// Render returns ErrGoCVUnavailable.
func (r *MatRenderer) Render(draw.Image, []postprocess.Detection) error {
	return ErrGoCVUnavailable
}
