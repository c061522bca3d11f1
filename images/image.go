// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned when uploaded bytes cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// Image represents an uploaded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"-" yaml:"-"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// Decode decodes image bytes, applying EXIF orientation for JPEGs.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - image.Image: The decoded pixels.
//   - *Image: The upload metadata (format and dimensions after orientation).
//   - error: ErrInvalidImage wrapped with the decoder error.
//
// Example:
//
// ```go
//
//	img, meta, err := images.Decode(body)
//	if err != nil {
//		return err
//	}
//	fmt.Printf("%s %dx%d\n", meta.Format, meta.Width, meta.Height)
//
// ```
func Decode(data []byte) (image.Image, *Image, error) {
	if len(data) == 0 {
		return nil, nil, errors.Wrap(ErrInvalidImage, "empty payload")
	}

	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errors.Wrap(ErrInvalidImage, err.Error())
	}

	format, err := ParseFormat(name)
	if err != nil {
		return nil, nil, errors.Wrap(ErrInvalidImage, err.Error())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, nil, errors.Wrap(ErrInvalidImage, err.Error())
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, nil, errors.Wrap(ErrInvalidImage, "zero-sized image")
	}

	return img, &Image{
		Format: format,
		Data:   data,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// Load reads and decodes an image file.
func Load(path string) (image.Image, *Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read image %s", path)
	}
	img, meta, err := Decode(data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to decode image %s", path)
	}
	return img, meta, nil
}
