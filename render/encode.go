package render

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/nvr-ai/go-detect/images"
	"github.com/pkg/errors"
)

// DefaultQuality is the lossy encoding quality used when none is given.
const DefaultQuality = 90

// Encode writes img in the given format.
//
// Arguments:
//   - w: The destination.
//   - img: The image to encode.
//   - format: One of jpeg, png or webp.
//   - quality: Lossy quality in [1, 100]. Values outside use DefaultQuality. Ignored for png.
//
// Returns:
//   - error: images.ErrUnsupportedFormat for other formats, or the encoder error.
func Encode(w io.Writer, img image.Image, format images.ImageFormat, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var err error
	switch format {
	case images.FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case images.FormatPNG:
		err = png.Encode(w, img)
	case images.FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	default:
		return errors.Wrapf(images.ErrUnsupportedFormat, "cannot encode %q", format)
	}
	return errors.Wrapf(err, "failed to encode %s", format)
}
