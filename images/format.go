package images

import (
	"strings"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatBMP is the BMP image format. Decode only.
	FormatBMP ImageFormat = "bmp"
	// FormatGIF is the GIF image format. Decode only, first frame.
	FormatGIF ImageFormat = "gif"
)

// ErrUnsupportedFormat is returned for formats that cannot be decoded or encoded.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ParseFormat normalizes a format name or file extension.
//
// Arguments:
//   - s: A name such as "jpeg", "JPG" or ".webp".
//
// Returns:
//   - ImageFormat: The parsed format.
//   - error: ErrUnsupportedFormat if the name is not known.
func ParseFormat(s string) (ImageFormat, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "bmp":
		return FormatBMP, nil
	case "gif":
		return FormatGIF, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%q", s)
}

// ContentType returns the MIME type of the format.
func (f ImageFormat) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	case FormatGIF:
		return "image/gif"
	}
	return "application/octet-stream"
}
