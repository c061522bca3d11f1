package images

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ResizeToResolution decodes image bytes and scales them to a resolution.
//
// The aspect ratio is not preserved; the frame is stretched like a camera
// stream configured for that resolution.
//
// Arguments:
//   - data: Encoded image bytes in any format Decode accepts.
//   - res: The target resolution.
//
// Returns:
//   - *image.NRGBA: The scaled frame.
//   - error: ErrInvalidImage if the bytes cannot be decoded or res is empty.
func ResizeToResolution(data []byte, res Resolution) (*image.NRGBA, error) {
	if res.Pixels.Width <= 0 || res.Pixels.Height <= 0 {
		return nil, errors.Wrapf(ErrInvalidImage, "invalid target resolution %s", res)
	}

	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() == res.Pixels.Width && b.Dy() == res.Pixels.Height {
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, res.Pixels.Width, res.Pixels.Height, imaging.Linear), nil
}
