package postprocess

import (
	"image"

	"github.com/nvr-ai/go-detect/models"
)

// Rescale maps candidates from model-input space to original-image space
// and attaches class labels.
//
// X and Width are scaled by original.X/model.X, Y and Height by
// original.Y/model.Y. A non-positive model axis leaves that axis unscaled.
//
// Arguments:
//   - candidates: The suppressed candidates.
//   - modelSize: The model input size the candidates were decoded in.
//   - originalSize: The size of the image the detections are reported for.
//   - classes: The label table. Unknown or out-of-range ids are labelled models.UnknownLabel.
//
// Returns:
//   - []Detection: One detection per candidate, in input order. Never nil.
func Rescale(candidates []Candidate, modelSize, originalSize image.Point, classes *models.ClassSet) []Detection {
	sx := axisScale(modelSize.X, originalSize.X)
	sy := axisScale(modelSize.Y, originalSize.Y)

	detections := make([]Detection, len(candidates))
	for i, c := range candidates {
		detections[i] = Detection{
			Box:        c.Box.Scale(sx, sy),
			Confidence: c.Confidence,
			ClassID:    c.ClassID,
			Label:      classes.Label(c.ClassID),
		}
	}
	return detections
}

func axisScale(model, original int) float32 {
	if model <= 0 {
		return 1
	}
	return float32(original) / float32(model)
}
