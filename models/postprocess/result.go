// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-detect/images"

// Candidate is a single decoded prediction in model-input space.
//
// Candidates are values: stages select or discard them but never modify one.
type Candidate struct {
	// The bounding box of the candidate, corner form.
	Box images.Box
	// The objectness score of the candidate.
	Confidence float32
	// The predicted class index of the candidate.
	ClassID int
}

// Detection is a surviving candidate mapped into original-image space.
type Detection struct {
	// The bounding box in original-image pixels.
	Box images.Box `json:"box"`
	// The objectness score.
	Confidence float32 `json:"confidence"`
	// The predicted class index.
	ClassID int `json:"class_id"`
	// The human-readable class label.
	Label string `json:"label"`
}
