// Package detector - Detection pipeline from image to labelled boxes.
package detector

import (
	"image"
	"time"

	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
)

// DefaultInferenceTimeout bounds a single model run.
const DefaultInferenceTimeout = 10 * time.Second

// Config represents the configuration of a detection pipeline.
type Config struct {
	// InputShape defines the model input dimensions (width, height).
	InputShape image.Point `json:"input_shape" yaml:"input_shape"`

	// Interpolation is the resampling filter used by the preprocessor.
	Interpolation preprocess.Interpolation `json:"interpolation" yaml:"interpolation"`

	// AlignCorners aligns the end pixels when sampling with nearest neighbour.
	AlignCorners bool `json:"align_corners" yaml:"align_corners"`

	// Classes labels the decoded class ids.
	Classes *models.ClassSet `json:"-" yaml:"-"`

	// NumClasses is the number of class scores per record. Zero uses Classes.Len().
	NumClasses int `json:"num_classes" yaml:"num_classes"`

	// ConfidenceThreshold filters records whose objectness is not strictly above it.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// NMS controls Non-Maximum Suppression.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`

	// Layout declares how records are laid out in the model output.
	Layout postprocess.Layout `json:"layout" yaml:"layout"`

	// OutputName selects the model output to decode. Empty uses the first output.
	OutputName string `json:"output_name" yaml:"output_name"`

	// InferenceTimeout bounds a single model run.
	InferenceTimeout time.Duration `json:"inference_timeout" yaml:"inference_timeout"`

	// RelevantClasses lists labels to report (empty = all classes).
	RelevantClasses []string `json:"relevant_classes" yaml:"relevant_classes"`
}

// DefaultConfig returns the configuration of the 7-class vehicle part model.
//
// Returns:
//   - Config: 640x640 nearest sampling, confidence 0.5, cross-class NMS at 0.5.
func DefaultConfig() Config {
	return Config{
		InputShape:          image.Point{X: 640, Y: 640},
		Interpolation:       preprocess.InterpolationNearest,
		Classes:             &models.CarPartClasses,
		ConfidenceThreshold: 0.5,
		NMS:                 *postprocess.DefaultNMSConfig(),
		Layout:              postprocess.LayoutAuto,
		InferenceTimeout:    DefaultInferenceTimeout,
	}
}

// classCount resolves the number of class scores per record.
func (c Config) classCount() int {
	if c.NumClasses > 0 {
		return c.NumClasses
	}
	return c.Classes.Len()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.InputShape.X <= 0 || c.InputShape.Y <= 0 {
		return errors.Errorf("invalid input shape %v", c.InputShape)
	}
	if c.classCount() <= 0 {
		return errors.New("num_classes or a class set is required")
	}
	if c.NMS.IoUThreshold <= 0 || c.NMS.IoUThreshold > 1 {
		return errors.Errorf("iou threshold must be in (0, 1], got %v", c.NMS.IoUThreshold)
	}
	if c.InferenceTimeout < 0 {
		return errors.Errorf("inference timeout must not be negative, got %v", c.InferenceTimeout)
	}
	if _, err := postprocess.ParseLayout(string(c.Layout)); err != nil {
		return err
	}
	if _, err := preprocess.ParseInterpolation(string(c.Interpolation)); err != nil {
		return err
	}
	return nil
}
