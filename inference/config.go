// Package inference - Inference sessions.
package inference

import (
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/pkg/errors"
)

// DefaultInputName is the input node name of the exported vehicle part model.
const DefaultInputName = "input.1"

// Config describes how to load a model session.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// SharedLibraryPath is the onnxruntime shared library. Empty uses providers.GetSharedLibPath.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// InputName is the model input node. Empty uses the first input the model declares.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputNames restricts the fetched outputs. Empty fetches every output the model declares.
	OutputNames []string `json:"output_names" yaml:"output_names"`
	// Provider selects the execution provider and threading.
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// DefaultConfig returns a CPU configuration for the given model.
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath: modelPath,
		InputName: DefaultInputName,
		Provider:  providers.DefaultConfig(),
	}
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.Wrap(ErrModelUnavailable, "model path is required")
	}
	return c.Provider.Validate()
}
