// Package providers - Execution provider selection for onnxruntime sessions.
package providers

import (
	"strings"

	"github.com/pkg/errors"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
)

// ParseBackend validates a backend name. The empty string means CPU.
func ParseBackend(s string) (ProviderBackend, error) {
	switch b := ProviderBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case "", CPUProviderBackend:
		return CPUProviderBackend, nil
	case CoreMLProviderBackend, OpenVINOProviderBackend, CUDAProviderBackend:
		return b, nil
	}
	return "", errors.Errorf("unknown execution provider %q", s)
}

// Config selects the execution provider and tunes the session.
type Config struct {
	// Backend specifies the backend to use
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// CoreML holds options for the coreml backend.
	CoreML CoreMLOptions `json:"coreml" yaml:"coreml"`

	// OpenVINO holds options for the openvino backend.
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`

	// CUDA holds options for the cuda backend.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`

	// Optimization tunes graph optimization and threading.
	Optimization OptimizationConfig `json:"optimization" yaml:"optimization"`
}

// DefaultConfig returns a CPU configuration with default optimization.
func DefaultConfig() Config {
	return Config{
		Backend:      CPUProviderBackend,
		Optimization: DefaultOptimizationConfig(),
	}
}

// Validate checks the backend name and thread counts.
func (c Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.Optimization.IntraOpNumThreads < 0 || c.Optimization.InterOpNumThreads < 0 {
		return errors.New("thread counts must not be negative")
	}
	return nil
}
