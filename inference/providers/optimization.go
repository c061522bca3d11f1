package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationConfig contains ONNX Runtime optimization settings.
type OptimizationConfig struct {
	// GraphOptimizationLevel controls the level of graph optimization
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level" yaml:"graph_optimization_level"`

	// Parallel selects parallel rather than sequential graph execution.
	Parallel bool `json:"parallel" yaml:"parallel"`

	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets the runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops. Zero lets the runtime decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
}

// DefaultOptimizationConfig returns extended graph optimization with half the
// CPUs for intra-op work.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		Parallel:               false,
		IntraOpNumThreads:      maxInt(1, runtime.NumCPU()/2),
		InterOpNumThreads:      1,
	}
}

// NewSessionOptions builds session options for the configured backend.
//
// Arguments:
//   - config: Provider and optimization configuration.
//
// Returns:
//   - *ort.SessionOptions: Configured session options. The caller must Destroy them.
//   - error: Option or provider setup error if any.
//
// @example
// options, err := NewSessionOptions(DefaultConfig())
//
//	if err != nil {
//	    return err
//	}
//
// defer options.Destroy()
func NewSessionOptions(config Config) (*ort.SessionOptions, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := applyOptimization(options, config.Optimization); err != nil {
		options.Destroy()
		return nil, err
	}

	if err := applyExecutionProvider(options, config); err != nil {
		options.Destroy()
		return nil, err
	}

	return options, nil
}

func applyOptimization(options *ort.SessionOptions, config OptimizationConfig) error {
	if err := options.SetGraphOptimizationLevel(config.GraphOptimizationLevel); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}

	if err := options.SetExecutionMode(executionMode(config.Parallel)); err != nil {
		return errors.Wrap(err, "error setting execution mode")
	}

	if err := options.SetIntraOpNumThreads(config.IntraOpNumThreads); err != nil {
		return errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(config.InterOpNumThreads); err != nil {
		return errors.Wrap(err, "error setting inter-op threads")
	}
	return nil
}

func applyExecutionProvider(options *ort.SessionOptions, config Config) error {
	backend, _ := ParseBackend(string(config.Backend))

	switch backend {
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(config.CoreML.Flags()); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(config.OpenVINO.ToMap()); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	case CUDAProviderBackend:
		cuda, err := config.CUDA.ToNativeProviderOptions()
		if err != nil {
			return err
		}
		defer cuda.Destroy()

		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// executionMode maps the parallel flag to an onnxruntime execution mode.
func executionMode(parallel bool) ort.ExecutionMode {
	if parallel {
		return ort.ExecutionMode(ort.ExecutionModeParallel)
	}
	return ort.ExecutionMode(ort.ExecutionModeSequential)
}
