package providers

import (
	"fmt"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CUDAProviderBackend uses NVIDIA CUDA for inference optimization.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID" yaml:"deviceID"`
	// The size limit of the device memory arena in bytes. Zero leaves the default.
	GPUMemLimit int64 `json:"gpuMemLimit" yaml:"gpuMemLimit"`
	// The strategy for extending the device memory arena.
	// 0: kNextPowerOfTwo, 1: kSameAsRequested
	ArenaExtendStrategy int `json:"arenaExtendStrategy" yaml:"arenaExtendStrategy"`
	// The type of search done for cuDNN convolution algorithms.
	// 0: EXHAUSTIVE, 1: HEURISTIC, 2: DEFAULT
	CudnnConvAlgoSearch int `json:"cudnnConvAlgoSearch" yaml:"cudnnConvAlgoSearch"`
	// Whether to do copies in the default stream or use separate streams.
	DoCopyInDefaultStream bool `json:"doCopyInDefaultStream" yaml:"doCopyInDefaultStream"`
}

// ToMap converts the options into CUDA provider keys.
func (o CUDAOptions) ToMap() map[string]string {
	algo := [...]string{"EXHAUSTIVE", "HEURISTIC", "DEFAULT"}
	strategy := [...]string{"kNextPowerOfTwo", "kSameAsRequested"}

	m := map[string]string{
		"device_id":                 fmt.Sprintf("%d", o.DeviceID),
		"do_copy_in_default_stream": fmt.Sprintf("%d", boolToInt(o.DoCopyInDefaultStream)),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = fmt.Sprintf("%d", o.GPUMemLimit)
	}
	if o.ArenaExtendStrategy >= 0 && o.ArenaExtendStrategy < len(strategy) {
		m["arena_extend_strategy"] = strategy[o.ArenaExtendStrategy]
	}
	if o.CudnnConvAlgoSearch >= 0 && o.CudnnConvAlgoSearch < len(algo) {
		m["cudnn_conv_algo_search"] = algo[o.CudnnConvAlgoSearch]
	}
	return m
}

// ToNativeProviderOptions converts the CUDA options to native provider options.
// The caller must Destroy the result.
func (o CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CUDA provider options")
	}

	if err := opts.Update(o.ToMap()); err != nil {
		opts.Destroy()
		return nil, errors.Wrap(err, "failed to update CUDA provider options")
	}

	return opts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
