package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]ProviderBackend{
		"":         CPUProviderBackend,
		"CPU":      CPUProviderBackend,
		"coreml":   CoreMLProviderBackend,
		"openvino": OpenVINOProviderBackend,
		" cuda ":   CUDAProviderBackend,
	} {
		got, err := ParseBackend(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseBackend("tpu")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Optimization.IntraOpNumThreads = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Backend = "tpu"
	assert.Error(t, cfg.Validate())
}

func TestCoreMLOptions_Flags(t *testing.T) {
	assert.Equal(t, uint32(0), CoreMLOptions{}.Flags())
	assert.Equal(t, uint32(0x001|0x010), CoreMLOptions{MLComputeUnits: "CPUOnly", MLProgram: true}.Flags())
	assert.Equal(t, uint32(0x004|0x008|0x002), CoreMLOptions{
		MLComputeUnits:           "CPUAndNeuralEngine",
		RequireStaticInputShapes: true,
		EnableOnSubgraphs:        true,
	}.Flags())
}

func TestProviderOptionMaps(t *testing.T) {
	assert.Empty(t, OpenVINOOptions{}.ToMap())
	assert.Equal(t, map[string]string{
		"device_type":    "GPU",
		"num_of_threads": "4",
	}, OpenVINOOptions{DeviceType: "GPU", NumOfThreads: 4}.ToMap())

	m := CUDAOptions{DeviceID: 1, GPUMemLimit: 1 << 30, CudnnConvAlgoSearch: 1}.ToMap()
	assert.Equal(t, "1", m["device_id"])
	assert.Equal(t, "1073741824", m["gpu_mem_limit"])
	assert.Equal(t, "HEURISTIC", m["cudnn_conv_algo_search"])
	assert.Equal(t, "kNextPowerOfTwo", m["arena_extend_strategy"])
}

func TestGetSharedLibPath_EnvOverride(t *testing.T) {
	t.Setenv(SharedLibraryEnv, "/opt/ort/libonnxruntime.so")
	assert.Equal(t, "/opt/ort/libonnxruntime.so", GetSharedLibPath())

	t.Setenv(SharedLibraryEnv, "")
	assert.NotEmpty(t, GetSharedLibPath())
}

func TestExecutionMode(t *testing.T) {
	assert.Equal(t, ort.ExecutionMode(ort.ExecutionModeSequential), executionMode(false))
	assert.Equal(t, ort.ExecutionMode(ort.ExecutionModeParallel), executionMode(true))
	assert.NotEqual(t, executionMode(false), executionMode(true))
}
