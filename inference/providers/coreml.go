package providers

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML provider flags, see coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly                = 0x001
	coreMLFlagEnableOnSubgraph          = 0x002
	coreMLFlagOnlyEnableDeviceWithANE   = 0x004
	coreMLFlagOnlyAllowStaticInputShape = 0x008
	coreMLFlagCreateMLProgram           = 0x010
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// MLProgram creates an MLProgram format model (Core ML 5+) instead of a NeuralNetwork.
	MLProgram bool `json:"mlProgram" yaml:"mlProgram"`
	// MLComputeUnits limits the devices CoreML may use: "ALL", "CPUOnly" or "CPUAndNeuralEngine".
	MLComputeUnits string `json:"mlComputeUnits" yaml:"mlComputeUnits"`
	// RequireStaticInputShapes only lets CoreML take nodes with static input shapes.
	RequireStaticInputShapes bool `json:"requireStaticInputShapes" yaml:"requireStaticInputShapes"`
	// EnableOnSubgraphs lets CoreML run inside Loop, Scan and If bodies.
	EnableOnSubgraphs bool `json:"enableOnSubgraphs" yaml:"enableOnSubgraphs"`
}

// Flags packs the options into the CoreML provider flag word.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	switch o.MLComputeUnits {
	case "CPUOnly":
		flags |= coreMLFlagUseCPUOnly
	case "CPUAndNeuralEngine":
		flags |= coreMLFlagOnlyEnableDeviceWithANE
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLFlagEnableOnSubgraph
	}
	if o.RequireStaticInputShapes {
		flags |= coreMLFlagOnlyAllowStaticInputShape
	}
	if o.MLProgram {
		flags |= coreMLFlagCreateMLProgram
	}
	return flags
}
