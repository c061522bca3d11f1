package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Layout describes how prediction records are laid out in a model output.
type Layout string

const (
	// LayoutAuto picks the layout from the output shape.
	LayoutAuto Layout = "auto"
	// LayoutRecords is [1, N, 5+C]: one contiguous record per prediction.
	LayoutRecords Layout = "records"
	// LayoutChannels is [1, 5+C, N]: one contiguous plane per field.
	LayoutChannels Layout = "channels"
)

// ParseLayout validates a layout name. The empty string means LayoutAuto.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutAuto:
		return LayoutAuto, nil
	case LayoutRecords, LayoutChannels:
		return Layout(s), nil
	}
	return "", errors.Errorf("unknown output layout %q", s)
}

// Resolve returns the concrete layout for an output shape.
//
// Auto resolves to LayoutChannels only when the shape is [1, 5+C, N] with
// N != 5+C. Anything else, including flat buffers, is treated as records.
func (l Layout) Resolve(shape []int64, numClasses int) Layout {
	if l != LayoutAuto && l != "" {
		return l
	}
	stride := int64(RecordHeader + numClasses)
	if len(shape) == 3 && shape[1] == stride && shape[2] != stride {
		return LayoutChannels
	}
	return LayoutRecords
}

// ToRecordMajor converts a model output into the flat record-major layout
// expected by Decode.
//
// Arguments:
//   - data: The raw output values.
//   - shape: The output shape reported by the runtime.
//   - numClasses: The number of class scores per record.
//   - layout: The declared layout, or LayoutAuto.
//
// Returns:
//   - []float32: The record-major buffer. Record layouts are returned as-is.
//   - error: ErrInvalidOutput if a channel layout does not match its shape.
func ToRecordMajor(data []float32, shape []int64, numClasses int, layout Layout) ([]float32, error) {
	if layout.Resolve(shape, numClasses) != LayoutChannels {
		return data, nil
	}

	if len(shape) != 3 {
		return nil, errors.Wrapf(ErrInvalidOutput, "channel layout needs a 3-d shape, got %v", shape)
	}

	channels, n := int(shape[1]), int(shape[2])
	if channels != RecordHeader+numClasses {
		return nil, errors.Wrapf(ErrInvalidOutput,
			"channel layout has %d channels, want %d", channels, RecordHeader+numClasses)
	}
	if len(data) != channels*n {
		return nil, errors.Wrapf(ErrInvalidOutput,
			"output has %d values, shape %v needs %d", len(data), shape, channels*n)
	}

	if n == 0 {
		return []float32{}, nil
	}

	t := tensor.New(tensor.WithShape(channels, n), tensor.WithBacking(data))

	transposed, err := tensor.Transpose(t, 1, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to transpose output")
	}

	out, ok := transposed.Data().([]float32)
	if !ok {
		return nil, errors.Wrap(ErrInvalidOutput, "transposed output is not float32")
	}
	return out, nil
}
