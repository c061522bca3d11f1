package inference

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestSession_NilIsUnavailable(t *testing.T) {
	var s *Session

	_, err := s.Run(context.Background(), Input{Data: []float32{1}, Shape: []int64{1}})
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Nil(t, s.OutputNames())
	assert.NoError(t, s.Close())

	_, err = (&Session{}).Run(context.Background(), Input{Data: []float32{1}, Shape: []int64{1}})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestSession_ClosedIsUnavailable(t *testing.T) {
	s := &Session{slot: make(chan struct{}, 1), outputNames: []string{"1769"}}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Run(context.Background(), Input{Data: []float32{1}, Shape: []int64{1}})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestSession_RunHonorsContextWhileWaiting(t *testing.T) {
	s := &Session{slot: make(chan struct{}, 1)}
	s.slot <- struct{}{} // another run holds the session

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, Input{Data: []float32{1}, Shape: []int64{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckShape(t *testing.T) {
	assert.NoError(t, checkShape(Input{Data: make([]float32, 12), Shape: []int64{1, 3, 2, 2}}))
	assert.ErrorIs(t, checkShape(Input{Data: make([]float32, 11), Shape: []int64{1, 3, 2, 2}}), ErrShapeMismatch)
	assert.ErrorIs(t, checkShape(Input{Data: nil, Shape: nil}), ErrShapeMismatch)
	assert.ErrorIs(t, checkShape(Input{Data: nil, Shape: []int64{1, -1}}), ErrShapeMismatch)
}

func TestLoad_FailsFast(t *testing.T) {
	_, err := Load(Config{})
	assert.ErrorIs(t, err, ErrModelUnavailable)

	cfg := DefaultConfig(filepath.Join(t.TempDir(), "missing.onnx"))
	_, err = Load(cfg)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	cfg = DefaultConfig("model.onnx")
	cfg.Provider.Backend = "tpu"
	_, err = Load(cfg)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestInitEnvironment_RetriesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.so")
	second := filepath.Join(dir, "second.so")

	err := initEnvironment(first)
	require.Error(t, err)
	assert.Contains(t, err.Error(), first)

	err = initEnvironment(second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), second)
	assert.NotContains(t, err.Error(), first)
}

func TestResolveNames(t *testing.T) {
	inputs := []ort.InputOutputInfo{{Name: "input.1", Dimensions: ort.NewShape(1, 3, 640, 640)}}
	outputs := []ort.InputOutputInfo{{Name: "1769"}, {Name: "aux"}}

	in, err := resolveInput(inputs, "")
	require.NoError(t, err)
	assert.Equal(t, "input.1", in.Name)

	_, err = resolveInput(inputs, "images")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = resolveInput(nil, "")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	names, err := resolveOutputs(outputs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1769", "aux"}, names)

	names, err = resolveOutputs(outputs, []string{"aux"})
	require.NoError(t, err)
	assert.Equal(t, []string{"aux"}, names)

	_, err = resolveOutputs(outputs, []string{"output0"})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}
