package inference

import (
	"context"
	"os"
	"sync"

	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	// ErrModelUnavailable is returned when a session is used before it is
	// loaded, after it is closed, or when loading fails.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrShapeMismatch is returned when input data does not fill its declared shape.
	ErrShapeMismatch = errors.New("tensor data does not match shape")
)

var envMu sync.Mutex

// initEnvironment loads the onnxruntime library once per process.
//
// Only a successful initialisation is kept. After a failure the next call
// retries, so a corrected library path takes effect.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// Input is a float32 tensor handed to the model.
type Input struct {
	// Data is the flattened tensor.
	Data []float32
	// Shape is the tensor shape, for example [1, 3, 640, 640].
	Shape []int64
}

// Output is a float32 tensor copied out of the runtime.
type Output struct {
	// Data is the flattened tensor.
	Data []float32 `json:"-"`
	// Shape is the tensor shape reported by the runtime.
	Shape []int64 `json:"shape"`
}

// Session represents a model session from the onnxruntime.
//
// A Session is safe for concurrent use. Native runs are serialized, so at
// most one inference executes at a time.
type Session struct {
	session     *ort.DynamicAdvancedSession
	inputName   string
	inputShape  []int64
	outputNames []string

	// slot is held for the duration of one native call, and by Close.
	slot   chan struct{}
	closed bool
}

// Load creates a session for the configured model.
//
// The onnxruntime environment is initialized on first use. Model metadata is
// read to resolve the input and output node names before the session is built.
//
// Arguments:
//   - cfg: The session configuration.
//
// Returns:
//   - *Session: The loaded session. The caller must Close it.
//   - error: An error wrapping ErrModelUnavailable if anything fails.
func Load(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(ErrModelUnavailable, err.Error())
	}

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "model file: %v", err)
	}

	libPath := cfg.SharedLibraryPath
	if libPath == "" {
		libPath = providers.GetSharedLibPath()
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, errors.Wrap(ErrModelUnavailable, err.Error())
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "reading model metadata: %v", err)
	}

	input, err := resolveInput(inputs, cfg.InputName)
	if err != nil {
		return nil, err
	}

	outputNames, err := resolveOutputs(outputs, cfg.OutputNames)
	if err != nil {
		return nil, err
	}

	options, err := providers.NewSessionOptions(cfg.Provider)
	if err != nil {
		return nil, errors.Wrap(ErrModelUnavailable, err.Error())
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{input.Name},
		outputNames,
		options,
	)
	if err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "error creating ORT session: %v", err)
	}

	return &Session{
		session:     session,
		inputName:   input.Name,
		inputShape:  append([]int64(nil), input.Dimensions...),
		outputNames: outputNames,
		slot:        make(chan struct{}, 1),
	}, nil
}

func resolveInput(inputs []ort.InputOutputInfo, name string) (ort.InputOutputInfo, error) {
	if len(inputs) == 0 {
		return ort.InputOutputInfo{}, errors.Wrap(ErrModelUnavailable, "model declares no inputs")
	}
	if name == "" {
		return inputs[0], nil
	}
	for _, in := range inputs {
		if in.Name == name {
			return in, nil
		}
	}
	return ort.InputOutputInfo{}, errors.Wrapf(ErrModelUnavailable, "model has no input named %q", name)
}

func resolveOutputs(outputs []ort.InputOutputInfo, names []string) ([]string, error) {
	declared := make(map[string]bool, len(outputs))
	all := make([]string, 0, len(outputs))
	for _, out := range outputs {
		declared[out.Name] = true
		all = append(all, out.Name)
	}

	if len(names) == 0 {
		if len(all) == 0 {
			return nil, errors.Wrap(ErrModelUnavailable, "model declares no outputs")
		}
		return all, nil
	}

	for _, name := range names {
		if !declared[name] {
			return nil, errors.Wrapf(ErrModelUnavailable, "model has no output named %q", name)
		}
	}
	return append([]string(nil), names...), nil
}

// InputNames returns the bound input node names.
func (s *Session) InputNames() []string {
	if s == nil {
		return nil
	}
	return []string{s.inputName}
}

// InputShape returns the declared input shape. Dynamic axes are -1.
func (s *Session) InputShape() []int64 {
	if s == nil {
		return nil
	}
	return append([]int64(nil), s.inputShape...)
}

// OutputNames returns the fetched output node names in model order.
func (s *Session) OutputNames() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.outputNames...)
}

type runResult struct {
	outputs map[string]Output
	err     error
}

// Run executes the model on one input tensor.
//
// Run waits for any in-flight inference to finish first. If ctx ends while
// waiting or running, Run returns the context error; a native call that has
// already started runs to completion in the background and its result is
// dropped.
//
// Arguments:
//   - ctx: Bounds the wait and the run.
//   - input: The input tensor.
//
// Returns:
//   - map[string]Output: Outputs keyed by node name.
//   - error: ErrModelUnavailable for nil or closed sessions, ErrShapeMismatch
//     for malformed input, or the context error.
func (s *Session) Run(ctx context.Context, input Input) (map[string]Output, error) {
	if s == nil || s.slot == nil {
		return nil, ErrModelUnavailable
	}
	if err := checkShape(input); err != nil {
		return nil, err
	}

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for session")
	}

	if s.closed {
		<-s.slot
		return nil, ErrModelUnavailable
	}

	done := make(chan runResult, 1)
	go func() {
		defer func() { <-s.slot }()
		outputs, err := s.run(input)
		done <- runResult{outputs: outputs, err: err}
	}()

	select {
	case r := <-done:
		return r.outputs, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "inference abandoned")
	}
}

// run performs one native call. The caller holds the slot.
func (s *Session) run(input Input) (map[string]Output, error) {
	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer in.Destroy()

	// Nil outputs are allocated by the runtime to the shape the model produces.
	outs := make([]ort.Value, len(s.outputNames))
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	if err := s.session.Run([]ort.Value{in}, outs); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	result := make(map[string]Output, len(outs))
	for i, v := range outs {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, errors.Errorf("output %q is %T, want float32 tensor", s.outputNames[i], v)
		}
		result[s.outputNames[i]] = Output{
			Data:  append([]float32(nil), t.GetData()...),
			Shape: append([]int64(nil), t.GetShape()...),
		}
	}
	return result, nil
}

func checkShape(input Input) error {
	if len(input.Shape) == 0 {
		return errors.Wrap(ErrShapeMismatch, "empty shape")
	}
	n := int64(1)
	for _, d := range input.Shape {
		if d <= 0 {
			return errors.Wrapf(ErrShapeMismatch, "shape %v has a non-positive axis", input.Shape)
		}
		n *= d
	}
	if int64(len(input.Data)) != n {
		return errors.Wrapf(ErrShapeMismatch, "%d values for shape %v", len(input.Data), input.Shape)
	}
	return nil
}

// Close releases the native session. It waits for an in-flight run to finish.
// Later calls to Run return ErrModelUnavailable.
func (s *Session) Close() error {
	if s == nil || s.slot == nil {
		return nil
	}

	s.slot <- struct{}{}
	defer func() { <-s.slot }()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			return errors.Wrap(err, "error destroying ORT session")
		}
		s.session = nil
	}
	return nil
}
