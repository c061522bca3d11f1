package detector

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Inferencer runs a model on one input tensor.
//
// Run must return promptly once ctx is done. *inference.Session implements it.
type Inferencer interface {
	Run(ctx context.Context, input inference.Input) (map[string]inference.Output, error)
	OutputNames() []string
}

// Timings holds per-stage durations of one detection.
type Timings struct {
	Preprocess time.Duration `json:"preprocess"`
	Inference  time.Duration `json:"inference"`
	Decode     time.Duration `json:"decode"`
	Suppress   time.Duration `json:"suppress"`
	Rescale    time.Duration `json:"rescale"`
	Total      time.Duration `json:"total"`
}

// Result is the outcome of one detection.
type Result struct {
	// Width and Height are the original image dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`
	// Candidates is the number of records that passed the confidence gate.
	Candidates int `json:"candidates"`
	// Detections are the surviving boxes in descending confidence order.
	Detections []postprocess.Detection `json:"detections"`
	// Timings are the stage durations.
	Timings Timings `json:"timings"`
}

// Detector runs the preprocess, inference, decode, suppress and rescale stages.
//
// Detect calls are queued through a single slot, so at most one image is in
// the pipeline at a time. Submit additionally cancels the previous submission.
type Detector struct {
	cfg          Config
	numClasses   int
	preprocessor *preprocess.Preprocessor
	relevant     map[string]bool
	log          logrus.FieldLogger

	mu     sync.RWMutex
	engine Inferencer

	slot chan struct{}

	submitMu   sync.Mutex
	submitSeq  uint64
	cancelPrev context.CancelFunc
}

// New creates a detection pipeline.
//
// Arguments:
//   - engine: The model runner. May be nil and attached later with Attach.
//   - cfg: The pipeline configuration.
//   - log: The logger. Nil uses the standard logrus logger.
//
// Returns:
//   - *Detector: The pipeline.
//   - error: An error if the configuration is invalid.
func New(engine Inferencer, cfg Config, log logrus.FieldLogger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid detector config")
	}
	if cfg.InferenceTimeout == 0 {
		cfg.InferenceTimeout = DefaultInferenceTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	pre, err := preprocess.NewPreprocessor(&preprocess.ModelConfig{
		Name:          "detector",
		InputWidth:    cfg.InputShape.X,
		InputHeight:   cfg.InputShape.Y,
		Interpolation: cfg.Interpolation,
		AlignCorners:  cfg.AlignCorners,
	})
	if err != nil {
		return nil, err
	}

	var relevant map[string]bool
	if len(cfg.RelevantClasses) > 0 {
		relevant = make(map[string]bool, len(cfg.RelevantClasses))
		for _, name := range cfg.RelevantClasses {
			relevant[name] = true
		}
	}

	return &Detector{
		cfg:          cfg,
		numClasses:   cfg.classCount(),
		preprocessor: pre,
		relevant:     relevant,
		log:          log,
		engine:       engine,
		slot:         make(chan struct{}, 1),
	}, nil
}

// Attach sets the model runner, replacing any previous one.
func (d *Detector) Attach(engine Inferencer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engine = engine
}

// Ready reports whether a model runner is attached.
func (d *Detector) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.engine != nil
}

// Config returns the pipeline configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect runs the full pipeline on one image.
//
// The call waits for the single pipeline slot. The model run is bounded by
// Config.InferenceTimeout. On any error no detections are returned.
//
// Arguments:
//   - ctx: Cancels the wait or the run.
//   - img: The decoded image.
//
// Returns:
//   - *Result: The detections in original-image pixels.
//   - error: inference.ErrModelUnavailable, preprocess.ErrInvalidInput,
//     postprocess.ErrInvalidOutput or a context error.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	select {
	case d.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for detector")
	}
	defer func() { <-d.slot }()

	d.mu.RLock()
	engine := d.engine
	d.mu.RUnlock()
	if engine == nil {
		return nil, inference.ErrModelUnavailable
	}

	start := time.Now()
	var timings Timings

	tensor, err := d.preprocessor.Preprocess(img)
	if err != nil {
		return nil, err
	}
	timings.Preprocess = time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "detection aborted after preprocess")
	}

	stage := time.Now()
	output, err := d.infer(ctx, engine, tensor)
	if err != nil {
		return nil, err
	}
	timings.Inference = time.Since(stage)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "detection aborted after inference")
	}

	stage = time.Now()
	records, err := postprocess.ToRecordMajor(output.Data, output.Shape, d.numClasses, d.cfg.Layout)
	if err != nil {
		return nil, err
	}
	candidates, err := postprocess.Decode(records, d.numClasses, d.cfg.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	timings.Decode = time.Since(stage)

	stage = time.Now()
	kept := postprocess.Suppress(candidates, &d.cfg.NMS)
	timings.Suppress = time.Since(stage)

	stage = time.Now()
	detections := d.filter(postprocess.Rescale(kept, tensor.Size(), tensor.OriginalSize(), d.cfg.Classes))
	timings.Rescale = time.Since(stage)
	timings.Total = time.Since(start)

	d.log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"detections": len(detections),
		"elapsed":    timings.Total,
		"inference":  timings.Inference,
	}).Debug("detection complete")

	return &Result{
		Width:      tensor.OriginalWidth,
		Height:     tensor.OriginalHeight,
		Candidates: len(candidates),
		Detections: detections,
		Timings:    timings,
	}, nil
}

// infer runs the model under the inference timeout and selects the output to decode.
func (d *Detector) infer(ctx context.Context, engine Inferencer, tensor *preprocess.Tensor) (inference.Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, d.cfg.InferenceTimeout)
	defer cancel()

	outputs, err := engine.Run(runCtx, inference.Input{Data: tensor.Data, Shape: tensor.Shape()})
	if err != nil {
		return inference.Output{}, errors.Wrap(err, "inference failed")
	}

	name := d.cfg.OutputName
	if name == "" {
		names := engine.OutputNames()
		if len(names) == 0 {
			return inference.Output{}, errors.Wrap(postprocess.ErrInvalidOutput, "model reports no outputs")
		}
		name = names[0]
	}

	output, ok := outputs[name]
	if !ok {
		return inference.Output{}, errors.Wrapf(postprocess.ErrInvalidOutput, "output %q missing", name)
	}
	return output, nil
}

// filter drops detections whose label is not relevant.
func (d *Detector) filter(detections []postprocess.Detection) []postprocess.Detection {
	if d.relevant == nil {
		return detections
	}
	out := detections[:0]
	for _, det := range detections {
		if d.relevant[det.Label] {
			out = append(out, det)
		}
	}
	return out
}

// Submit runs Detect and cancels any earlier submission still in flight.
//
// Only the most recent submission is expected to finish; superseded calls
// return an error wrapping context.Canceled.
func (d *Detector) Submit(ctx context.Context, img image.Image) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)

	d.submitMu.Lock()
	if d.cancelPrev != nil {
		d.cancelPrev()
	}
	d.submitSeq++
	seq := d.submitSeq
	d.cancelPrev = cancel
	d.submitMu.Unlock()

	defer func() {
		d.submitMu.Lock()
		if d.submitSeq == seq {
			d.cancelPrev = nil
		}
		d.submitMu.Unlock()
		cancel()
	}()

	return d.Detect(ctx, img)
}
