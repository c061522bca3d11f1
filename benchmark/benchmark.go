// Package benchmark - Throughput measurement of the detection pipeline.
package benchmark

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Detector runs the pipeline on one frame. *detector.Detector implements it.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*detector.Result, error)
}

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario"`
	Timestamp       time.Time     `json:"timestamp"`
	TotalDuration   time.Duration `json:"total_duration"`
	FramesPerSecond float64       `json:"frames_per_second"`
	// Per-frame stage averages over successful iterations.
	PreprocessDuration  time.Duration `json:"preprocess_duration"`
	InferenceDuration   time.Duration `json:"inference_duration"`
	PostProcessDuration time.Duration `json:"post_process_duration"`
	MemoryStats         MemoryMetrics `json:"memory_stats"`
	NumCPU              int           `json:"num_cpu"`
	DetectionCount      int           `json:"detection_count"`
	ErrorRate           float64       `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// Suite manages and executes benchmark scenarios
type Suite struct {
	det    Detector
	corpus []util.ImageFile
	log    logrus.FieldLogger

	mu        sync.RWMutex
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - det: The pipeline under test.
//   - corpus: Encoded frames, cycled through on each iteration.
//   - log: The logger. Nil uses the standard logrus logger.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(det Detector, corpus []util.ImageFile, log logrus.FieldLogger) *Suite {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Suite{det: det, corpus: corpus, log: log}
}

// AddScenario adds a test scenario to the benchmark suite
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// Scenarios returns the queued scenarios.
func (s *Suite) Scenarios() []Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Scenario(nil), s.scenarios...)
}

// GetResults returns the results of every scenario run so far.
func (s *Suite) GetResults() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PerformanceMetrics(nil), s.results...)
}

// RunAllScenarios runs the queued scenarios in order.
//
// A failing scenario is logged and skipped; a done context stops the run.
func (s *Suite) RunAllScenarios(ctx context.Context) error {
	for _, scenario := range s.Scenarios() {
		if err := ctx.Err(); err != nil {
			return err
		}

		metrics, err := s.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.WithError(err).WithField("scenario", scenario.Name).Error("scenario failed")
			continue
		}

		s.mu.Lock()
		s.results = append(s.results, *metrics)
		s.mu.Unlock()

		s.log.WithFields(logrus.Fields{
			"scenario":   scenario.Name,
			"fps":        metrics.FramesPerSecond,
			"inference":  metrics.InferenceDuration,
			"detections": metrics.DetectionCount,
			"error_rate": metrics.ErrorRate,
		}).Info("scenario complete")
	}
	return nil
}

// RunScenario executes a single benchmark scenario
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %q needs at least one iteration", scenario.Name)
	}

	frames, err := s.prepareFrames(scenario.Resolution)
	if err != nil {
		return nil, err
	}

	// Warmup errors are ignored.
	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := s.det.Detect(ctx, frames[i%len(frames)]); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	var (
		preprocess, inference, post time.Duration
		detections, failures        int
	)

	startTime := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		result, err := s.det.Detect(ctx, frames[i%len(frames)])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			continue
		}
		detections += len(result.Detections)
		preprocess += result.Timings.Preprocess
		inference += result.Timings.Inference
		post += result.Timings.Decode + result.Timings.Suppress + result.Timings.Rescale
	}
	totalDuration := time.Since(startTime)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics := &PerformanceMetrics{
		Scenario:        scenario,
		Timestamp:       startTime,
		TotalDuration:   totalDuration,
		FramesPerSecond: float64(scenario.Iterations) / totalDuration.Seconds(),
		NumCPU:          runtime.NumCPU(),
		DetectionCount:  detections,
		ErrorRate:       float64(failures) / float64(scenario.Iterations),
		MemoryStats: MemoryMetrics{
			AllocBytes:      endMem.Alloc,
			TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
			SysBytes:        endMem.Sys,
			NumGC:           endMem.NumGC - startMem.NumGC,
			HeapAllocBytes:  endMem.HeapAlloc,
			HeapSysBytes:    endMem.HeapSys,
		},
	}
	if ok := scenario.Iterations - failures; ok > 0 {
		metrics.PreprocessDuration = preprocess / time.Duration(ok)
		metrics.InferenceDuration = inference / time.Duration(ok)
		metrics.PostProcessDuration = post / time.Duration(ok)
	}
	return metrics, nil
}

// prepareFrames decodes the corpus, scaled to res unless res is empty.
func (s *Suite) prepareFrames(res images.Resolution) ([]image.Image, error) {
	frames := make([]image.Image, 0, len(s.corpus))
	for _, file := range s.corpus {
		var (
			frame image.Image
			err   error
		)
		if res.Pixels.Width > 0 && res.Pixels.Height > 0 {
			frame, err = images.ResizeToResolution(file.Data, res)
		} else {
			frame, _, err = images.Decode(file.Data)
		}
		if err != nil {
			s.log.WithError(err).WithField("path", file.Path).Warn("skipping frame")
			continue
		}
		frames = append(frames, frame)
	}
	if len(frames) == 0 {
		return nil, errors.Wrap(images.ErrInvalidImage, "no decodable frames in corpus")
	}
	return frames, nil
}

// SaveResults writes results as indented JSON, creating parent directories.
func SaveResults(path string, results []PerformanceMetrics) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write results")
	}
	return nil
}
