package benchmark

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDetector reports one detection per frame and fails every failEvery-th call.
type fakeDetector struct {
	failEvery int

	mu    sync.Mutex
	calls int
	sizes []image.Point
}

func (f *fakeDetector) Detect(_ context.Context, img image.Image) (*detector.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.sizes = append(f.sizes, img.Bounds().Size())
	if f.failEvery > 0 && f.calls%f.failEvery == 0 {
		return nil, errors.New("engine failure")
	}
	return &detector.Result{
		Detections: []postprocess.Detection{{Label: "Door", Confidence: 0.9}},
		Timings: detector.Timings{
			Preprocess: time.Millisecond,
			Inference:  2 * time.Millisecond,
			Decode:     time.Millisecond,
		},
	}, nil
}

func corpus(t *testing.T, n int) []util.ImageFile {
	t.Helper()
	files := make([]util.ImageFile, 0, n)
	for i := 0; i < n; i++ {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 32, 24))))
		files = append(files, util.ImageFile{Data: buf.Bytes(), Format: images.FormatPNG, Frame: i})
	}
	return files
}

func TestRunScenario(t *testing.T) {
	det := &fakeDetector{}
	logger, _ := test.NewNullLogger()
	suite := NewSuite(det, corpus(t, 2), logger)

	scenario := NewScenarioBuilder("native").WithIterations(10).WithWarmupRuns(3).Build()
	metrics, err := suite.RunScenario(context.Background(), scenario)
	require.NoError(t, err)

	assert.Equal(t, 13, det.calls)
	assert.Equal(t, 10, metrics.DetectionCount)
	assert.Equal(t, 0.0, metrics.ErrorRate)
	assert.Greater(t, metrics.FramesPerSecond, 0.0)
	assert.Equal(t, time.Millisecond, metrics.PreprocessDuration)
	assert.Equal(t, 2*time.Millisecond, metrics.InferenceDuration)
	assert.Equal(t, time.Millisecond, metrics.PostProcessDuration)
	assert.Equal(t, image.Pt(32, 24), det.sizes[0])
}

func TestRunScenario_Resolution(t *testing.T) {
	det := &fakeDetector{}
	logger, _ := test.NewNullLogger()
	suite := NewSuite(det, corpus(t, 1), logger)

	scenario := NewScenarioBuilder("360p").
		WithResolution(images.Resolutions[images.ResolutionAlias360p]).
		WithIterations(2).
		WithWarmupRuns(0).
		Build()
	_, err := suite.RunScenario(context.Background(), scenario)
	require.NoError(t, err)

	for _, size := range det.sizes {
		assert.Equal(t, image.Pt(640, 360), size)
	}
}

func TestRunScenario_ErrorRate(t *testing.T) {
	det := &fakeDetector{failEvery: 4}
	logger, _ := test.NewNullLogger()
	suite := NewSuite(det, corpus(t, 1), logger)

	metrics, err := suite.RunScenario(context.Background(), Scenario{Name: "flaky", Iterations: 8})
	require.NoError(t, err)
	assert.Equal(t, 0.25, metrics.ErrorRate)
	assert.Equal(t, 6, metrics.DetectionCount)
}

func TestRunScenario_Invalid(t *testing.T) {
	logger, _ := test.NewNullLogger()

	_, err := NewSuite(&fakeDetector{}, corpus(t, 1), logger).RunScenario(context.Background(), Scenario{Name: "empty"})
	assert.Error(t, err)

	junk := []util.ImageFile{{Path: "junk.jpg", Data: []byte("junk")}}
	_, err = NewSuite(&fakeDetector{}, junk, logger).RunScenario(context.Background(), Scenario{Name: "junk", Iterations: 1})
	assert.True(t, errors.Is(err, images.ErrInvalidImage))
}

func TestRunAllScenarios(t *testing.T) {
	logger, hook := test.NewNullLogger()
	suite := NewSuite(&fakeDetector{}, corpus(t, 1), logger)

	for _, sc := range QuickScenarios().Scenarios {
		suite.AddScenario(sc)
	}
	suite.AddScenario(Scenario{Name: "broken"})
	require.Len(t, suite.Scenarios(), 4)

	require.NoError(t, suite.RunAllScenarios(context.Background()))

	results := suite.GetResults()
	require.Len(t, results, 3)
	assert.Equal(t, "quick_native", results[0].Scenario.Name)
	assert.Equal(t, "quick_1080p", results[2].Scenario.Name)
	assert.Equal(t, "scenario failed", hook.LastEntry().Message)
}

func TestRunAllScenarios_Canceled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	suite := NewSuite(&fakeDetector{}, corpus(t, 1), logger)
	suite.AddScenario(Scenario{Name: "one", Iterations: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, suite.RunAllScenarios(ctx), context.Canceled)
	assert.Empty(t, suite.GetResults())
}

func TestScenarioSetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenarios.yaml")

	set := ResolutionScenarios(images.GetAllResolutions()[:2], 5, 1)
	require.NoError(t, SaveScenarioSet(set, path))

	loaded, err := LoadScenarioSet(path)
	require.NoError(t, err)
	assert.Equal(t, set, loaded)
	assert.Equal(t, "resolution_360p", loaded.Scenarios[0].Name)
}

func TestSaveResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.json")
	require.NoError(t, SaveResults(path, []PerformanceMetrics{{Scenario: Scenario{Name: "x"}, FramesPerSecond: 12.5}}))
	assert.FileExists(t, path)
}
