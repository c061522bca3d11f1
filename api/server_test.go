package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/profiler"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine returns one confident windshield record.
type fakeEngine struct{}

func (fakeEngine) Run(context.Context, inference.Input) (map[string]inference.Output, error) {
	return map[string]inference.Output{
		"1769": {
			Data:  []float32{100, 100, 50, 50, 0.9, 0, 0, 0, 0, 0, 0, 9},
			Shape: []int64{1, 1, 12},
		},
	}, nil
}

func (fakeEngine) OutputNames() []string { return []string{"1769"} }

// stubDetector returns a fixed error and records which entry point ran.
type stubDetector struct {
	err       error
	ready     bool
	submitted bool
}

func (s *stubDetector) Detect(context.Context, image.Image) (*detector.Result, error) {
	return nil, s.err
}

func (s *stubDetector) Submit(context.Context, image.Image) (*detector.Result, error) {
	s.submitted = true
	return nil, s.err
}

func (s *stubDetector) Ready() bool { return s.ready }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func newTestServer(t *testing.T, det Detector, opts Options) http.Handler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	opts.Log = logger
	return NewServer(det, opts).Router()
}

func newPipeline(t *testing.T, engine detector.Inferencer) *detector.Detector {
	t.Helper()
	logger, _ := test.NewNullLogger()
	d, err := detector.New(engine, detector.DefaultConfig(), logger)
	require.NoError(t, err)
	return d
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) DetectResponse {
	t.Helper()
	var resp DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestDetect_RawBody(t *testing.T) {
	srv := newTestServer(t, newPipeline(t, fakeEngine{}), Options{})

	req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewReader(pngBytes(t, 1280, 720)))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeResponse(t, rec)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, 1280, resp.Width)
	assert.Equal(t, 720, resp.Height)
	require.Len(t, resp.Detections, 1)
	assert.Equal(t, "Windshield", resp.Detections[0].Label)
	assert.Equal(t, images.Box{X: 150, Y: 84.375, Width: 100, Height: 56.25}, resp.Detections[0].Box)
}

func TestDetect_JSONBody(t *testing.T) {
	srv := newTestServer(t, newPipeline(t, fakeEngine{}), Options{})

	body, err := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(pngBytes(t, 640, 640)),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeResponse(t, rec)
	require.Len(t, resp.Detections, 1)
	assert.Equal(t, images.Box{X: 75, Y: 75, Width: 50, Height: 50}, resp.Detections[0].Box)
}

func TestDetect_MultipartBody(t *testing.T) {
	srv := newTestServer(t, newPipeline(t, fakeEngine{}), Options{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "frame.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 320, 240))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/detect", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeResponse(t, rec)
	assert.Equal(t, 320, resp.Width)
	assert.Equal(t, 240, resp.Height)
}

func TestDetect_Annotated(t *testing.T) {
	srv := newTestServer(t, newPipeline(t, fakeEngine{}), Options{})

	req := httptest.NewRequest(http.MethodPost, "/detect?annotate=png", bytes.NewReader(pngBytes(t, 640, 640)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Detections"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 640), img.Bounds())

	r, g, b, a := img.At(75, 75).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0, 0, 0xffff}, [4]uint32{r, g, b, a}, "box outline is drawn")
}

func TestDetect_BadRequests(t *testing.T) {
	srv := newTestServer(t, newPipeline(t, fakeEngine{}), Options{MaxUploadBytes: 1 << 10})

	tests := []struct {
		name        string
		target      string
		contentType string
		body        []byte
		status      int
		code        string
	}{
		{"empty body", "/detect", "", nil, http.StatusBadRequest, "invalid_request"},
		{"not an image", "/detect", "", []byte("hello"), http.StatusBadRequest, "invalid_image"},
		{"bad json", "/detect", "application/json", []byte("{"), http.StatusBadRequest, "invalid_request"},
		{"bad base64", "/detect", "application/json", []byte(`{"image":"%%%"}`), http.StatusBadRequest, "invalid_request"},
		{"bad annotate", "/detect?annotate=gif", "", pngBytes(t, 8, 8), http.StatusBadRequest, "invalid_request"},
		{"too large", "/detect", "", make([]byte, 2<<10), http.StatusRequestEntityTooLarge, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, bytes.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestDetect_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{inference.ErrModelUnavailable, http.StatusServiceUnavailable, "model_unavailable"},
		{errors.Wrap(preprocess.ErrInvalidInput, "zero-sized"), http.StatusBadRequest, "invalid_image"},
		{errors.Wrap(postprocess.ErrInvalidOutput, "length"), http.StatusBadGateway, "invalid_output"},
		{errors.Wrap(context.DeadlineExceeded, "inference failed"), http.StatusGatewayTimeout, "timeout"},
		{errors.Wrap(context.Canceled, "waiting for detector"), http.StatusConflict, "superseded"},
		{errors.New("boom"), http.StatusInternalServerError, "processing_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv := newTestServer(t, &stubDetector{err: tt.err}, Options{})

			req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewReader(pngBytes(t, 8, 8)))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestDetect_NoModelYet(t *testing.T) {
	srv := newTestServer(t, newPipeline(t, nil), Options{})

	req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewReader(pngBytes(t, 8, 8)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDetect_LatestModeSubmits(t *testing.T) {
	stub := &stubDetector{err: errors.New("boom")}
	srv := newTestServer(t, stub, Options{Latest: true})

	req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewReader(pngBytes(t, 8, 8)))
	srv.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, stub.submitted)
}

func TestHealth(t *testing.T) {
	pipeline := newPipeline(t, nil)
	srv := newTestServer(t, pipeline, Options{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, HealthResponse{Status: "loading", Ready: false}, health)

	pipeline.Attach(fakeEngine{})

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, HealthResponse{Status: "ok", Ready: true}, health)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubDetector{}, Options{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detect", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetrics(t *testing.T) {
	prof := profiler.New(0)
	srv := newTestServer(t, newPipeline(t, fakeEngine{}), Options{Profiler: prof})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewReader(pngBytes(t, 64, 64)))
		srv.ServeHTTP(httptest.NewRecorder(), req)
	}
	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/detect", bytes.NewReader([]byte("junk"))))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap profiler.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(3), snap.Counters["requests"])
	assert.Equal(t, int64(2), snap.Operations["inference"].Count)
	assert.Equal(t, int64(2), snap.Operations["total"].Count)
}
