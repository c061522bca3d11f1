// Package api - HTTP upload surface for the detection pipeline.
package api

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/profiler"
	"github.com/nvr-ai/go-detect/render"
	"github.com/sirupsen/logrus"
)

// DefaultMaxUploadBytes bounds request bodies when Options.MaxUploadBytes is zero.
const DefaultMaxUploadBytes = 20 << 20

// Detector is the pipeline the server drives. *detector.Detector implements it.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*detector.Result, error)
	Submit(ctx context.Context, img image.Image) (*detector.Result, error)
	Ready() bool
}

// Options configures the server.
type Options struct {
	// Latest cancels the in-flight request when a new one arrives.
	// Otherwise requests queue for the pipeline.
	Latest bool
	// MaxUploadBytes bounds the request body.
	MaxUploadBytes int64
	// Renderer draws annotated responses. Nil uses render.NewImageRenderer.
	Renderer render.Renderer
	// Log receives request logs. Nil uses the standard logrus logger.
	Log logrus.FieldLogger
	// Profiler aggregates stage timings for GET /metrics. Nil creates one.
	Profiler *profiler.Profiler
}

// Server serves detection requests.
type Server struct {
	det      Detector
	opts     Options
	renderer render.Renderer
	log      logrus.FieldLogger
	profiler *profiler.Profiler
}

// DetectResponse is the JSON body of a successful detection.
type DetectResponse struct {
	RequestID string `json:"request_id"`
	*detector.Result
}

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewServer creates a server for the given pipeline.
func NewServer(det Detector, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.NewImageRenderer()
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	prof := opts.Profiler
	if prof == nil {
		prof = profiler.New(0)
	}
	return &Server{det: det, opts: opts, renderer: renderer, log: log, profiler: prof}
}

// Router returns the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.Use(s.logRequests)
	return r
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)
	log := s.log.WithField("request_id", requestID)
	s.profiler.Increment("requests")

	var annotate images.ImageFormat
	if v := r.URL.Query().Get("annotate"); v != "" {
		format, err := annotationFormat(v)
		if err != nil {
			sendError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		annotate = format
	}

	data, err := readImage(w, r, s.opts.MaxUploadBytes)
	if err != nil {
		status := http.StatusBadRequest
		if isTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		sendError(w, "invalid_request", err.Error(), status)
		return
	}

	decodeStart := time.Now()
	img, meta, err := images.Decode(data)
	if err != nil {
		sendError(w, "invalid_image", err.Error(), http.StatusBadRequest)
		return
	}
	decodeTime := time.Since(decodeStart)

	var result *detector.Result
	if s.opts.Latest {
		result, err = s.det.Submit(r.Context(), img)
	} else {
		result, err = s.det.Detect(r.Context(), img)
	}
	if err != nil {
		status, code := statusFor(err)
		s.profiler.Increment("errors")
		log.WithError(err).WithField("status", status).Warn("detection failed")
		sendError(w, code, err.Error(), status)
		return
	}

	s.recordTimings(decodeTime, result.Timings)

	log.WithFields(logrus.Fields{
		"format":     meta.Format,
		"width":      meta.Width,
		"height":     meta.Height,
		"detections": len(result.Detections),
		"decode":     decodeTime,
		"preprocess": result.Timings.Preprocess,
		"inference":  result.Timings.Inference,
		"total":      result.Timings.Total,
	}).Debug("processing times")

	if annotate != "" {
		s.sendAnnotated(w, img, result, annotate)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(DetectResponse{RequestID: requestID, Result: result})
}

func (s *Server) sendAnnotated(w http.ResponseWriter, img image.Image, result *detector.Result, format images.ImageFormat) {
	out, err := render.Annotate(img, s.renderer, result.Detections)
	if err != nil {
		sendError(w, "render_error", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Detections", strconv.Itoa(len(result.Detections)))
	if err := render.Encode(w, out, format, render.DefaultQuality); err != nil {
		s.log.WithError(err).Error("failed to encode annotated image")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok", Ready: s.det.Ready()}
	status := http.StatusOK
	if !resp.Ready {
		resp.Status = "loading"
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.profiler.Snapshot())
}

func (s *Server) recordTimings(decode time.Duration, t detector.Timings) {
	s.profiler.RecordOperation("decode_image", decode)
	s.profiler.RecordOperation("preprocess", t.Preprocess)
	s.profiler.RecordOperation("inference", t.Inference)
	s.profiler.RecordOperation("decode_output", t.Decode)
	s.profiler.RecordOperation("suppress", t.Suppress)
	s.profiler.RecordOperation("rescale", t.Rescale)
	s.profiler.RecordOperation("total", t.Total)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start),
		}).Info("request")
	})
}

func sendError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
