// Package config - Configuration loading for the detection binaries.
package config

import (
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment keys read by ApplyEnv.
const (
	EnvModelPath  = "DETECT_MODEL_PATH"
	EnvORTLibrary = "DETECT_ORT_LIB"
	EnvConfidence = "DETECT_CONFIDENCE"
	EnvIoU        = "DETECT_IOU"
	EnvLogLevel   = "DETECT_LOG_LEVEL"
	EnvListen     = "DETECT_LISTEN"
)

// Server modes.
const (
	// ModeQueue serves every request in arrival order.
	ModeQueue = "queue"
	// ModeLatest cancels the in-flight request when a new one arrives.
	ModeLatest = "latest"
)

// Config is the top-level configuration.
type Config struct {
	Model     ModelConfig     `json:"model" yaml:"model"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// ModelConfig describes the model file and how to feed it.
type ModelConfig struct {
	// The path to the ONNX model file.
	Path string `json:"path" yaml:"path"`
	// The onnxruntime shared library. Empty uses the platform default.
	SharedLibrary string `json:"shared_library" yaml:"shared_library"`
	// The model input node name.
	InputName string `json:"input_name" yaml:"input_name"`
	// The model output to decode. Empty uses the first output.
	OutputName string `json:"output_name" yaml:"output_name"`
	// The model input width in pixels.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// The model input height in pixels.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// The resampling filter: nearest, bilinear or lanczos3.
	Interpolation string `json:"interpolation" yaml:"interpolation"`
	// Whether nearest sampling aligns the corner pixels.
	AlignCorners bool `json:"align_corners" yaml:"align_corners"`
	// The output layout: auto, records or channels.
	Layout string `json:"layout" yaml:"layout"`
	// The execution provider.
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// DetectionConfig tunes decoding and suppression.
type DetectionConfig struct {
	// A registered class set: carparts, yolo, coco or voc.
	Classes string `json:"classes" yaml:"classes"`
	// Inline labels. Takes precedence over Classes.
	Labels []string `json:"labels" yaml:"labels"`
	// Class scores per record. Zero uses the class set size.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// The objectness gate.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// The suppression overlap threshold.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// Suppress only within the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
	// Goroutines per suppression round.
	NMSWorkers int `json:"nms_workers" yaml:"nms_workers"`
	// Bound on a single model run.
	InferenceTimeout time.Duration `json:"inference_timeout" yaml:"inference_timeout"`
	// Labels to report. Empty reports all.
	RelevantClasses []string `json:"relevant_classes" yaml:"relevant_classes"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen         string        `json:"listen" yaml:"listen"`
	Mode           string        `json:"mode" yaml:"mode"`
	MaxUploadBytes int64         `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
	// How often stage timings are logged. Zero disables the report.
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	// trace, debug, info, warn or error.
	Level string `json:"level" yaml:"level"`
	// text or json.
	Format string `json:"format" yaml:"format"`
	// Optional file that receives a copy of the log.
	File string `json:"file" yaml:"file"`
}

// Default returns the configuration of the 7-class vehicle part model.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Path:          "model.onnx",
			InputName:     inference.DefaultInputName,
			InputWidth:    640,
			InputHeight:   640,
			Interpolation: string(preprocess.InterpolationNearest),
			Layout:        string(postprocess.LayoutAuto),
			Provider:      providers.DefaultConfig(),
		},
		Detection: DetectionConfig{
			Classes:             string(models.ModelFamilyCarParts),
			ConfidenceThreshold: 0.5,
			IoUThreshold:        0.5,
			NMSWorkers:          1,
			InferenceTimeout:    detector.DefaultInferenceTimeout,
		},
		Server: ServerConfig{
			Listen:         ":8080",
			Mode:           ModeQueue,
			MaxUploadBytes: 20 << 20,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			ReportInterval: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, a
// .env file in the working directory and the environment, in that order.
//
// Arguments:
//   - path: The YAML file. Empty skips the file.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: A read, parse or validation error.
func Load(path string) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays a YAML file onto the configuration.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "failed to parse config %s", path)
	}
	return nil
}

// ApplyEnv overlays the DETECT_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvModelPath); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv(EnvORTLibrary); v != "" {
		c.Model.SharedLibrary = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv(EnvConfidence); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvConfidence)
		}
		c.Detection.ConfidenceThreshold = float32(f)
	}
	if v := os.Getenv(EnvIoU); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvIoU)
		}
		c.Detection.IoUThreshold = float32(f)
	}
	return nil
}

// Validate checks the configuration by building the derived configurations.
func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	switch c.Server.Mode {
	case ModeQueue, ModeLatest:
	default:
		return errors.Errorf("server.mode must be %q or %q, got %q", ModeQueue, ModeLatest, c.Server.Mode)
	}
	if _, err := c.DetectorConfig(); err != nil {
		return err
	}
	if err := c.SessionConfig().Validate(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ClassSet resolves the configured labels.
func (c *Config) ClassSet() (*models.ClassSet, error) {
	if len(c.Detection.Labels) > 0 {
		return models.NewClassSet(models.ModelFamilyCustom, c.Detection.Labels...), nil
	}
	return models.LookupClassSet(c.Detection.Classes)
}

// DetectorConfig converts the configuration for detector.New.
func (c *Config) DetectorConfig() (detector.Config, error) {
	classes, err := c.ClassSet()
	if err != nil {
		return detector.Config{}, err
	}

	interp, err := preprocess.ParseInterpolation(c.Model.Interpolation)
	if err != nil {
		return detector.Config{}, err
	}

	layout, err := postprocess.ParseLayout(strings.ToLower(c.Model.Layout))
	if err != nil {
		return detector.Config{}, err
	}

	cfg := detector.Config{
		InputShape:          image.Pt(c.Model.InputWidth, c.Model.InputHeight),
		Interpolation:       interp,
		AlignCorners:        c.Model.AlignCorners,
		Classes:             classes,
		NumClasses:          c.Detection.NumClasses,
		ConfidenceThreshold: c.Detection.ConfidenceThreshold,
		NMS: postprocess.NMSConfig{
			IoUThreshold: c.Detection.IoUThreshold,
			ClassAware:   c.Detection.ClassAware,
			NumWorkers:   c.Detection.NMSWorkers,
		},
		Layout:           layout,
		OutputName:       c.Model.OutputName,
		InferenceTimeout: c.Detection.InferenceTimeout,
		RelevantClasses:  c.Detection.RelevantClasses,
	}
	if err := cfg.Validate(); err != nil {
		return detector.Config{}, err
	}
	return cfg, nil
}

// SessionConfig converts the configuration for inference.Load.
//
// When an output name is configured only that output is fetched.
func (c *Config) SessionConfig() inference.Config {
	cfg := inference.Config{
		ModelPath:         c.Model.Path,
		SharedLibraryPath: c.Model.SharedLibrary,
		InputName:         c.Model.InputName,
		Provider:          c.Model.Provider,
	}
	if c.Model.OutputName != "" {
		cfg.OutputNames = []string{c.Model.OutputName}
	}
	return cfg
}
