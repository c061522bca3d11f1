package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/render"
	"github.com/sirupsen/logrus"
)

// Supported file extensions
var supportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp"}

func main() {
	var (
		configPath string
		imagePath  string
		outPath    string
		modelPath  string
		rendererID string
		confidence float64
		iou        float64
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&imagePath, "image", "", "Path to image file (.jpg, .jpeg, .png, .bmp, .gif, .webp)")
	flag.StringVar(&outPath, "out", "", "Annotated output path (default processed_<image>)")
	flag.StringVar(&modelPath, "model", "", "Path to ONNX model file (overrides config)")
	flag.StringVar(&rendererID, "renderer", "image", "Annotation renderer: image or gocv")
	flag.Float64Var(&confidence, "confidence", 0.5, "Objectness threshold")
	flag.Float64Var(&iou, "iou", 0.5, "Suppression IoU threshold")
	flag.Parse()

	if err := validateFile(imagePath, supportedImageExtensions); err != nil {
		fmt.Fprintf(os.Stderr, "image validation error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Explicit flags win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Model.Path = modelPath
		case "confidence":
			cfg.Detection.ConfidenceThreshold = float32(confidence)
		case "iou":
			cfg.Detection.IoUThreshold = float32(iou)
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if outPath == "" {
		outPath = defaultOutputPath(imagePath)
	}

	if err := run(cfg, log, imagePath, outPath, rendererID); err != nil {
		log.WithError(err).Fatal("detection failed")
	}
}

func run(cfg *config.Config, log *logrus.Logger, imagePath, outPath, rendererID string) error {
	renderer, err := newRenderer(rendererID)
	if err != nil {
		return err
	}

	format, err := images.ParseFormat(filepath.Ext(outPath))
	if err != nil {
		return err
	}

	img, meta, err := images.Load(imagePath)
	if err != nil {
		return err
	}
	fmt.Printf("Processing image: %s\n", imagePath)
	fmt.Printf("Image size: %dx%d (%s)\n", meta.Width, meta.Height, meta.Format)

	dc, err := cfg.DetectorConfig()
	if err != nil {
		return err
	}

	session, err := inference.Load(cfg.SessionConfig())
	if err != nil {
		return err
	}
	defer session.Close()
	log.WithFields(logrus.Fields{
		"model":   cfg.Model.Path,
		"input":   session.InputNames(),
		"outputs": session.OutputNames(),
	}).Info("model loaded")

	det, err := detector.New(session, dc, log)
	if err != nil {
		return err
	}

	result, err := det.Detect(context.Background(), img)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d objects in %v\n", len(result.Detections), result.Timings.Total)
	for i, d := range result.Detections {
		fmt.Printf("Object %d: %s (confidence: %.2f) at x=%.1f y=%.1f w=%.1f h=%.1f\n",
			i+1, d.Label, d.Confidence, d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height)
	}

	annotated, err := render.Annotate(img, renderer, result.Detections)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := render.Encode(out, annotated, format, render.DefaultQuality); err != nil {
		out.Close()
		os.Remove(outPath)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Printf("Processed image saved to: %s\n", outPath)
	return nil
}

func newRenderer(id string) (render.Renderer, error) {
	switch strings.ToLower(id) {
	case "", "image":
		return render.NewImageRenderer(), nil
	case "gocv":
		return render.NewMatRenderer()
	}
	return nil, fmt.Errorf("unknown renderer %q", id)
}

// defaultOutputPath places processed_<name> next to the input, as JPEG when
// the input format cannot be encoded.
func defaultOutputPath(imagePath string) string {
	dir, base := filepath.Split(imagePath)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		base = strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
	}
	return filepath.Join(dir, "processed_"+base)
}

// validateFile checks if the file exists and has a supported extension
func validateFile(filePath string, supportedExtensions []string) error {
	if filePath == "" {
		return fmt.Errorf("-image is required")
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	for _, supportedExt := range supportedExtensions {
		if ext == supportedExt {
			return nil
		}
	}
	return fmt.Errorf("unsupported file extension: %s (supported: %v)", ext, supportedExtensions)
}
