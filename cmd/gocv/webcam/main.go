//go:build gocv

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/render"
	"gocv.io/x/gocv"
)

const escKey = 27

func main() {
	var (
		configPath string
		deviceID   int
		showWindow bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.IntVar(&deviceID, "device", 0, "Video capture device ID")
	flag.BoolVar(&showWindow, "show-window", true, "Show visualization window")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	dc, err := cfg.DetectorConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid detector config")
	}
	session, err := inference.Load(cfg.SessionConfig())
	if err != nil {
		log.WithError(err).Fatal("failed to load model")
	}
	defer session.Close()

	det, err := detector.New(session, dc, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create detector")
	}

	renderer, err := render.NewMatRenderer()
	if err != nil {
		log.WithError(err).Fatal("failed to create renderer")
	}

	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		log.WithError(err).Fatal("failed to open capture device")
	}
	defer webcam.Close()

	var window *gocv.Window
	if showWindow {
		window = gocv.NewWindow("Detect")
		defer window.Close()
	}

	img := gocv.NewMat()
	defer img.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// FPS tracking variables
	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	fmt.Printf("start reading camera device: %v\n", deviceID)
	for ctx.Err() == nil {
		if ok := webcam.Read(&img); !ok {
			fmt.Printf("cannot read device %v\n", deviceID)
			return
		}
		if img.Empty() {
			continue
		}

		frameCount++
		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = time.Now()
		}

		frame, err := img.ToImage()
		if err != nil {
			log.WithError(err).Warn("failed to convert frame")
			continue
		}

		result, err := det.Detect(ctx, frame)
		if err != nil {
			log.WithError(err).Warn("detection failed")
			continue
		}
		fmt.Printf("found %d objects | FPS: %.2f | inference %v\n", len(result.Detections), fps, result.Timings.Inference)

		if window != nil {
			renderer.RenderMat(&img, result.Detections)
			window.IMShow(img)
			if window.WaitKey(1) == escKey {
				return
			}
		}
	}
}
