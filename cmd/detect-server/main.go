package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-detect/api"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/profiler"
	"github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
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

	if err := serve(cfg, log); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

func serve(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dc, err := cfg.DetectorConfig()
	if err != nil {
		return err
	}

	// Requests fail with 503 until the model is attached.
	det, err := detector.New(nil, dc, log)
	if err != nil {
		return err
	}

	sessions := make(chan *inference.Session, 1)
	go func() {
		start := time.Now()
		session, err := inference.Load(cfg.SessionConfig())
		if err != nil {
			log.WithError(err).Error("failed to load model")
			close(sessions)
			return
		}
		det.Attach(session)
		log.WithFields(logrus.Fields{
			"model":   cfg.Model.Path,
			"outputs": session.OutputNames(),
			"elapsed": time.Since(start),
		}).Info("model loaded")
		sessions <- session
	}()

	prof := profiler.New(0)
	if cfg.Server.ReportInterval > 0 {
		go prof.Report(ctx, cfg.Server.ReportInterval, log)
	}

	srv := &http.Server{
		Addr: cfg.Server.Listen,
		Handler: api.NewServer(det, api.Options{
			Latest:         cfg.Server.Mode == config.ModeLatest,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			Log:            log,
			Profiler:       prof,
		}).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr": srv.Addr,
			"mode": cfg.Server.Mode,
		}).Info("starting server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown incomplete")
		}
	}

	// A model still loading is abandoned with the process.
	select {
	case session, ok := <-sessions:
		if ok {
			det.Attach(nil)
			return session.Close()
		}
	default:
	}
	return nil
}
