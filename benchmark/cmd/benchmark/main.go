package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/util"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to detection config file")
		scenarioFile = flag.String("scenarios", "", "Path to scenario set (YAML or JSON)")
		output       = flag.String("output", "./benchmark_results/results.json", "Results file")
		testImages   = flag.String("images", "", "Directory of test images")
		modelPath    = flag.String("model", "", "Path to ONNX model file (overrides config)")
		resolutions  = flag.String("resolutions", "", "Comma-separated source resolutions, e.g. 720p,1080p,4k")
		iterations   = flag.Int("iterations", 50, "Iterations per resolution scenario")
		warmups      = flag.Int("warmup", 5, "Warmup runs per resolution scenario")
		timeout      = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	if *testImages == "" {
		fmt.Fprintln(os.Stderr, "Test images path is required (-images)")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}

	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	set, err := scenarioSet(*scenarioFile, *resolutions, *iterations, *warmups)
	if err != nil {
		log.WithError(err).Fatal("invalid scenarios")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, log, set, *testImages, *output); err != nil {
		log.WithError(err).Fatal("benchmark failed")
	}
}

func scenarioSet(file, resolutions string, iterations, warmups int) (*benchmark.ScenarioSet, error) {
	if file != "" {
		return benchmark.LoadScenarioSet(file)
	}
	if resolutions == "" {
		return benchmark.QuickScenarios(), nil
	}

	var list []images.Resolution
	for _, name := range strings.Split(resolutions, ",") {
		res, err := images.ParseResolution(name)
		if err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	return benchmark.ResolutionScenarios(list, iterations, warmups), nil
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, set *benchmark.ScenarioSet, imageDir, output string) error {
	corpus, err := util.LoadDirectoryImageFiles(imageDir)
	if err != nil {
		return err
	}
	if len(corpus) == 0 {
		return fmt.Errorf("no images found in %s", imageDir)
	}

	dc, err := cfg.DetectorConfig()
	if err != nil {
		return err
	}

	session, err := inference.Load(cfg.SessionConfig())
	if err != nil {
		return err
	}
	defer session.Close()

	det, err := detector.New(session, dc, log)
	if err != nil {
		return err
	}

	suite := benchmark.NewSuite(det, corpus, log)
	for _, scenario := range set.Scenarios {
		suite.AddScenario(scenario)
	}
	fmt.Printf("Loaded %d images, %d scenarios (%s)\n", len(corpus), len(set.Scenarios), set.Name)

	fmt.Println("Starting benchmark execution...")
	start := time.Now()
	if err := suite.RunAllScenarios(ctx); err != nil {
		return err
	}
	fmt.Printf("Benchmark completed in %v\n", time.Since(start))

	results := suite.GetResults()
	if err := benchmark.SaveResults(output, results); err != nil {
		return err
	}

	fmt.Printf("\n=== BENCHMARK RESULTS SUMMARY ===\n")
	fmt.Printf("Total scenarios: %d\n", len(results))
	fmt.Printf("Results saved to: %s\n", output)

	var bestFPS float64
	var bestScenario string
	for _, result := range results {
		if result.FramesPerSecond > bestFPS {
			bestFPS = result.FramesPerSecond
			bestScenario = result.Scenario.Name
		}
		fmt.Printf("  %s: %.2f FPS, inference %v (%.2f MB allocated)\n",
			result.Scenario.Name,
			result.FramesPerSecond,
			result.InferenceDuration,
			float64(result.MemoryStats.TotalAllocBytes)/(1024*1024))
	}

	fmt.Printf("\nBest performing scenario: %s (%.2f FPS)\n", bestScenario, bestFPS)
	return nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Benchmark tool for detection pipeline throughput.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -images ./frames -model ./model.onnx\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "  %s -images ./frames -config ./detect.yaml -resolutions 720p,1080p,4k\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "  %s -images ./frames -scenarios ./scenarios.yaml\n", filepath.Base(os.Args[0]))
	}
}
