package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramahrk/data-pipeline/internal/config"
	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/metrics"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/pipeline"
	"github.com/ramahrk/data-pipeline/internal/processor"
	"github.com/ramahrk/data-pipeline/internal/reference"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	startDate := flag.String("start-date", "", "First date to process (YYYY-MM-DD, default: today)")
	endDate := flag.String("end-date", "", "Last date to process (YYYY-MM-DD, default: start date)")
	hourFlag := flag.Int("hour", -1, "Single hour to process (0-23, default: all hours)")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Batch pipeline starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	var hour *int
	if *hourFlag >= 0 {
		if *hourFlag > 23 {
			logger.Fatal("Invalid hour", "hour", *hourFlag)
		}
		hour = hourFlag
	}

	// 3. Prepare directories
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatal("Failed to create directories", "error", err)
	}

	// 4. Open reference store
	store, err := reference.NewStore(cfg.Paths.Reference)
	if err != nil {
		logger.Fatal("Failed to open reference store", "error", err)
	}

	// 5. Wire processors and orchestrator
	met := metrics.NewRegistry()
	procs := processor.New(cfg.Paths, store, met)
	orch := pipeline.New(cfg, procs, met)

	// 6. Cancel on interrupt; the in-flight partition still finishes
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := orch.Run(ctx, *startDate, *endDate, hour); err != nil {
		logger.Error("Pipeline run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Pipeline run complete",
		"start_date", orDefault(*startDate), "end_date", orDefault(*endDate),
		"duration", time.Since(start))
}

func orDefault(date string) string {
	if date == "" {
		return time.Now().Format(partition.DateFormat)
	}
	return date
}
