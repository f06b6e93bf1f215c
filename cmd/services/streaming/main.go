package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramahrk/data-pipeline/internal/config"
	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/metrics"
	"github.com/ramahrk/data-pipeline/internal/processor"
	"github.com/ramahrk/data-pipeline/internal/queue"
	"github.com/ramahrk/data-pipeline/internal/reference"
	"github.com/ramahrk/data-pipeline/internal/streaming"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
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

	logger.Info("Streaming service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// 3. Prepare directories
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatal("Failed to create directories", "error", err)
	}

	// 4. Open reference store
	store, err := reference.NewStore(cfg.Paths.Reference)
	if err != nil {
		logger.Fatal("Failed to open reference store", "error", err)
	}

	// 5. Connect to the message bus
	q, err := queue.NewQueue(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to create queue", "error", err)
	}
	defer func() { _ = q.Close() }()

	// 6. Wire processors and the batcher
	met := metrics.NewRegistry()
	procs := processor.New(cfg.Paths, store, met)

	batcher, err := streaming.New(cfg, q, procs, met)
	if err != nil {
		logger.Fatal("Failed to create batcher", "error", err)
	}
	defer func() { _ = batcher.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Serve health and metrics endpoints
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", met.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			logger.Info("Metrics listener started", "addr", cfg.Metrics.ListenAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics listener failed", "error", err)
			}
		}()
	}

	logger.Info("Streaming service started",
		"queue_type", cfg.Queue.Type,
		"batch_size", cfg.Queue.BatchSize,
		"batch_window", cfg.Queue.BatchWindow)

	// 8. Consume until interrupted
	if err := batcher.Run(ctx); err != nil {
		logger.Error("Consumer stopped with error", "error", err)
	}

	// 9. Graceful shutdown
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info("Streaming service stopped")
}
