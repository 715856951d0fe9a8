package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/cadenza/internal/adapters/http/api"
	"github.com/okian/cadenza/internal/adapters/provider"
	app "github.com/okian/cadenza/internal/app"
	"github.com/okian/cadenza/internal/config"
	"github.com/okian/cadenza/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	latencyMin := time.Duration(cfg.ProviderLatencyMinMS) * time.Millisecond
	latencyMax := time.Duration(cfg.ProviderLatencyMaxMS) * time.Millisecond

	// Create and start the service with configuration options
	svc := app.New(
		app.WithLogger(loggerInstance),
		app.WithScrobblesPath(cfg.ScrobblesPath),
		app.WithCheckpointDir(cfg.CheckpointDir),
		app.WithDatasetPath(cfg.DatasetPath),
		app.WithUpdateCachePath(cfg.UpdateCachePath),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithBatchSize(cfg.BatchSize),
		app.WithCallDelay(time.Duration(cfg.CallDelayMS)*time.Millisecond),
		app.WithMonitorInterval(time.Duration(cfg.MonitorIntervalSec)*time.Second),
		app.WithProviderFactory(func(int) (provider.Client, error) {
			return provider.NewSimClient(provider.WithSimLatencyRange(latencyMin, latencyMax)), nil
		}),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Propagate signal cancellation into a cooperative stop so in-flight
	// batches finish at an item boundary before the process exits.
	svc.Stopper().Watch(ctx)

	// Kick off the enrichment run; the process keeps serving the ops API
	// after the run completes so progress and updates stay inspectable.
	go func() {
		summary, err := svc.RunEnrichment(ctx)
		if err != nil {
			loggerInstance.Error(ctx, "enrichment run failed", logger.Error(err))
			return
		}
		loggerInstance.Info(ctx, "enrichment run finished",
			logger.String("run_id", summary.RunID),
			logger.Int("processed", summary.Processed),
			logger.Int("succeeded", summary.Succeeded),
			logger.Int("failed", summary.Failed),
			logger.Any("stopped", summary.Stopped),
		)
	}()

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register ops API routes with the service dependency.
	apiServer := api.NewServer(svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}
