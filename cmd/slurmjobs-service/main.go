// slurmjobs-service is the HTTP gateway for managing batch jobs submitted to
// a Slurm cluster: status, bounded waits, output collection, cancellation and
// workspace cleanup.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slurmjobs/internal/api"
	"slurmjobs/internal/config"
	"slurmjobs/internal/health"
	"slurmjobs/internal/job"
	"slurmjobs/internal/notify"
	"slurmjobs/internal/observability"
	"slurmjobs/internal/scheduler"
	"slurmjobs/internal/watch"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Callback notifier for watch registrations
	notifier := notify.NewMemory(notify.MemoryConfig{
		BufferSize:  cfg.Notifier.BufferSize,
		Workers:     cfg.Notifier.Workers,
		HTTPTimeout: cfg.Notifier.HTTPTimeout,
	}, metrics)

	// Scheduler CLI adapter
	slurm := scheduler.NewSlurm(scheduler.SlurmConfig{
		SqueuePath:  cfg.Scheduler.SqueuePath,
		ScancelPath: cfg.Scheduler.ScancelPath,
	})

	controller, err := job.NewController(job.Config{
		Client:  slurm,
		BaseDir: cfg.BaseDir,
		DefaultWait: job.WaitOptions{
			PollInterval: cfg.Wait.PollInterval,
			MaxInterval:  cfg.Wait.MaxInterval,
			Timeout:      cfg.Wait.Timeout,
		},
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	watcher := watch.NewWatcher(controller, notifier)
	healthChecker := health.NewChecker(slurm)

	router := api.NewRouter(api.RouterConfig{
		Controller:    controller,
		Watcher:       watcher,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        cfg.APIKey,
	})

	if cfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API key configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", cfg.Port, "baseDir", cfg.BaseDir)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if cfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", cfg.ShutdownDrainWait)
		time.Sleep(cfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Abort in-flight watches; their jobs keep running in the
	// scheduler and can be re-watched after restart.
	slog.Info("Stopping watchers")
	watchCtx, watchCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer watchCancel()
	if err := watcher.Close(watchCtx); err != nil {
		slog.Warn("Watcher shutdown error", "error", err)
	}

	// Phase 4: Drain the callback notifier
	slog.Info("Draining callback notifier")
	notifierCtx, notifierCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer notifierCancel()
	if err := notifier.Close(notifierCtx); err != nil {
		slog.Warn("Notifier shutdown error", "error", err)
	}

	// Log final notifier stats
	stats := notifier.Stats()
	slog.Info("Notifier stats",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)

	slog.Info("Shutdown complete")
	return nil
}
