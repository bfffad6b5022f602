package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cdc/internal/backend"
	"cdc/internal/cli"
	"cdc/internal/log"
	"cdc/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting cdc-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	if res.Events == nil {
		logger.Error("AMQP client unavailable, nothing to consume")
		_ = res.Cleanup()
		os.Exit(1)
	}

	reports := worker.NewReportWorker(res.Service, cfg.WorkerConcurrency, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	// Reports missed while the worker was down
	logger.Info("Performing startup backfill...")
	if err := reports.StartupBackfill(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Startup backfill failed", log.FieldError, err)
	}

	go func() {
		if err := res.Events.ConsumeSnapshotChanged(ctx, reports.HandleSnapshotChanged); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
