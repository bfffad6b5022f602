package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"cdc/internal/backend"
	"cdc/internal/cli"
	apphttp "cdc/internal/http"
	"cdc/internal/log"
	"cdc/internal/middleware/ratelimit"
	"cdc/internal/middleware/security"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	opts := apphttp.DefaultServerOptions()
	opts.MaxUploadBytes = cfg.MaxUploadBytes
	opts.RateLimit = ratelimit.Config{RequestsPerMinute: cfg.RateLimitRPM, CleanupInterval: 5 * time.Minute}
	opts.CORS = security.DefaultCORSConfig()
	opts.CORS.AllowedOrigins = cfg.CORSOrigins
	opts.Ready = res.Ready
	opts.Logger = logger

	srv := apphttp.NewServer(":"+cfg.Port, res.Service, opts)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting cdc server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
