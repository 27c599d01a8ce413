package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"cashflow/internal/cli"
	"cashflow/internal/log"
	"cashflow/internal/services"
	"cashflow/internal/worker"
)

func main() {
	// Load .env file for local development (missing files are ignored)
	if err := cli.LoadEnvFile(); err != nil {
		slog.Error("Failed to load env file", "error", err)
		os.Exit(1)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger, err := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	if err != nil {
		slog.Error("Invalid log level", "error", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.InfoContext(ctx, "Starting projection-worker",
		log.FieldBackend, cfg.DataBackend,
		log.FieldHorizon, cfg.ForecastHorizon,
		"schedule", cfg.RefreshSchedule,
		"amqp_enabled", cfg.AMQPURL != "")

	result, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.ErrorContext(context.Background(), "Cleanup failed", log.FieldError, err)
		}
	}()

	initial, err := cfg.Balance()
	if err != nil {
		logger.ErrorContext(ctx, "Invalid initial balance", log.FieldError, err)
		os.Exit(1)
	}

	store := result.Store
	projector := services.NewProjector(store, store)
	forecaster := services.NewForecaster(projector, store)
	w := worker.NewProjectionWorker(projector, forecaster, store, worker.Config{
		Horizon:        cfg.ForecastHorizon,
		InitialBalance: initial,
		Schedule:       cfg.RefreshSchedule,
	})

	// Refresh once on startup so the horizon is never older than the process
	if _, err := w.RefreshHorizon(ctx, time.Now()); err != nil {
		logger.WarnContext(ctx, "Initial horizon refresh incomplete", log.FieldError, err)
	}

	var consumer worker.Consumer
	if result.Broker != nil {
		consumer = result.Broker
	} else {
		logger.InfoContext(ctx, "AMQP disabled, relying on the scheduled refresh only")
	}

	if err := w.Run(ctx, consumer); err != nil {
		logger.ErrorContext(ctx, "Projection worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	logger.InfoContext(context.Background(), "Projection worker shutdown complete")
}
