package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"envelopes/internal/amqp"
	"envelopes/internal/backend"
	"envelopes/internal/config"
	"envelopes/internal/engine"
	applog "envelopes/internal/log"
	"envelopes/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger := applog.New(applog.Config{
		Level:     logLevel(cfg.LogLevel),
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting envelopes-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The worker only reads balances; it must not republish activity.
	backendCfg.AMQPURL = ""

	factory := backend.NewFactory(logger.Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	eng := engine.New(result.Store, nil)
	alerts := worker.NewAlertWorker(eng, cfg.AlertCooldown)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Consuming activity events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"cooldown", cfg.AlertCooldown.String())

	if err := amqpClient.ConsumeActivity(ctx, func(msg *amqp.ActivityMessage) error {
		return alerts.HandleActivityMessage(ctx, msg)
	}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Activity consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
