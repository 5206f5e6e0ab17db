package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/game-leaderboard/internal/config"
	"github.com/game-leaderboard/internal/kafka"
	"github.com/game-leaderboard/internal/notify"
	"github.com/game-leaderboard/internal/pubsub"
	"github.com/joho/godotenv"
)

// loadConfig reads .env and the config file, falling back to defaults when the file is unreadable
func loadConfig() (*config.Config, *slog.Logger) {
	envErr := godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err != nil {
		logger.Warn("failed to load config file, using defaults", "path", configPath, "error", err)
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", envErr)
	}
	return cfg, logger
}

// buildPublishers adds the configured external sinks to multi and returns their closers
func buildPublishers(ctx context.Context, cfg *config.Config, multi *notify.Multi, logger *slog.Logger) ([]io.Closer, error) {
	var closers []io.Closer

	if cfg.Notify.HasSink("kafka") {
		p, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Notify.KafkaTopic, logger)
		if err != nil {
			return closers, fmt.Errorf("kafka notifier: %w", err)
		}
		multi.Add("kafka", p)
		closers = append(closers, p)
		logger.Info("kafka notifier enabled", "topic", cfg.Notify.KafkaTopic)
	}

	if cfg.Notify.HasSink("pubsub") {
		p, err := pubsub.NewPublisher(ctx, cfg.Notify.PubSubProject, cfg.Notify.PubSubTopic, logger)
		if err != nil {
			return closers, fmt.Errorf("pubsub notifier: %w", err)
		}
		multi.Add("pubsub", p)
		closers = append(closers, p)
		logger.Info("pubsub notifier enabled", "project", cfg.Notify.PubSubProject, "topic", cfg.Notify.PubSubTopic)
	}

	return closers, nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("failed to close notifier", "error", err)
		}
	}
}
