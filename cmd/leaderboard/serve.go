package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/game-leaderboard/internal/handler"
	"github.com/game-leaderboard/internal/kafka"
	"github.com/game-leaderboard/internal/metrics"
	"github.com/game-leaderboard/internal/notify"
	"github.com/game-leaderboard/internal/service"
	"github.com/game-leaderboard/internal/store/backend"
	"github.com/game-leaderboard/internal/websocket"
	"github.com/game-leaderboard/internal/worker"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, websocket feed, stats scheduler and Kafka ingest",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	cfg, logger := loadConfig()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := backend.Open(ctx, &cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := backend.Migrate(ctx, st, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	m := metrics.NewService()

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	notifier := notify.NewMulti(m, logger, notify.Sink{Name: "websocket", Notifier: wsHub})
	closers, err := buildPublishers(ctx, cfg, notifier, logger)
	defer closeAll(closers, logger)
	if err != nil {
		return err
	}

	submissions := service.NewSubmissionService(st, m, logger)
	statsJob := worker.NewStatsJob(st, notifier, m, cfg.Stats.PageSize, logger)

	scheduler := worker.NewScheduler(statsJob, &cfg.Stats, logger)
	if cfg.Stats.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("starting stats scheduler: %w", err)
		}
	}

	// Kafka ingest is optional; the API keeps serving without it
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, submissions, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			kafkaConsumer = nil
		}
	}

	httpHandler := handler.NewHandler(handler.Dependencies{
		Submissions:    submissions,
		Rankings:       service.NewRankingService(st, &cfg.Leaderboard, m, logger),
		Players:        service.NewPlayerStatsService(st, m, logger),
		Stats:          statsJob,
		Store:          st,
		Hub:            wsHub,
		Metrics:        metrics.NewHandler(),
		RequestTimeout: cfg.Server.RequestTimeout,
		StatsTimeout:   cfg.Stats.Timeout,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "backend", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := scheduler.Stop(); err != nil {
		logger.Error("failed to stop stats scheduler", "error", err)
	}

	wsHub.Stop()

	logger.Info("server stopped")
	return nil
}
