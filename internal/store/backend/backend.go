// Package backend opens the record store selected in configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/game-leaderboard/internal/config"
	"github.com/game-leaderboard/internal/postgres"
	"github.com/game-leaderboard/internal/redis"
	"github.com/game-leaderboard/internal/sqlite"
	"github.com/game-leaderboard/internal/store"
)

var (
	_ store.RecordStore = (*redis.Store)(nil)
	_ store.RecordStore = (*postgres.Store)(nil)
	_ store.RecordStore = (*sqlite.Store)(nil)

	_ store.Migrator = (*postgres.Store)(nil)
	_ store.Migrator = (*sqlite.Store)(nil)
)

// Open connects to the configured backend
func Open(ctx context.Context, cfg *config.StoreConfig, logger *slog.Logger) (store.RecordStore, error) {
	logger = logger.With("backend", cfg.Backend)

	switch cfg.Backend {
	case config.BackendRedis:
		s, err := redis.NewStore(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.NewStore(ctx, &cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgresql", "host", cfg.Postgres.Host)
		return s, nil
	case config.BackendSQLite:
		s, err := sqlite.NewStore(ctx, cfg.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite database", "path", cfg.SQLite.Path)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Migrate applies schema migrations when the store has a schema
func Migrate(ctx context.Context, s store.RecordStore, logger *slog.Logger) error {
	m, ok := s.(store.Migrator)
	if !ok {
		logger.Info("store has no schema to migrate")
		return nil
	}
	return m.Migrate(ctx)
}
