// Package store defines the record store interface shared by every service.
package store

import (
	"context"

	"github.com/game-leaderboard/internal/domain"
)

// DefaultPageSize is used by ScanAll when the caller passes a non-positive page size.
const DefaultPageSize = 1000

// PageFunc receives one page of a full scan. Returning an error stops the scan.
type PageFunc func(page []domain.ScoreRecord) error

// RecordStore is the persistent table keyed by (player, game) with a per-game score index.
type RecordStore interface {
	// Get returns the record for the pair, or domain.ErrRecordNotFound.
	Get(ctx context.Context, playerID, gameID string) (*domain.ScoreRecord, error)

	// Put writes the record unconditionally, replacing any stored one.
	Put(ctx context.Context, record domain.ScoreRecord) error

	// PutIfHigher writes the record only if no record exists for the pair or the
	// stored score is strictly lower. The check and write are atomic.
	PutIfHigher(ctx context.Context, record domain.ScoreRecord) (domain.WriteResult, error)

	// QueryByPlayer returns every record of a player across all games.
	QueryByPlayer(ctx context.Context, playerID string) ([]domain.ScoreRecord, error)

	// QueryByGame returns at most limit records of a game ordered by score
	// descending, ties by player ID ascending.
	QueryByGame(ctx context.Context, gameID string, limit int) ([]domain.ScoreRecord, error)

	// ScanAll visits every stored record page by page until exhausted.
	ScanAll(ctx context.Context, pageSize int, fn PageFunc) error

	Ping(ctx context.Context) error
	Close() error
}

// Migrator is implemented by stores that own a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}
