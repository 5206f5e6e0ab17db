package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/game-leaderboard/internal/config"
	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const recordColumns = `player_id, game_id, score, player_name, timestamp_ms, submitted_at`

// Store provides PostgreSQL-based record storage
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a connection pool and verifies the connection
func NewStore(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema migrations
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("opening migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	s.logger.Info("database migrations completed", "applied", len(results))
	return nil
}

func scanRecord(row pgx.Row) (domain.ScoreRecord, error) {
	var r domain.ScoreRecord
	err := row.Scan(&r.PlayerID, &r.GameID, &r.Score, &r.PlayerName, &r.Timestamp, &r.SubmittedAt)
	return r, err
}

func collectRecords(rows pgx.Rows) ([]domain.ScoreRecord, error) {
	defer rows.Close()

	records := []domain.ScoreRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// Get retrieves the record for a (player, game) pair
func (s *Store) Get(ctx context.Context, playerID, gameID string) (*domain.ScoreRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM game_scores WHERE player_id = $1 AND game_id = $2`

	r, err := scanRecord(s.pool.QueryRow(ctx, query, playerID, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return &r, nil
}

// Put inserts or replaces a record
func (s *Store) Put(ctx context.Context, r domain.ScoreRecord) error {
	query := `
		INSERT INTO game_scores (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, game_id)
		DO UPDATE SET
			score = EXCLUDED.score,
			player_name = EXCLUDED.player_name,
			timestamp_ms = EXCLUDED.timestamp_ms,
			submitted_at = EXCLUDED.submitted_at
	`
	_, err := s.pool.Exec(ctx, query, r.PlayerID, r.GameID, r.Score, r.PlayerName, r.Timestamp, r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("putting record: %w", err)
	}
	return nil
}

// PutIfHigher locks the stored row and replaces it only when the candidate
// score is strictly higher. A new pair is inserted without overwriting a row a
// concurrent writer created first.
func (s *Store) PutIfHigher(ctx context.Context, r domain.ScoreRecord) (domain.WriteResult, error) {
	const (
		lockQuery = `SELECT score FROM game_scores WHERE player_id = $1 AND game_id = $2 FOR UPDATE`
		insert    = `
			INSERT INTO game_scores (` + recordColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (player_id, game_id) DO NOTHING
		`
		update = `
			UPDATE game_scores
			SET score = $3, player_name = $4, timestamp_ms = $5, submitted_at = $6
			WHERE player_id = $1 AND game_id = $2
		`
	)
	args := []any{r.PlayerID, r.GameID, r.Score, r.PlayerName, r.Timestamp, r.SubmittedAt}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous int64
	err = tx.QueryRow(ctx, lockQuery, r.PlayerID, r.GameID).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		tag, err := tx.Exec(ctx, insert, args...)
		if err != nil {
			return domain.WriteResult{}, fmt.Errorf("inserting record: %w", err)
		}
		if tag.RowsAffected() == 1 {
			if err := tx.Commit(ctx); err != nil {
				return domain.WriteResult{}, fmt.Errorf("committing insert: %w", err)
			}
			return domain.WriteResult{Written: true}, nil
		}
		// a concurrent insert won the race
		err = tx.QueryRow(ctx, lockQuery, r.PlayerID, r.GameID).Scan(&previous)
	}
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("locking record: %w", err)
	}

	if previous >= r.Score {
		return domain.WriteResult{Existed: true, Previous: previous}, nil
	}

	if _, err := tx.Exec(ctx, update, args...); err != nil {
		return domain.WriteResult{}, fmt.Errorf("updating record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.WriteResult{}, fmt.Errorf("committing update: %w", err)
	}
	return domain.WriteResult{Written: true, Existed: true, Previous: previous}, nil
}

// QueryByPlayer retrieves all records of a player
func (s *Store) QueryByPlayer(ctx context.Context, playerID string) ([]domain.ScoreRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM game_scores WHERE player_id = $1 ORDER BY game_id`

	rows, err := s.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("querying player records: %w", err)
	}
	return collectRecords(rows)
}

// QueryByGame retrieves the top records of a game
func (s *Store) QueryByGame(ctx context.Context, gameID string, limit int) ([]domain.ScoreRecord, error) {
	if limit <= 0 {
		return []domain.ScoreRecord{}, nil
	}

	query := `
		SELECT ` + recordColumns + `
		FROM game_scores
		WHERE game_id = $1
		ORDER BY score DESC, player_id ASC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying game records: %w", err)
	}
	return collectRecords(rows)
}

// ScanAll pages through every record in primary key order
func (s *Store) ScanAll(ctx context.Context, pageSize int, fn store.PageFunc) error {
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	query := `
		SELECT ` + recordColumns + `
		FROM game_scores
		WHERE (player_id, game_id) > ($1, $2)
		ORDER BY player_id, game_id
		LIMIT $3
	`
	var lastPlayer, lastGame string
	for {
		rows, err := s.pool.Query(ctx, query, lastPlayer, lastGame, pageSize)
		if err != nil {
			return fmt.Errorf("scanning records: %w", err)
		}
		page, err := collectRecords(rows)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
		last := page[len(page)-1]
		lastPlayer, lastGame = last.PlayerID, last.GameID
	}
}
