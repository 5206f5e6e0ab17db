// Package sqlite stores score records in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/store"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const recordColumns = `player_id, game_id, score, player_name, timestamp_ms, submitted_at`

// Store is a SQLite-backed record store
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens the database file. Writes take the database lock up front so
// the read-compare-write in PutIfHigher cannot interleave with another writer.
func NewStore(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema migrations
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("opening migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.ScoreRecord, error) {
	var r domain.ScoreRecord
	err := row.Scan(&r.PlayerID, &r.GameID, &r.Score, &r.PlayerName, &r.Timestamp, &r.SubmittedAt)
	return r, err
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]domain.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.ScoreRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Get returns the record for a (player, game) pair
func (s *Store) Get(ctx context.Context, playerID, gameID string) (*domain.ScoreRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM game_scores WHERE player_id = ? AND game_id = ?`

	r, err := scanRecord(s.db.QueryRowContext(ctx, query, playerID, gameID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id, game_id) DO UPDATE SET
			score = excluded.score,
			player_name = excluded.player_name,
			timestamp_ms = excluded.timestamp_ms,
			submitted_at = excluded.submitted_at
	`
	_, err := s.db.ExecContext(ctx, query, r.PlayerID, r.GameID, r.Score, r.PlayerName, r.Timestamp, r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("putting record: %w", err)
	}
	return nil
}

// PutIfHigher compares and writes inside one immediate transaction
func (s *Store) PutIfHigher(ctx context.Context, r domain.ScoreRecord) (domain.WriteResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var result domain.WriteResult
	err = tx.QueryRowContext(ctx,
		`SELECT score FROM game_scores WHERE player_id = ? AND game_id = ?`,
		r.PlayerID, r.GameID,
	).Scan(&result.Previous)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO game_scores (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			r.PlayerID, r.GameID, r.Score, r.PlayerName, r.Timestamp, r.SubmittedAt,
		)
	case err != nil:
		return domain.WriteResult{}, fmt.Errorf("reading record: %w", err)
	default:
		result.Existed = true
		if result.Previous >= r.Score {
			return result, nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE game_scores SET score = ?, player_name = ?, timestamp_ms = ?, submitted_at = ?
			 WHERE player_id = ? AND game_id = ?`,
			r.Score, r.PlayerName, r.Timestamp, r.SubmittedAt, r.PlayerID, r.GameID,
		)
	}
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("writing record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.WriteResult{}, fmt.Errorf("committing write: %w", err)
	}
	result.Written = true
	return result, nil
}

// QueryByPlayer returns every record of a player
func (s *Store) QueryByPlayer(ctx context.Context, playerID string) ([]domain.ScoreRecord, error) {
	records, err := s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM game_scores WHERE player_id = ? ORDER BY game_id`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying player records: %w", err)
	}
	return records, nil
}

// QueryByGame returns the top records of a game
func (s *Store) QueryByGame(ctx context.Context, gameID string, limit int) ([]domain.ScoreRecord, error) {
	if limit <= 0 {
		return []domain.ScoreRecord{}, nil
	}

	records, err := s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM game_scores
		 WHERE game_id = ?
		 ORDER BY score DESC, player_id ASC
		 LIMIT ?`,
		gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying game records: %w", err)
	}
	return records, nil
}

// ScanAll pages through every record in primary key order
func (s *Store) ScanAll(ctx context.Context, pageSize int, fn store.PageFunc) error {
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	var lastPlayer, lastGame string
	for {
		page, err := s.queryRecords(ctx,
			`SELECT `+recordColumns+` FROM game_scores
			 WHERE (player_id, game_id) > (?, ?)
			 ORDER BY player_id, game_id
			 LIMIT ?`,
			lastPlayer, lastGame, pageSize,
		)
		if err != nil {
			return fmt.Errorf("scanning records: %w", err)
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
