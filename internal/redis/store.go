package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/game-leaderboard/internal/config"
	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/store"
	"github.com/redis/go-redis/v9"
)

// Record hash fields
const (
	fieldPlayerID    = "player_id"
	fieldGameID      = "game_id"
	fieldScore       = "score"
	fieldPlayerName  = "player_name"
	fieldTimestamp   = "timestamp"
	fieldSubmittedAt = "submitted_at"
)

const recordKeyPattern = "score:*"

// putIfHigherScript writes the record hash, the ranking member and the player's
// game index only when the stored score is absent or lower than the candidate.
// Returns {written, existed, previous}.
var putIfHigherScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'score')
if current and tonumber(current) >= tonumber(ARGV[3]) then
	return {0, 1, tonumber(current)}
end
redis.call('HSET', KEYS[1],
	'player_id', ARGV[1], 'game_id', ARGV[2], 'score', ARGV[3],
	'player_name', ARGV[4], 'timestamp', ARGV[5], 'submitted_at', ARGV[6])
redis.call('ZADD', KEYS[2], ARGV[7], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[2])
if current then
	return {1, 1, tonumber(current)}
end
return {1, 0, 0}
`)

// Store is a Redis-backed record store
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStore connects to Redis and verifies the connection
func NewStore(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStoreWithClient(client, logger), nil
}

// NewStoreWithClient wraps an existing client
func NewStoreWithClient(client *redis.Client, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// IDs are query-escaped so a ':' inside an ID cannot make two pairs share a key.
func recordKey(playerID, gameID string) string {
	return fmt.Sprintf("score:%s:%s", url.QueryEscape(playerID), url.QueryEscape(gameID))
}

// rankingKey holds members scored by the negated score, so ascending order is
// score descending with ties broken by player ID ascending.
func rankingKey(gameID string) string {
	return fmt.Sprintf("game:%s:rankings", url.QueryEscape(gameID))
}

func playerGamesKey(playerID string) string {
	return fmt.Sprintf("player:%s:games", url.QueryEscape(playerID))
}

func recordFields(r domain.ScoreRecord) []interface{} {
	return []interface{}{
		fieldPlayerID, r.PlayerID,
		fieldGameID, r.GameID,
		fieldScore, strconv.FormatInt(r.Score, 10),
		fieldPlayerName, r.PlayerName,
		fieldTimestamp, strconv.FormatInt(r.Timestamp, 10),
		fieldSubmittedAt, r.SubmittedAt,
	}
}

func parseRecord(h map[string]string) (domain.ScoreRecord, error) {
	score, err := strconv.ParseInt(h[fieldScore], 10, 64)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("parsing score: %w", err)
	}
	ts, err := strconv.ParseInt(h[fieldTimestamp], 10, 64)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return domain.ScoreRecord{
		PlayerID:    h[fieldPlayerID],
		GameID:      h[fieldGameID],
		Score:       score,
		PlayerName:  h[fieldPlayerName],
		Timestamp:   ts,
		SubmittedAt: h[fieldSubmittedAt],
	}, nil
}

// Get returns the record for a (player, game) pair
func (s *Store) Get(ctx context.Context, playerID, gameID string) (*domain.ScoreRecord, error) {
	h, err := s.client.HGetAll(ctx, recordKey(playerID, gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	if len(h) == 0 {
		return nil, domain.ErrRecordNotFound
	}
	rec, err := parseRecord(h)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put overwrites the record and its index entries in one transaction
func (s *Store) Put(ctx context.Context, r domain.ScoreRecord) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordKey(r.PlayerID, r.GameID), recordFields(r)...)
		pipe.ZAdd(ctx, rankingKey(r.GameID), redis.Z{
			Score:  -float64(r.Score),
			Member: r.PlayerID,
		})
		pipe.SAdd(ctx, playerGamesKey(r.PlayerID), r.GameID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("putting record: %w", err)
	}
	return nil
}

// PutIfHigher runs the conditional write as a single server-side script
func (s *Store) PutIfHigher(ctx context.Context, r domain.ScoreRecord) (domain.WriteResult, error) {
	keys := []string{
		recordKey(r.PlayerID, r.GameID),
		rankingKey(r.GameID),
		playerGamesKey(r.PlayerID),
	}
	args := []interface{}{
		r.PlayerID,
		r.GameID,
		strconv.FormatInt(r.Score, 10),
		r.PlayerName,
		strconv.FormatInt(r.Timestamp, 10),
		r.SubmittedAt,
		strconv.FormatInt(-r.Score, 10),
	}

	res, err := putIfHigherScript.Run(ctx, s.client, keys, args...).Int64Slice()
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("conditional put: %w", err)
	}
	if len(res) != 3 {
		return domain.WriteResult{}, fmt.Errorf("conditional put: unexpected reply %v", res)
	}

	return domain.WriteResult{
		Written:  res[0] == 1,
		Existed:  res[1] == 1,
		Previous: res[2],
	}, nil
}

// QueryByPlayer returns every record of a player
func (s *Store) QueryByPlayer(ctx context.Context, playerID string) ([]domain.ScoreRecord, error) {
	gameIDs, err := s.client.SMembers(ctx, playerGamesKey(playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing player games: %w", err)
	}

	keys := make([]string, len(gameIDs))
	for i, gameID := range gameIDs {
		keys[i] = recordKey(playerID, gameID)
	}
	return s.loadRecords(ctx, keys)
}

// QueryByGame returns the top records of a game
func (s *Store) QueryByGame(ctx context.Context, gameID string, limit int) ([]domain.ScoreRecord, error) {
	if limit <= 0 {
		return []domain.ScoreRecord{}, nil
	}

	playerIDs, err := s.client.ZRange(ctx, rankingKey(gameID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading rankings: %w", err)
	}

	keys := make([]string, len(playerIDs))
	for i, playerID := range playerIDs {
		keys[i] = recordKey(playerID, gameID)
	}
	return s.loadRecords(ctx, keys)
}

// ScanAll walks every record key with SCAN. SCAN may return a key more than
// once, so visited keys are tracked to keep each record in exactly one page.
// Records are still handed out page by page, but the visited set grows to one
// key per record over the scan.
func (s *Store) ScanAll(ctx context.Context, pageSize int, fn store.PageFunc) error {
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, recordKeyPattern, int64(pageSize)).Result()
		if err != nil {
			return fmt.Errorf("scanning records: %w", err)
		}

		fresh := keys[:0]
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			fresh = append(fresh, k)
		}

		if len(fresh) > 0 {
			page, err := s.loadRecords(ctx, fresh)
			if err != nil {
				return err
			}
			if err := fn(page); err != nil {
				return err
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// loadRecords fetches record hashes in one pipeline, preserving key order.
// Keys whose hash vanished between index read and fetch are skipped.
func (s *Store) loadRecords(ctx context.Context, keys []string) ([]domain.ScoreRecord, error) {
	records := make([]domain.ScoreRecord, 0, len(keys))
	if len(keys) == 0 {
		return records, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	for i, cmd := range cmds {
		h, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("loading record %s: %w", keys[i], err)
		}
		if len(h) == 0 {
			s.logger.Warn("index entry without record", "key", keys[i])
			continue
		}
		rec, err := parseRecord(h)
		if err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", keys[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}
