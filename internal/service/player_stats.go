package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/metrics"
	"github.com/game-leaderboard/internal/store"
)

// PlayerStatsService aggregates a player's records across games
type PlayerStatsService struct {
	store   store.RecordStore
	metrics metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPlayerStatsService creates a new player stats service
func NewPlayerStatsService(st store.RecordStore, m metrics.Metrics, logger *slog.Logger) *PlayerStatsService {
	return &PlayerStatsService{
		store:   st,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Stats returns the player's aggregate stats and game history
func (s *PlayerStatsService) Stats(ctx context.Context, playerID string) (*domain.PlayerStatsResponse, error) {
	if strings.TrimSpace(playerID) == "" {
		s.metrics.IncQuery(metrics.QueryPlayerStats, metrics.OutcomeInvalid)
		return nil, domain.NewValidationError(domain.MsgPlayerIDRequired)
	}

	records, err := s.store.QueryByPlayer(ctx, playerID)
	if err != nil {
		s.metrics.IncQuery(metrics.QueryPlayerStats, metrics.OutcomeError)
		s.logger.Error("failed to query player records", "player_id", playerID, "error", err)
		return nil, &domain.StoreError{Op: "query_by_player", Err: err}
	}
	if len(records) == 0 {
		s.metrics.IncQuery(metrics.QueryPlayerStats, "not_found")
		return nil, domain.ErrPlayerNotFound
	}
	s.metrics.IncQuery(metrics.QueryPlayerStats, "ok")

	return &domain.PlayerStatsResponse{
		Success: true,
		Player: domain.PlayerProfile{
			PlayerID:    playerID,
			PlayerName:  domain.MostRecent(records).DisplayName(),
			Stats:       domain.ComputePlayerStats(records),
			GameHistory: domain.BuildHistory(records),
		},
		GeneratedAt: s.now().UTC(),
	}, nil
}
