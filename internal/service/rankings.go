package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/game-leaderboard/internal/config"
	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/metrics"
	"github.com/game-leaderboard/internal/store"
)

// RankingService serves the top scores of a game
type RankingService struct {
	store   store.RecordStore
	config  *config.LeaderboardConfig
	metrics metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRankingService creates a new ranking service
func NewRankingService(st store.RecordStore, cfg *config.LeaderboardConfig, m metrics.Metrics, logger *slog.Logger) *RankingService {
	return &RankingService{
		store:   st,
		config:  cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Rankings returns up to limit entries of gameID ranked from 1.
// An empty game ID or non-positive limit falls back to the configured defaults.
func (s *RankingService) Rankings(ctx context.Context, gameID string, limit int) (*domain.RankingsResponse, error) {
	if strings.TrimSpace(gameID) == "" {
		gameID = s.config.DefaultGameID
	}
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}

	records, err := s.store.QueryByGame(ctx, gameID, limit)
	if err != nil {
		s.metrics.IncQuery(metrics.QueryRankings, metrics.OutcomeError)
		s.logger.Error("failed to query rankings", "game_id", gameID, "error", err)
		return nil, &domain.StoreError{Op: "query_by_game", Err: err}
	}
	s.metrics.IncQuery(metrics.QueryRankings, "ok")

	rankings := domain.RankPage(records)
	return &domain.RankingsResponse{
		Success:      true,
		GameID:       gameID,
		TotalPlayers: len(rankings),
		Rankings:     rankings,
		GeneratedAt:  s.now().UTC(),
	}, nil
}
