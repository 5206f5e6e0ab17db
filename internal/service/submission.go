package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/metrics"
	"github.com/game-leaderboard/internal/store"
)

// SubmissionService accepts score submissions and keeps each player's best score per game
type SubmissionService struct {
	store   store.RecordStore
	metrics metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(st store.RecordStore, m metrics.Metrics, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		store:   st,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Submit validates the request and stores the score if it beats the stored one.
// Validation failures never reach the store.
func (s *SubmissionService) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmissionResult, error) {
	if err := req.Validate(); err != nil {
		s.metrics.IncSubmission(metrics.OutcomeInvalid)
		return nil, err
	}

	record := domain.NewScoreRecord(req.PlayerID, req.GameID, *req.Score, req.PlayerName, s.now())

	res, err := s.store.PutIfHigher(ctx, record)
	if err != nil {
		s.metrics.IncSubmission(metrics.OutcomeError)
		s.logger.Error("failed to store score",
			"player_id", req.PlayerID,
			"game_id", req.GameID,
			"error", err,
		)
		return nil, &domain.StoreError{Op: "put_if_higher", Err: err}
	}

	if !res.Written {
		s.metrics.IncSubmission(metrics.OutcomeRejected)
		s.logger.Debug("score not improved",
			"player_id", req.PlayerID,
			"game_id", req.GameID,
			"score", record.Score,
			"current", res.Previous,
		)
		return &domain.SubmissionResult{
			Message:      domain.MsgScoreNotUpdated,
			Score:        record.Score,
			CurrentScore: res.Previous,
		}, nil
	}

	s.metrics.IncSubmission(metrics.OutcomeAccepted)
	msg := domain.MsgNewPersonalBest
	if !res.Existed {
		msg = domain.MsgNewScoreRecorded
	}
	s.logger.Debug("score recorded",
		"player_id", req.PlayerID,
		"game_id", req.GameID,
		"score", record.Score,
		"previous", res.Previous,
	)

	return &domain.SubmissionResult{
		Accepted:      true,
		IsNewRecord:   !res.Existed,
		Message:       msg,
		Score:         record.Score,
		PreviousScore: res.Previous,
		Timestamp:     record.Timestamp,
	}, nil
}
