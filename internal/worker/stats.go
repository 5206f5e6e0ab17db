package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/metrics"
	"github.com/game-leaderboard/internal/notify"
	"github.com/game-leaderboard/internal/store"
)

// Summary texts handed to notifiers
const (
	SummarySubject  = "GameLeaderboard - Ranking Update"
	SummaryHeadline = "Rankings calculated successfully!"
)

// defaultSink labels failures from a notifier that does not name its sinks
const defaultSink = "default"

// StatsJob computes per-game statistics over every stored record
type StatsJob struct {
	store    store.RecordStore
	notifier notify.Notifier
	metrics  metrics.Metrics
	pageSize int
	logger   *slog.Logger
	now      func() time.Time
}

// NewStatsJob creates a new stats job
func NewStatsJob(
	st store.RecordStore,
	notifier notify.Notifier,
	m metrics.Metrics,
	pageSize int,
	logger *slog.Logger,
) *StatsJob {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &StatsJob{
		store:    st,
		notifier: notifier,
		metrics:  m,
		pageSize: pageSize,
		logger:   logger,
		now:      time.Now,
	}
}

// Run scans the store page by page and folds each record into its game's
// accumulator. A scan error aborts the run. Summaries are only sent when at
// least one record was processed, and delivery failures never fail the run.
func (j *StatsJob) Run(ctx context.Context) (*domain.BatchStatsResult, error) {
	j.logger.Info("starting stats run")
	startTime := time.Now()

	games := make(map[string]*domain.GameAccumulator)
	total := 0

	err := j.store.ScanAll(ctx, j.pageSize, func(page []domain.ScoreRecord) error {
		for _, r := range page {
			acc, ok := games[r.GameID]
			if !ok {
				acc = &domain.GameAccumulator{}
				games[r.GameID] = acc
			}
			acc.Add(r)
		}
		total += len(page)
		j.logger.Debug("processed page", "records", len(page), "total", total)
		return nil
	})
	if err != nil {
		j.logger.Error("stats run failed", "error", err, "records_seen", total)
		return nil, &domain.StoreError{Op: "scan_all", Err: err}
	}

	result := &domain.BatchStatsResult{
		GamesProcessed: len(games),
		TotalScores:    total,
		GameStats:      make(map[string]domain.GameStats, len(games)),
		Timestamp:      j.now().UTC(),
	}
	for id, acc := range games {
		result.GameStats[id] = acc.Stats()
	}

	duration := time.Since(startTime)
	j.metrics.IncStatsRuns()
	j.metrics.ObserveStatsDuration(duration.Seconds())
	j.metrics.AddRecordsProcessed(total)

	j.logger.Info("stats run completed",
		"duration", duration,
		"games", result.GamesProcessed,
		"records", result.TotalScores,
	)

	if total > 0 {
		j.notify(ctx, result)
	}
	return result, nil
}

func (j *StatsJob) notify(ctx context.Context, result *domain.BatchStatsResult) {
	summary, err := BuildSummary(result)
	if err != nil {
		j.logger.Error("failed to build stats summary", "error", err)
		return
	}

	if err := j.notifier.Notify(ctx, summary); err != nil {
		var ne *domain.NotificationError
		if !errors.As(err, &ne) {
			err = &domain.NotificationError{Sink: defaultSink, Err: err}
			j.metrics.IncNotifFailed(defaultSink)
		}
		j.logger.Warn("stats summary not fully delivered", "error", err)
	}
}

// BuildSummary renders the human-readable summary of a run
func BuildSummary(result *domain.BatchStatsResult) (domain.StatsSummary, error) {
	stats, err := json.MarshalIndent(result.GameStats, "", "  ")
	if err != nil {
		return domain.StatsSummary{}, fmt.Errorf("encoding game stats: %w", err)
	}
	return domain.StatsSummary{
		Subject: SummarySubject,
		Body:    SummaryHeadline + "\n\n" + string(stats),
		Result:  *result,
	}, nil
}
