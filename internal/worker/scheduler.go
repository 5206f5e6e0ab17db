package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/game-leaderboard/internal/config"
)

// Scheduler runs the stats job on a fixed interval
type Scheduler struct {
	job     *StatsJob
	config  *config.StatsConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new scheduler
func NewScheduler(job *StatsJob, cfg *config.StatsConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		job:    job,
		config: cfg,
		logger: logger,
	}
}

// Start begins the background schedule
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.logger.Info("stats scheduler started", "interval", s.config.Interval, "timeout", s.config.Timeout)

	go s.run(ctx, stopCh, doneCh)
	return nil
}

// Stop stops the schedule and waits for an in-flight run to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.logger.Info("stats scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs the job once under the configured timeout
func (s *Scheduler) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if _, err := s.job.Run(runCtx); err != nil {
		s.logger.Error("scheduled stats run failed", "error", err)
	}
}
