// Package notify delivers stats summaries to downstream sinks.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/metrics"
)

// Notifier delivers a stats summary
type Notifier interface {
	Notify(ctx context.Context, summary domain.StatsSummary) error
}

// Func adapts a function to Notifier
type Func func(ctx context.Context, summary domain.StatsSummary) error

func (f Func) Notify(ctx context.Context, summary domain.StatsSummary) error {
	return f(ctx, summary)
}

// Nop accepts every summary and does nothing
type Nop struct{}

func (Nop) Notify(context.Context, domain.StatsSummary) error { return nil }

// Sink is a named Notifier
type Sink struct {
	Name     string
	Notifier Notifier
}

// Multi delivers to every sink in order. A failing sink does not stop the others.
type Multi struct {
	sinks   []Sink
	metrics metrics.Metrics
	logger  *slog.Logger
}

// NewMulti creates a fan-out notifier
func NewMulti(m metrics.Metrics, logger *slog.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, metrics: m, logger: logger}
}

// Add appends a sink
func (m *Multi) Add(name string, n Notifier) {
	m.sinks = append(m.sinks, Sink{Name: name, Notifier: n})
}

// Len returns the number of sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Notify returns every sink failure as a *domain.NotificationError joined together
func (m *Multi) Notify(ctx context.Context, summary domain.StatsSummary) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notifier.Notify(ctx, summary); err != nil {
			m.metrics.IncNotifFailed(s.Name)
			m.logger.Warn("failed to deliver stats summary", "sink", s.Name, "error", err)
			errs = append(errs, &domain.NotificationError{Sink: s.Name, Err: err})
			continue
		}
		m.metrics.IncNotifSent(s.Name)
		m.logger.Debug("stats summary delivered", "sink", s.Name)
	}
	return errors.Join(errs...)
}
