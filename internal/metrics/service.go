package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leaderboard"

var (
	_ Metrics = (*Service)(nil)
	_ Metrics = Nop{}
	_ Metrics = (*Mock)(nil)
)

// Service holds the Prometheus collectors
type Service struct {
	Submissions      *prometheus.CounterVec
	Queries          *prometheus.CounterVec
	StatsRuns        prometheus.Counter
	StatsDuration    prometheus.Histogram
	RecordsProcessed prometheus.Counter
	NotifSent        *prometheus.CounterVec
	NotifFailed      *prometheus.CounterVec
}

// NewHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the collectors.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Score submissions by outcome.",
		}, []string{"outcome"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Read queries by name and outcome.",
		}, []string{"query", "outcome"}),
		StatsRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_job_runs_total",
			Help:      "Completed global stats runs.",
		}),
		StatsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stats_job_duration_seconds",
			Help:      "Duration of global stats runs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		RecordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_records_processed_total",
			Help:      "Records folded into global stats.",
		}),
		NotifSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Stats summaries delivered, by sink.",
		}, []string{"sink"}),
		NotifFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Stats summaries that failed to deliver, by sink.",
		}, []string{"sink"}),
	}

	reg.MustRegister(
		s.Submissions,
		s.Queries,
		s.StatsRuns,
		s.StatsDuration,
		s.RecordsProcessed,
		s.NotifSent,
		s.NotifFailed,
	)

	return s
}

func (s *Service) IncSubmission(outcome string) {
	s.Submissions.WithLabelValues(outcome).Inc()
}

func (s *Service) IncQuery(query, outcome string) {
	s.Queries.WithLabelValues(query, outcome).Inc()
}

func (s *Service) IncStatsRuns() {
	s.StatsRuns.Inc()
}

func (s *Service) ObserveStatsDuration(seconds float64) {
	s.StatsDuration.Observe(seconds)
}

func (s *Service) AddRecordsProcessed(n int) {
	s.RecordsProcessed.Add(float64(n))
}

func (s *Service) IncNotifSent(sink string) {
	s.NotifSent.WithLabelValues(sink).Inc()
}

func (s *Service) IncNotifFailed(sink string) {
	s.NotifFailed.WithLabelValues(sink).Inc()
}
