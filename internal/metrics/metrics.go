// Package metrics records leaderboard activity in Prometheus.
package metrics

// Submission outcomes
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Query names
const (
	QueryRankings    = "rankings"
	QueryPlayerStats = "player_stats"
)

// Metrics is what the services report into. Tests use Mock.
type Metrics interface {
	IncSubmission(outcome string)
	IncQuery(query, outcome string)
	IncStatsRuns()
	ObserveStatsDuration(seconds float64)
	AddRecordsProcessed(n int)
	IncNotifSent(sink string)
	IncNotifFailed(sink string)
}

// Nop discards everything
type Nop struct{}

func (Nop) IncSubmission(string)         {}
func (Nop) IncQuery(string, string)      {}
func (Nop) IncStatsRuns()                {}
func (Nop) ObserveStatsDuration(float64) {}
func (Nop) AddRecordsProcessed(int)      {}
func (Nop) IncNotifSent(string)          {}
func (Nop) IncNotifFailed(string)        {}
