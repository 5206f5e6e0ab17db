package metrics

import "sync"

// Mock is an in-memory Metrics for tests. It is safe for concurrent use.
type Mock struct {
	mu               sync.Mutex
	submissions      map[string]int
	queries          map[string]int
	statsRuns        int
	statsDurations   []float64
	recordsProcessed int
	notifSent        map[string]int
	notifFailed      map[string]int
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		submissions: make(map[string]int),
		queries:     make(map[string]int),
		notifSent:   make(map[string]int),
		notifFailed: make(map[string]int),
	}
}

func (m *Mock) IncSubmission(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[outcome]++
}

func (m *Mock) IncQuery(query, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[query+"/"+outcome]++
}

func (m *Mock) IncStatsRuns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsRuns++
}

func (m *Mock) ObserveStatsDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsDurations = append(m.statsDurations, seconds)
}

func (m *Mock) AddRecordsProcessed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordsProcessed += n
}

func (m *Mock) IncNotifSent(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifSent[sink]++
}

func (m *Mock) IncNotifFailed(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifFailed[sink]++
}

// Submissions returns how many submissions ended with outcome.
func (m *Mock) Submissions(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submissions[outcome]
}

// Queries returns how many times query ended with outcome.
func (m *Mock) Queries(query, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[query+"/"+outcome]
}

// StatsRuns returns the number of completed stats runs.
func (m *Mock) StatsRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsRuns
}

// RecordsProcessed returns the total passed to AddRecordsProcessed.
func (m *Mock) RecordsProcessed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordsProcessed
}

// NotifSent returns deliveries recorded for sink.
func (m *Mock) NotifSent(sink string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifSent[sink]
}

// NotifFailed returns failures recorded for sink.
func (m *Mock) NotifFailed(sink string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifFailed[sink]
}
