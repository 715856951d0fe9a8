package enrich

import (
	"sync"
	"time"
)

// ProviderStats is the per-provider slice of a snapshot.
type ProviderStats struct {
	Success     int     `json:"success"`
	Failure     int     `json:"failure"`
	SuccessRate float64 `json:"success_rate"`
}

// Snapshot is a read-only view of run progress. Rates and the ETA are
// derived from elapsed wall time at snapshot time.
type Snapshot struct {
	Total       int                      `json:"total"`
	Processed   int                      `json:"processed"`
	Succeeded   int                      `json:"succeeded"`
	Failed      int                      `json:"failed"`
	Elapsed     time.Duration            `json:"elapsed"`
	RatePerHour float64                  `json:"rate_per_hour"`
	ETA         time.Duration            `json:"eta"`
	Providers   map[string]ProviderStats `json:"providers"`
}

// Stats holds the shared run counters. Every worker updates it under a
// mutex; the hot path does nothing beyond incrementing integers. All
// formatting and derived math happens in Snapshot, outside any worker.
type Stats struct {
	mu        sync.Mutex
	startedAt time.Time
	total     int
	processed int
	succeeded int
	failed    int
	success   map[string]int
	failure   map[string]int
}

// NewStats creates counters for a run over total items.
func NewStats(total int) *Stats {
	return &Stats{
		startedAt: time.Now(),
		total:     total,
		success:   make(map[string]int),
		failure:   make(map[string]int),
	}
}

// RecordSuccess counts one successful item for the provider.
func (s *Stats) RecordSuccess(provider string) {
	s.mu.Lock()
	s.processed++
	s.succeeded++
	s.success[provider]++
	s.mu.Unlock()
}

// RecordFailure counts one failed item for the provider.
func (s *Stats) RecordFailure(provider string) {
	s.mu.Lock()
	s.processed++
	s.failed++
	s.failure[provider]++
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of the counters plus derived rate and
// ETA figures.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Total:     s.total,
		Processed: s.processed,
		Succeeded: s.succeeded,
		Failed:    s.failed,
		Elapsed:   time.Since(s.startedAt),
		Providers: make(map[string]ProviderStats, len(s.success)+len(s.failure)),
	}
	for p, n := range s.success {
		ps := snap.Providers[p]
		ps.Success = n
		snap.Providers[p] = ps
	}
	for p, n := range s.failure {
		ps := snap.Providers[p]
		ps.Failure = n
		snap.Providers[p] = ps
	}
	s.mu.Unlock()

	// Derived figures computed outside the lock.
	for p, ps := range snap.Providers {
		if calls := ps.Success + ps.Failure; calls > 0 {
			ps.SuccessRate = float64(ps.Success) / float64(calls)
			snap.Providers[p] = ps
		}
	}
	if hours := snap.Elapsed.Hours(); hours > 0 && snap.Processed > 0 {
		snap.RatePerHour = float64(snap.Processed) / hours
		remaining := snap.Total - snap.Processed
		if snap.RatePerHour > 0 && remaining > 0 {
			snap.ETA = time.Duration(float64(remaining) / snap.RatePerHour * float64(time.Hour))
		}
	}
	return snap
}
