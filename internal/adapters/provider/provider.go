// Package provider defines the contract for external feature providers.
//
// A provider takes an (artist, title) pair and returns the raw feature
// fields it knows about, or a typed failure. Implementations own their own
// authentication and wire format; the pipeline only sees this interface.
package provider

import (
	"context"
	"time"
)

// Record is a provider's raw report for one track. Field names are the
// provider's own; aliasing into the canonical vocabulary happens in the
// merge layer, not here.
type Record struct {
	Fields     map[string]string
	AnalyzedAt time.Time
}

// Client analyzes a single track. Implementations must be safe for use by
// one worker at a time; workers never share a client.
type Client interface {
	// Name identifies the provider in records, stats and metrics.
	Name() string

	// Analyze returns the provider's raw features for the given track,
	// or one of the typed errors from this package.
	Analyze(ctx context.Context, artist, title string) (*Record, error)
}

// Factory builds one client per worker. Workers are pinned to their own
// client instance so provider-side state (tokens, cursors, backoff) is
// never contended across workers.
type Factory func(workerID int) (Client, error)
