// Package source defines the contract for reading raw listening history.
//
// A source is an ordered, append-only sequence of listening events with a
// cheap way to detect growth (row count and modification time) without
// re-reading the whole thing.
package source

import (
	"context"
	"time"

	"github.com/okian/cadenza/internal/domain/model"
)

// Stat is a cheap summary of the source used for growth detection.
type Stat struct {
	Count   int       // number of events currently in the source
	ModTime time.Time // last modification time
}

// Source provides read-only access to raw listening events.
type Source interface {
	// Events returns all events in source order.
	Events(ctx context.Context) ([]model.ListeningEvent, error)

	// EventsSince returns events appended at or after the given offset.
	EventsSince(ctx context.Context, offset int) ([]model.ListeningEvent, error)

	// Stat reports the current event count and modification time without
	// parsing every row.
	Stat(ctx context.Context) (Stat, error)

	// Path returns the backing file path, for file watchers.
	Path() string
}
