// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// ListeningEvent is one row of raw listening history (a scrobble).
// Events are append-only; the raw source owns them.
type ListeningEvent struct {
	Artist    string    // performing artist as reported by the source
	Track     string    // track title as reported by the source
	Album     string    // optional album name
	Mood      string    // optional per-event mood tag, empty when absent
	Timestamp time.Time // when the event was recorded
}

// Identity derives the normalized track identity for this event.
func (e ListeningEvent) Identity() TrackIdentity {
	return NewTrackIdentity(e.Artist, e.Track)
}

// TrackIdentity is the natural key for everything downstream: one logical
// song regardless of which source reported it. Equality is case-insensitive
// and whitespace-trimmed via Key().
type TrackIdentity struct {
	Artist string
	Track  string
}

// NewTrackIdentity builds an identity with surrounding whitespace removed.
// Display casing is preserved; Key() handles case folding.
func NewTrackIdentity(artist, track string) TrackIdentity {
	return TrackIdentity{
		Artist: strings.TrimSpace(artist),
		Track:  strings.TrimSpace(track),
	}
}

// Key returns the normalized comparison key for this identity.
// Two events with equal keys refer to the same enrichment target.
func (t TrackIdentity) Key() string {
	return strings.ToLower(t.Artist) + "\x1f" + strings.ToLower(t.Track)
}

// String renders the identity for logs and run summaries.
func (t TrackIdentity) String() string {
	return t.Artist + " - " + t.Track
}
