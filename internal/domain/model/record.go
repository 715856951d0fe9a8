package model

import "time"

// EnrichmentRecord is one provider's report for one track identity.
// Records are immutable once written; a higher-priority record for the same
// identity supersedes, never mutates, a lower-priority one.
type EnrichmentRecord struct {
	Identity   TrackIdentity     `json:"identity"`
	Source     string            `json:"source"`
	Priority   int               `json:"priority"` // lower = more trusted
	Fields     map[string]string `json:"fields"`   // raw source fields, unaliased
	EnrichedAt time.Time         `json:"enriched_at"`
}

// Outcome is the result of processing exactly one catalog index.
// Every index handed to a worker ends up with exactly one Outcome:
// either Record is set, or Failure names the provider error kind.
type Outcome struct {
	Index    int               `json:"index"`
	Identity TrackIdentity     `json:"identity"`
	Provider string            `json:"provider"`
	Record   *EnrichmentRecord `json:"record,omitempty"`
	Failure  string            `json:"failure,omitempty"`
}

// OK reports whether the outcome carries an enrichment record.
func (o Outcome) OK() bool {
	return o.Record != nil
}

// UpdateEvent is the delta monitor's summary of newly appended raw events.
type UpdateEvent struct {
	DetectedAt         time.Time `json:"detected_at"`
	NewEvents          int       `json:"new_events"`
	TotalEvents        int       `json:"total_events"`
	NewArtists         []string  `json:"new_artists"`
	DominantMood       string    `json:"dominant_mood,omitempty"`
	Intensity          float64   `json:"intensity"` // events per hour over the new span
	RefreshRecommended bool      `json:"refresh_recommended"`
}
