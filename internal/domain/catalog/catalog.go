// Package catalog builds the deduplicated work list of enrichment targets.
package catalog

import (
	"context"

	"github.com/okian/cadenza/internal/adapters/source"
	"github.com/okian/cadenza/internal/domain/model"
)

// Build derives the ordered, deduplicated list of track identities from raw
// listening events. Order is first-seen order; equality is the normalized
// identity key (case-insensitive, whitespace-trimmed). An empty source
// yields an empty list, not an error.
func Build(events []model.ListeningEvent) []model.TrackIdentity {
	seen := make(map[string]struct{}, len(events))
	identities := make([]model.TrackIdentity, 0, len(events))
	for _, ev := range events {
		id := ev.Identity()
		if id.Artist == "" && id.Track == "" {
			continue
		}
		key := id.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		identities = append(identities, id)
	}
	return identities
}

// ExcludeEnriched removes identities whose normalized key appears in the
// already-enriched set, preserving order. enriched keys must come from
// TrackIdentity.Key().
func ExcludeEnriched(identities []model.TrackIdentity, enriched map[string]struct{}) []model.TrackIdentity {
	if len(enriched) == 0 {
		return identities
	}
	remaining := make([]model.TrackIdentity, 0, len(identities))
	for _, id := range identities {
		if _, ok := enriched[id.Key()]; ok {
			continue
		}
		remaining = append(remaining, id)
	}
	return remaining
}

// FromSource reads the raw source and builds the catalog in one step.
// A read failure here is fatal for the run.
func FromSource(ctx context.Context, src source.Source) ([]model.TrackIdentity, error) {
	events, err := src.Events(ctx)
	if err != nil {
		return nil, err
	}
	return Build(events), nil
}
