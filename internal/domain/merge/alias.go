// Package merge combines enrichment records from all sources into one
// canonical, deduplicated dataset.
package merge

import (
	"strconv"
	"strings"
)

// Canonical feature vocabulary. The merged dataset exposes exactly these
// names regardless of what each provider calls them.
const (
	FeatTempo            = "tempo"
	FeatEnergy           = "energy"
	FeatValence          = "valence"
	FeatDanceability     = "danceability"
	FeatLoudness         = "loudness"
	FeatAcousticness     = "acousticness"
	FeatInstrumentalness = "instrumentalness"
	FeatSpeechiness      = "speechiness"
	FeatLiveness         = "liveness"
	FeatKey              = "key"
	FeatMode             = "mode"
	FeatMood             = "mood"
	FeatTags             = "tags"
)

// Vocabulary lists the canonical feature names in dataset column order.
func Vocabulary() []string {
	return []string{
		FeatTempo, FeatEnergy, FeatValence, FeatDanceability, FeatLoudness,
		FeatAcousticness, FeatInstrumentalness, FeatSpeechiness, FeatLiveness,
		FeatKey, FeatMode, FeatMood, FeatTags,
	}
}

// AliasTable maps each canonical feature to the source's raw field names,
// in precedence order: the first present, convertible field wins. When the
// same source reports both a numeric and a text variant (e.g. "energy" and
// "energy_level"), the table order decides, not an ad hoc fallback chain.
// Raw fields not reachable through any entry are dropped, never renamed.
type AliasTable map[string][]string

// Text features are carried verbatim; everything else must convert to a
// number.
var textFeatures = map[string]struct{}{
	FeatKey:  {},
	FeatMood: {},
	FeatTags: {},
}

// TextFeature reports whether the canonical feature carries text rather than
// a number. Readers reconstructing rows from the dataset use this to keep
// numeric-looking text values (a key of "5", say) as text.
func TextFeature(name string) bool {
	_, ok := textFeatures[name]
	return ok
}

// energyLevels maps textual energy ratings to the numeric scale used when a
// source reports no numeric energy at all.
var energyLevels = map[string]float64{
	"low":       0.3,
	"medium":    0.5,
	"high":      0.7,
	"very high": 0.9,
}

// defaultTables holds the alias tables for the known sources. Adding a
// provider means adding a table entry here, not branching logic.
func defaultTables() map[string]AliasTable {
	spotifyLike := AliasTable{
		FeatTempo:            {"tempo", "bpm"},
		FeatEnergy:           {"energy", "energy_level"},
		FeatValence:          {"valence"},
		FeatDanceability:     {"danceability"},
		FeatLoudness:         {"loudness"},
		FeatAcousticness:     {"acousticness", "acoustic"},
		FeatInstrumentalness: {"instrumentalness", "instrumental"},
		FeatSpeechiness:      {"speechiness"},
		FeatLiveness:         {"liveness"},
		FeatKey:              {"key"},
		FeatMode:             {"mode", "scale"},
		FeatMood:             {"mood_primary", "primary_mood", "mood", "mood_quadrant"},
		FeatTags:             {"tags", "genre"},
	}
	return map[string]AliasTable{
		"cyanite": {
			FeatTempo:        {"tempo", "bpm"},
			FeatEnergy:       {"energy", "energy_level"},
			FeatValence:      {"valence"},
			FeatDanceability: {"danceability"},
			FeatLoudness:     {"loudness"},
			FeatKey:          {"key"},
			FeatMode:         {"mode", "scale"},
			FeatMood:         {"mood_primary", "primary_mood", "mood"},
			FeatTags:         {"genre"},
		},
		"acousticbrainz": {
			FeatTempo:            {"bpm", "tempo"},
			FeatEnergy:           {"energy"},
			FeatValence:          {"valence"},
			FeatDanceability:     {"danceability"},
			FeatLoudness:         {"average_loudness", "loudness"},
			FeatAcousticness:     {"acoustic"},
			FeatInstrumentalness: {"instrumental"},
			FeatKey:              {"key"},
			FeatMode:             {"scale"},
			FeatMood:             {"mood"},
			FeatTags:             {"genre"},
		},
		"musicbrainz": {
			FeatTags: {"lastfm_tags", "tags", "genre"},
			FeatMood: {"mood"},
		},
		"sim": spotifyLike,
		// Fallback for sources with no registered table.
		"": spotifyLike,
	}
}

// normalize maps a source's raw fields into canonical feature values.
func normalize(table AliasTable, fields map[string]string) map[string]Value {
	out := make(map[string]Value)
	for _, canonical := range Vocabulary() {
		for _, raw := range table[canonical] {
			v, ok := fields[raw]
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			val, ok := convert(canonical, raw, v)
			if !ok {
				continue
			}
			out[canonical] = val
			break
		}
	}
	return out
}

// convert turns one raw field value into a canonical Value, applying the
// known textual encodings (energy levels, major/minor scale).
func convert(canonical, rawName, rawValue string) (Value, bool) {
	rawValue = strings.TrimSpace(rawValue)

	if _, isText := textFeatures[canonical]; isText {
		return Value{Text: rawValue}, true
	}

	if n, err := strconv.ParseFloat(rawValue, 64); err == nil {
		return Value{Number: n, Numeric: true}, true
	}

	lower := strings.ToLower(rawValue)
	if canonical == FeatEnergy {
		if n, ok := energyLevels[lower]; ok {
			return Value{Number: n, Numeric: true}, true
		}
	}
	if canonical == FeatMode && (rawName == "scale" || rawName == "mode") {
		switch lower {
		case "major":
			return Value{Number: 1, Numeric: true}, true
		case "minor":
			return Value{Number: 0, Numeric: true}, true
		}
	}
	return Value{}, false
}
