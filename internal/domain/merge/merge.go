package merge

import (
	"sort"
	"strconv"

	"github.com/okian/cadenza/internal/domain/model"
)

// Value is one canonical feature value. Numeric values keep their source
// scale; differing scales across sources are a data-quality fact preserved
// through the row's source tag, not something the merge rescales.
type Value struct {
	Number  float64 `json:"number,omitempty"`
	Text    string  `json:"text,omitempty"`
	Numeric bool    `json:"numeric"`
}

// String renders the value for tabular output.
func (v Value) String() string {
	if v.Numeric {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// Row is one canonical dataset row: exactly one per track identity, carrying
// the winning source's normalized features. Presence of a canonical feature
// is keyed membership in Features.
type Row struct {
	Identity model.TrackIdentity
	Source   string
	Features map[string]Value
}

// Has reports whether the canonical feature was present in the winning record.
func (r Row) Has(feature string) bool {
	_, ok := r.Features[feature]
	return ok
}

// Merger combines enrichment records into canonical rows using explicit
// source-priority ordering and per-source alias tables.
type Merger struct {
	tables map[string]AliasTable
}

// New creates a Merger with the built-in alias tables.
func New(opts ...Option) *Merger {
	m := &Merger{
		tables: defaultTables(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge groups records by normalized identity, keeps exactly one winner per
// group (lowest priority number, ties broken by most recent enrichment
// timestamp), and normalizes the winner's raw fields into the canonical
// vocabulary. Output is sorted by identity key, so re-running on the same
// records in any order yields identical rows.
func (m *Merger) Merge(records []model.EnrichmentRecord) []Row {
	winners := make(map[string]model.EnrichmentRecord, len(records))
	for _, rec := range records {
		key := rec.Identity.Key()
		cur, ok := winners[key]
		if !ok || beats(rec, cur) {
			winners[key] = rec
		}
	}

	rows := make([]Row, 0, len(winners))
	for _, rec := range winners {
		rows = append(rows, Row{
			Identity: rec.Identity,
			Source:   rec.Source,
			Features: normalize(m.tableFor(rec.Source), rec.Fields),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Identity.Key() < rows[j].Identity.Key()
	})
	return rows
}

// Combine overlays fresh rows onto prior rows from an earlier merge. A fresh
// row supersedes the prior row with the same identity key; prior rows without
// a fresh counterpart are carried forward unchanged, so rewriting the dataset
// never loses work from earlier runs. Output is sorted by identity key.
func Combine(prior, fresh []Row) []Row {
	seen := make(map[string]struct{}, len(fresh))
	for _, row := range fresh {
		seen[row.Identity.Key()] = struct{}{}
	}

	rows := make([]Row, 0, len(prior)+len(fresh))
	rows = append(rows, fresh...)
	for _, row := range prior {
		if _, ok := seen[row.Identity.Key()]; ok {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Identity.Key() < rows[j].Identity.Key()
	})
	return rows
}

// beats reports whether a should supersede b for the same identity.
func beats(a, b model.EnrichmentRecord) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.EnrichedAt.After(b.EnrichedAt)
}

func (m *Merger) tableFor(source string) AliasTable {
	if t, ok := m.tables[source]; ok {
		return t
	}
	return m.tables[""]
}
