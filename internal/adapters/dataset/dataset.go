// Package dataset persists the canonical enriched dataset as a tabular
// artifact keyed by (artist, track).
//
// Each merge run replaces the whole file: the merge is idempotent and cheap
// enough to rerun wholesale, and full-replace keeps concurrent readers (the
// delta monitor, dashboards) from ever seeing a half-written table. The
// replacement is atomic: write to a temp file, then rename.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/okian/cadenza/internal/domain/merge"
	"github.com/okian/cadenza/internal/domain/model"
)

// Writer writes merged rows to a CSV file.
type Writer struct {
	path string
}

// NewWriter creates a writer targeting path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the dataset file path.
func (w *Writer) Path() string { return w.path }

// Replace atomically rewrites the dataset with the given rows.
// Columns: artist, track, source, then each canonical feature followed by
// its presence flag.
func (w *Writer) Replace(_ context.Context, rows []merge.Row) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	tmpName := tmp.Name()

	cw := csv.NewWriter(tmp)
	vocab := merge.Vocabulary()

	header := []string{"artist", "track", "source"}
	for _, feat := range vocab {
		header = append(header, feat, "has_"+feat)
	}
	if err := cw.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write dataset header: %w", err)
	}

	for _, row := range rows {
		rec := []string{row.Identity.Artist, row.Identity.Track, row.Source}
		for _, feat := range vocab {
			if v, ok := row.Features[feat]; ok {
				rec = append(rec, v.String(), "true")
			} else {
				rec = append(rec, "", "false")
			}
		}
		if err := cw.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("write dataset row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flush dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp dataset: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit dataset: %w", err)
	}
	return nil
}

// Rows reads the dataset file back into merged rows so a later rewrite can
// carry forward work from earlier runs. A missing file yields no rows.
// Feature presence is taken from the has_ flags, and values for text
// features stay text even when they look numeric.
func Rows(_ context.Context, path string) ([]merge.Row, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	vocab := merge.Vocabulary()

	var rows []merge.Row
	first := true
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		if first {
			first = false
			continue
		}
		if len(rec) < 3 {
			continue
		}

		row := merge.Row{
			Identity: model.NewTrackIdentity(rec[0], rec[1]),
			Source:   rec[2],
			Features: make(map[string]merge.Value),
		}
		for i, feat := range vocab {
			valueCol, hasCol := 3+2*i, 4+2*i
			if hasCol >= len(rec) || rec[hasCol] != "true" {
				continue
			}
			raw := rec[valueCol]
			if merge.TextFeature(feat) {
				row.Features[feat] = merge.Value{Text: raw}
				continue
			}
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("parse dataset %s for %q: %w", feat, row.Identity.Key(), err)
			}
			row.Features[feat] = merge.Value{Number: n, Numeric: true}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EnrichedKeys returns the normalized identity keys already present in the
// dataset file. A missing file yields an empty set: nothing enriched yet.
func EnrichedKeys(_ context.Context, path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	keys := make(map[string]struct{})
	first := true
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		if first {
			first = false
			continue
		}
		if len(rec) < 2 {
			continue
		}
		keys[model.NewTrackIdentity(rec[0], rec[1]).Key()] = struct{}{}
	}
	return keys, nil
}
