// Package checkpoint persists per-range enrichment outcomes for resumable runs.
//
// Each checkpoint covers one contiguous, inclusive index range of the work
// catalog. Files are written atomically (temp file then rename) so a crash
// mid-write never corrupts a previously committed checkpoint.
package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/cadenza/internal/domain/model"
	"github.com/okian/cadenza/pkg/logger"
	"github.com/okian/cadenza/pkg/metrics"
)

const (
	filePrefix    = "checkpoint_"
	fileSuffix    = ".json"
	compactedName = "compacted.json"
	dirMode       = 0o755
	fileMode      = 0o644
)

// Checkpoint is one durable record of a processed index range.
// RangeStart and RangeEnd are inclusive catalog indices.
type Checkpoint struct {
	RangeStart int             `json:"range_start"`
	RangeEnd   int             `json:"range_end"`
	Items      []model.Outcome `json:"items"`
	SavedAt    time.Time       `json:"saved_at"`
}

// Store is the persistence contract the executor writes through.
type Store interface {
	Save(ctx context.Context, rangeStart, rangeEnd int, items []model.Outcome) error
	List(ctx context.Context) ([]Checkpoint, error)
	ResumeIndex(ctx context.Context) (int, error)
	Compact(ctx context.Context) ([]model.Outcome, error)
}

// FileStore implements Store on a directory of JSON files.
type FileStore struct {
	dir    string
	logger logger.Logger
}

// NewFileStore creates a file-backed store rooted at dir, creating it if
// needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	s := &FileStore{
		dir:    dir,
		logger: logger.Named("checkpoint"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save writes one checkpoint atomically. The range is inclusive and must
// match the item count.
func (s *FileStore) Save(ctx context.Context, rangeStart, rangeEnd int, items []model.Outcome) error {
	if rangeEnd < rangeStart {
		return fmt.Errorf("%w: range [%d,%d]", ErrInvalidRange, rangeStart, rangeEnd)
	}
	if want := rangeEnd - rangeStart + 1; len(items) != want {
		return fmt.Errorf("%w: range [%d,%d] wants %d items, got %d",
			ErrInvalidRange, rangeStart, rangeEnd, want, len(items))
	}

	cp := Checkpoint{
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Items:      items,
		SavedAt:    time.Now(),
	}
	name := fmt.Sprintf("%s%010d_%010d%s", filePrefix, rangeStart, rangeEnd, fileSuffix)
	if err := s.writeAtomic(name, cp); err != nil {
		metrics.RecordCheckpointError()
		return err
	}

	metrics.RecordCheckpointSaved()
	s.logger.Debug(ctx, "checkpoint saved",
		logger.Int("range_start", rangeStart),
		logger.Int("range_end", rangeEnd),
		logger.Int("items", len(items)),
	)
	return nil
}

// List returns all checkpoints ordered by range start.
func (s *FileStore) List(_ context.Context) ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	var cps []Checkpoint
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", name, err)
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptCheckpoint, name, err)
		}
		cps = append(cps, cp)
	}

	sort.Slice(cps, func(i, j int) bool { return cps[i].RangeStart < cps[j].RangeStart })
	return cps, nil
}

// ResumeIndex returns max(rangeEnd)+1 across all checkpoints, or 0 when
// none exist. This is the sole resume contract: the catalog slices its
// remaining work starting at this index.
func (s *FileStore) ResumeIndex(ctx context.Context) (int, error) {
	cps, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	resume := 0
	for _, cp := range cps {
		if cp.RangeEnd+1 > resume {
			resume = cp.RangeEnd + 1
		}
	}
	return resume, nil
}

// Compact concatenates all checkpoints in range order into one canonical
// file, asserting the ranges are contiguous and non-overlapping. A gap or
// overlap is fatal and nothing is written: silently repairing it could
// duplicate or lose work.
func (s *FileStore) Compact(ctx context.Context) ([]model.Outcome, error) {
	cps, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, nil
	}

	var items []model.Outcome
	next := cps[0].RangeStart
	for _, cp := range cps {
		switch {
		case cp.RangeStart > next:
			metrics.RecordCheckpointError()
			return nil, fmt.Errorf("%w: gap before index %d (next checkpoint starts at %d)",
				ErrCorruptCheckpoint, next, cp.RangeStart)
		case cp.RangeStart < next:
			metrics.RecordCheckpointError()
			return nil, fmt.Errorf("%w: overlap at index %d (checkpoint [%d,%d])",
				ErrCorruptCheckpoint, cp.RangeStart, cp.RangeStart, cp.RangeEnd)
		}
		if want := cp.RangeEnd - cp.RangeStart + 1; len(cp.Items) != want {
			metrics.RecordCheckpointError()
			return nil, fmt.Errorf("%w: checkpoint [%d,%d] has %d items, wants %d",
				ErrCorruptCheckpoint, cp.RangeStart, cp.RangeEnd, len(cp.Items), want)
		}
		items = append(items, cp.Items...)
		next = cp.RangeEnd + 1
	}

	compacted := Checkpoint{
		RangeStart: cps[0].RangeStart,
		RangeEnd:   next - 1,
		Items:      items,
		SavedAt:    time.Now(),
	}
	if err := s.writeAtomic(compactedName, compacted); err != nil {
		metrics.RecordCheckpointError()
		return nil, err
	}

	s.logger.Info(ctx, "checkpoints compacted",
		logger.Int("checkpoints", len(cps)),
		logger.Int("items", len(items)),
	)
	return items, nil
}

// writeAtomic writes v as JSON to a temp file in the store directory and
// renames it into place.
func (s *FileStore) writeAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}
