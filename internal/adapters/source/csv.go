package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/okian/cadenza/internal/domain/model"
)

// Expected header columns, in order. Album and mood may be empty per row.
var csvHeader = []string{"timestamp", "artist", "track", "album", "mood"}

// CSVSource reads listening events from an append-only CSV file.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source backed by the CSV file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Path returns the backing file path.
func (s *CSVSource) Path() string { return s.path }

// Events returns all events in file order.
func (s *CSVSource) Events(ctx context.Context) ([]model.ListeningEvent, error) {
	return s.EventsSince(ctx, 0)
}

// EventsSince returns events at or after the given zero-based offset.
func (s *CSVSource) EventsSince(_ context.Context, offset int) ([]model.ListeningEvent, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // older exports omit trailing columns

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil // empty source is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	if len(header) < 3 || !strings.EqualFold(header[0], csvHeader[0]) {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrSourceUnreadable, header)
	}

	var events []model.ListeningEvent
	row := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrSourceUnreadable, row, err)
		}
		row++
		if row <= offset {
			continue
		}
		ev, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrSourceUnreadable, row, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Stat counts rows by scanning newlines, which is much cheaper than CSV
// parsing for large histories.
func (s *CSVSource) Stat(_ context.Context) (Stat, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return Stat{}, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return Stat{}, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			count++
		}
	}
	if err := sc.Err(); err != nil {
		return Stat{}, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	if count > 0 {
		count-- // header row
	}
	return Stat{Count: count, ModTime: info.ModTime()}, nil
}

func parseRow(rec []string) (model.ListeningEvent, error) {
	if len(rec) < 3 {
		return model.ListeningEvent{}, fmt.Errorf("want at least 3 columns, got %d", len(rec))
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[0]))
	if err != nil {
		return model.ListeningEvent{}, fmt.Errorf("bad timestamp %q: %w", rec[0], err)
	}
	ev := model.ListeningEvent{
		Timestamp: ts,
		Artist:    strings.TrimSpace(rec[1]),
		Track:     strings.TrimSpace(rec[2]),
	}
	if len(rec) > 3 {
		ev.Album = strings.TrimSpace(rec[3])
	}
	if len(rec) > 4 {
		ev.Mood = strings.TrimSpace(rec[4])
	}
	return ev, nil
}
