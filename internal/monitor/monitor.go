// Package monitor watches the raw listening-event source for growth and
// summarizes newly appended events into update events.
//
// The monitor is purely observational: it never mutates the source, holds
// no long-lived locks on it, and shares no mutable state with the
// enrichment run. Each check reads a snapshot and compares it against the
// last-seen count and modification time.
package monitor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"

	"github.com/okian/cadenza/internal/adapters/source"
	"github.com/okian/cadenza/internal/domain/model"
	"github.com/okian/cadenza/pkg/logger"
	"github.com/okian/cadenza/pkg/metrics"
)

// Default monitor configuration constants.
const (
	defaultInterval   = 5 * time.Minute
	defaultHistoryMax = 10

	// Refresh policy thresholds; tunable via options.
	defaultNewArtistThreshold = 2
	defaultIntensityThreshold = 1.5
	defaultNewEventThreshold  = 50
)

// Observer receives update events synchronously from the monitor's own
// goroutine. A panicking observer is recovered and logged, never allowed to
// crash the monitor.
type Observer func(model.UpdateEvent)

// Monitor implements the Idle -> Checking -> (Updated | Unchanged) -> Idle
// cycle on a timer, a file-change notification, or on demand.
type Monitor struct {
	src       source.Source
	interval  time.Duration
	cachePath string
	logger    logger.Logger

	artistThreshold    int
	intensityThreshold float64
	eventThreshold     int

	mu          sync.Mutex
	checking    bool
	lastCount   int
	lastMod     time.Time
	seenArtists map[string]struct{}
	observers   []Observer
	history     []model.UpdateEvent
}

// New creates a monitor over the given source.
func New(src source.Source, opts ...Option) *Monitor {
	m := &Monitor{
		src:                src,
		interval:           defaultInterval,
		logger:             logger.Named("monitor"),
		artistThreshold:    defaultNewArtistThreshold,
		intensityThreshold: defaultIntensityThreshold,
		eventThreshold:     defaultNewEventThreshold,
		seenArtists:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds an observer for future update events.
func (m *Monitor) Register(fn Observer) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// RecentUpdates returns the bounded update history, newest last.
func (m *Monitor) RecentUpdates() []model.UpdateEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.UpdateEvent, len(m.history))
	copy(out, m.history)
	return out
}

// Start primes the baseline from the current source contents and runs the
// check loop until ctx is canceled. File-change notifications trigger an
// early check when the source's directory is watchable; the timer covers
// the rest.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.prime(ctx); err != nil {
		return err
	}

	var watchCh chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if werr := watcher.Add(filepath.Dir(m.src.Path())); werr == nil {
			watchCh = make(chan fsnotify.Event, 1)
			go m.forwardWrites(watcher, watchCh)
			defer watcher.Close()
		} else {
			m.logger.Warn(ctx, "source watch unavailable; relying on timer", logger.Error(werr))
			watcher.Close()
		}
	} else {
		m.logger.Warn(ctx, "fsnotify unavailable; relying on timer", logger.Error(err))
	}

	m.logger.Info(ctx, "delta monitor started",
		logger.String("source", m.src.Path()),
		logger.Duration("interval", m.interval),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "delta monitor stopped")
			return nil
		case <-ticker.C:
			m.runCheck(ctx)
		case <-watchCh:
			m.runCheck(ctx)
		}
	}
}

// forwardWrites coalesces file events for the watched source into checks.
func (m *Monitor) forwardWrites(w *fsnotify.Watcher, out chan<- fsnotify.Event) {
	target := filepath.Clean(m.src.Path())
	for ev := range w.Events {
		if filepath.Clean(ev.Name) != target {
			continue
		}
		if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
			continue
		}
		select {
		case out <- ev:
		default: // a check is already pending
		}
	}
}

// prime records the current source size and artist set without emitting an
// update event.
func (m *Monitor) prime(ctx context.Context) error {
	events, err := m.src.Events(ctx)
	if err != nil {
		return err
	}
	st, err := m.src.Stat(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.lastCount = len(events)
	m.lastMod = st.ModTime
	for _, ev := range events {
		m.seenArtists[strings.ToLower(strings.TrimSpace(ev.Artist))] = struct{}{}
	}
	m.mu.Unlock()
	m.logger.Info(ctx, "monitor baseline primed",
		logger.Int("events", len(events)),
		logger.Int("artists", len(m.seenArtists)),
	)
	return nil
}

// runCheck wraps CheckNow for the loop, logging instead of propagating.
func (m *Monitor) runCheck(ctx context.Context) {
	if _, _, err := m.CheckNow(ctx); err != nil {
		m.logger.Error(ctx, "update check failed", logger.Error(err))
	}
}

// CheckNow performs one check immediately. It returns the emitted update
// event and true when the source grew, or a zero event and false when the
// source was unchanged.
func (m *Monitor) CheckNow(ctx context.Context) (model.UpdateEvent, bool, error) {
	m.mu.Lock()
	if m.checking {
		m.mu.Unlock()
		return model.UpdateEvent{}, false, nil
	}
	m.checking = true
	lastCount := m.lastCount
	lastMod := m.lastMod
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.checking = false
		m.mu.Unlock()
	}()

	metrics.RecordMonitorCheck()

	st, err := m.src.Stat(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.UpdateEvent{}, false, nil
		}
		return model.UpdateEvent{}, false, err
	}
	if st.Count <= lastCount && !st.ModTime.After(lastMod) {
		return model.UpdateEvent{}, false, nil // unchanged
	}
	if st.Count <= lastCount {
		// Rewritten in place without growth; just advance the clock.
		m.mu.Lock()
		m.lastMod = st.ModTime
		m.mu.Unlock()
		return model.UpdateEvent{}, false, nil
	}

	newEvents, err := m.src.EventsSince(ctx, lastCount)
	if err != nil {
		return model.UpdateEvent{}, false, err
	}

	update := m.analyze(newEvents, st.Count)

	m.mu.Lock()
	m.lastCount = st.Count
	m.lastMod = st.ModTime
	for _, ev := range newEvents {
		m.seenArtists[strings.ToLower(strings.TrimSpace(ev.Artist))] = struct{}{}
	}
	m.history = append(m.history, update)
	if len(m.history) > defaultHistoryMax {
		m.history = m.history[len(m.history)-defaultHistoryMax:]
	}
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	metrics.RecordMonitorUpdate()
	if update.RefreshRecommended {
		metrics.RecordRefreshSignal()
	}
	m.logger.Info(ctx, "source growth detected",
		logger.Int("new_events", update.NewEvents),
		logger.Int("new_artists", len(update.NewArtists)),
		logger.Float64("intensity", update.Intensity),
		logger.Any("refresh_recommended", update.RefreshRecommended),
	)

	for _, fn := range observers {
		m.notify(ctx, fn, update)
	}
	m.persistCache(ctx)

	return update, true, nil
}

// analyze computes the delta summary over only the newly appended events.
func (m *Monitor) analyze(newEvents []model.ListeningEvent, total int) model.UpdateEvent {
	update := model.UpdateEvent{
		DetectedAt:  time.Now(),
		NewEvents:   len(newEvents),
		TotalEvents: total,
	}

	m.mu.Lock()
	for _, ev := range newEvents {
		key := strings.ToLower(strings.TrimSpace(ev.Artist))
		if key == "" {
			continue
		}
		if _, seen := m.seenArtists[key]; !seen {
			found := false
			for _, a := range update.NewArtists {
				if strings.EqualFold(a, ev.Artist) {
					found = true
					break
				}
			}
			if !found {
				update.NewArtists = append(update.NewArtists, ev.Artist)
			}
		}
	}
	m.mu.Unlock()
	sort.Strings(update.NewArtists)

	update.Intensity = intensity(newEvents)
	update.DominantMood = dominantMood(newEvents)
	update.RefreshRecommended = len(update.NewArtists) > m.artistThreshold ||
		update.Intensity > m.intensityThreshold ||
		update.NewEvents > m.eventThreshold

	return update
}

// intensity is events per hour over the span of the new events' timestamps.
func intensity(events []model.ListeningEvent) float64 {
	if len(events) < 2 {
		return 0
	}
	min, max := events[0].Timestamp, events[0].Timestamp
	for _, ev := range events[1:] {
		if ev.Timestamp.Before(min) {
			min = ev.Timestamp
		}
		if ev.Timestamp.After(max) {
			max = ev.Timestamp
		}
	}
	hours := max.Sub(min).Hours()
	if hours <= 0 {
		return 0
	}
	return float64(len(events)) / hours
}

// dominantMood returns the most frequent non-empty mood tag, or empty when
// no new event carries one.
func dominantMood(events []model.ListeningEvent) string {
	counts := make(map[string]int)
	for _, ev := range events {
		mood := strings.ToLower(strings.TrimSpace(ev.Mood))
		if mood != "" {
			counts[mood]++
		}
	}
	best, bestN := "", 0
	for mood, n := range counts {
		if n > bestN || (n == bestN && mood < best) {
			best, bestN = mood, n
		}
	}
	return best
}

// notify invokes one observer, containing any panic.
func (m *Monitor) notify(ctx context.Context, fn Observer, update model.UpdateEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, "observer panicked", logger.Any("panic", r))
		}
	}()
	fn(update)
}

// updateCache is the on-disk shape of the recent update history.
type updateCache struct {
	LastUpdate *model.UpdateEvent  `json:"last_update"`
	History    []model.UpdateEvent `json:"update_history"`
}

// persistCache writes the bounded history next to the dataset for
// introspection. Failures are logged, not fatal.
func (m *Monitor) persistCache(ctx context.Context) {
	if m.cachePath == "" {
		return
	}
	m.mu.Lock()
	cache := updateCache{History: append([]model.UpdateEvent(nil), m.history...)}
	m.mu.Unlock()
	if len(cache.History) > 0 {
		cache.LastUpdate = &cache.History[len(cache.History)-1]
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		m.logger.Error(ctx, "encode update cache failed", logger.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.cachePath), 0o755); err != nil {
		m.logger.Error(ctx, "create update cache dir failed", logger.Error(err))
		return
	}
	if err := os.WriteFile(m.cachePath, data, 0o644); err != nil {
		m.logger.Error(ctx, "write update cache failed", logger.Error(err))
	}
}
