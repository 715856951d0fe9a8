package monitor

import (
	"time"

	"github.com/okian/cadenza/pkg/logger"
)

// Option applies a configuration option to the Monitor.
type Option func(*Monitor)

// WithInterval sets the periodic check interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithCachePath enables persisting the recent update history as JSON.
func WithCachePath(path string) Option {
	return func(m *Monitor) {
		m.cachePath = path
	}
}

// WithThresholds tunes the refresh-recommended policy: more than artists
// new artists, OR intensity above eventsPerHour, OR more than events new
// events.
func WithThresholds(artists int, eventsPerHour float64, events int) Option {
	return func(m *Monitor) {
		if artists >= 0 {
			m.artistThreshold = artists
		}
		if eventsPerHour >= 0 {
			m.intensityThreshold = eventsPerHour
		}
		if events >= 0 {
			m.eventThreshold = events
		}
	}
}

// WithLogger sets a custom logger for the monitor.
func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}
