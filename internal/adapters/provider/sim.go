package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"
)

// SimClient is a deterministic stand-in for a real provider. It fabricates
// stable pseudo-features from a hash of the track identity and simulates
// network latency, so the pipeline can be exercised end to end without
// credentials. Failure behavior is injectable for tests.
type SimClient struct {
	name       string
	minLatency time.Duration
	maxLatency time.Duration
	failures   map[string]error // lowercased artist -> error to return
	rng        *rand.Rand
}

// NewSimClient creates a simulated provider client.
func NewSimClient(opts ...SimOption) *SimClient {
	c := &SimClient{
		name:       "sim",
		minLatency: 20 * time.Millisecond,
		maxLatency: 80 * time.Millisecond,
		failures:   map[string]error{},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // simulated latency jitter, not crypto
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SimOption applies a configuration option to the SimClient.
type SimOption func(*SimClient)

// WithSimName sets the provider name reported in records.
func WithSimName(name string) SimOption {
	return func(c *SimClient) {
		if name != "" {
			c.name = name
		}
	}
}

// WithSimLatencyRange bounds the simulated per-call latency.
func WithSimLatencyRange(min, max time.Duration) SimOption {
	return func(c *SimClient) {
		if min >= 0 && max >= min {
			c.minLatency = min
			c.maxLatency = max
		}
	}
}

// WithSimFailure makes every track by the given artist fail with err.
func WithSimFailure(artist string, err error) SimOption {
	return func(c *SimClient) {
		c.failures[strings.ToLower(strings.TrimSpace(artist))] = err
	}
}

// Name identifies the simulated provider.
func (c *SimClient) Name() string { return c.name }

// Analyze fabricates stable features for the track, after a simulated
// network delay. The same (artist, title) always yields the same fields.
func (c *SimClient) Analyze(ctx context.Context, artist, title string) (*Record, error) {
	delay := c.minLatency
	if c.maxLatency > c.minLatency {
		delay += time.Duration(c.rng.Int63n(int64(c.maxLatency - c.minLatency)))
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrTransient, ctx.Err())
	}

	if err, ok := c.failures[strings.ToLower(strings.TrimSpace(artist))]; ok {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(artist) + "\x1f" + strings.ToLower(title)))
	seed := h.Sum64()

	unit := func(shift uint) string {
		return fmt.Sprintf("%.3f", float64((seed>>shift)%1000)/999.0)
	}
	moods := []string{"happy", "sad", "energetic", "calm", "aggressive", "melancholic"}

	return &Record{
		Fields: map[string]string{
			"tempo":        fmt.Sprintf("%d", 60+(seed%120)),
			"energy":       unit(8),
			"valence":      unit(16),
			"danceability": unit(24),
			"primary_mood": moods[(seed>>32)%uint64(len(moods))],
		},
		AnalyzedAt: time.Now(),
	}, nil
}
