package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Default breaker configuration constants.
const (
	defaultFailureThreshold = 5
	defaultBreakerTimeout   = 30 * time.Second
	defaultBreakerInterval  = 60 * time.Second
)

// BreakerClient shields an inner client behind a circuit breaker. When the
// provider keeps failing, the breaker opens and calls fail fast as
// transient errors instead of wasting the worker's paced call slots.
type BreakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker[*Record]
}

// NewBreakerClient wraps inner with a circuit breaker that trips after
// consecutive transient failures. Terminal per-item failures (not-found,
// auth) do not count toward tripping.
func NewBreakerClient(inner Client) *BreakerClient {
	settings := gobreaker.Settings{
		Name:     inner.Name(),
		Interval: defaultBreakerInterval,
		Timeout:  defaultBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Not-found is a data fact, not a provider health signal.
			return err == nil || Terminal(err)
		},
	}
	return &BreakerClient{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[*Record](settings),
	}
}

// Name returns the inner client's name.
func (b *BreakerClient) Name() string { return b.inner.Name() }

// Analyze delegates through the circuit breaker.
func (b *BreakerClient) Analyze(ctx context.Context, artist, title string) (*Record, error) {
	rec, err := b.cb.Execute(func() (*Record, error) {
		return b.inner.Analyze(ctx, artist, title)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open for %s", ErrTransient, b.inner.Name())
		}
		return nil, err
	}
	return rec, nil
}
