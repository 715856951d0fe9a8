package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// PacedClient enforces a minimum inter-call delay in front of an inner
// client. Each worker wraps its own client, so the aggregate call rate is
// workerCount / delay.
type PacedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewPacedClient wraps inner with a limiter allowing one call per delay.
// A non-positive delay disables pacing.
func NewPacedClient(inner Client, delay time.Duration) *PacedClient {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &PacedClient{
		inner:   inner,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name returns the inner client's name.
func (p *PacedClient) Name() string { return p.inner.Name() }

// Analyze waits for the limiter, then delegates to the inner client.
func (p *PacedClient) Analyze(ctx context.Context, artist, title string) (*Record, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return p.inner.Analyze(ctx, artist, title)
}
