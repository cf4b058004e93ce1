package ecfr

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/regwatch/ecfr-ingest/internal/telemetry"
)

// Pacer enforces a minimum spacing between outbound requests. It is the one
// piece of shared mutable state in the fetch stage: every request, from every
// worker, acquires the same token stream, so the upstream API never sees more
// than one request per spacing interval regardless of concurrency.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a Pacer with the given minimum inter-request spacing.
// A zero or negative spacing disables pacing.
func NewPacer(spacing time.Duration) *Pacer {
	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next request slot is available, respecting the context.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		telemetry.ObservePacingDelay(delay)
	}
	return nil
}
