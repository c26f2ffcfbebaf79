// Package ratelimit spaces out requests to the filings registry.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval keeps the process under the registry's fair-access limit.
const DefaultMinInterval = 150 * time.Millisecond

// Limiter grants at most one request per minInterval. Waiters are served in
// reservation order.
type Limiter struct {
	minInterval time.Duration
	limiter     *rate.Limiter
}

// New builds a limiter; a non-positive interval falls back to the default.
func New(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Limiter{
		minInterval: minInterval,
		limiter:     rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Wait blocks until the next request slot or ctx cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// MinInterval reports the configured spacing.
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}
