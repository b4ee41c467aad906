package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles watch-mode rebuilds with a token bucket.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter creates a limiter allowing r events per second with burst b.
// A non-positive r means unlimited.
func NewLimiter(r float64, b int) *Limiter {
	limit := rate.Limit(r)
	if r <= 0 {
		limit = rate.Inf
	}
	if b < 1 {
		b = 1
	}
	return &Limiter{inner: rate.NewLimiter(limit, b)}
}

// Allow reports whether n events may happen now.
func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}

// Wait blocks until n tokens are available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.inner.WaitN(ctx, n)
}
