// Package ratelimit spaces out calls to rate-sensitive external APIs.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Interval enforces a minimum spacing between successive grants. It is
// safe for concurrent use: two callers can never both observe a stale
// last-call time and violate the interval. One Interval is shared per
// throttled endpoint, passed by reference, never a process-wide global.
type Interval struct {
	limiter *rate.Limiter
}

// NewInterval creates a limiter granting at most one slot per
// minInterval. A non-positive interval disables throttling.
func NewInterval(minInterval time.Duration) *Interval {
	if minInterval <= 0 {
		return &Interval{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Interval{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until a slot is available or ctx is done.
func (i *Interval) Wait(ctx context.Context) error {
	return i.limiter.Wait(ctx)
}
