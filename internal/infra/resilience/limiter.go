package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by callers that must not exceed an
// upstream's request rate. A nil *Limiter never blocks.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter allows perSecond events per second with a burst of one.
// perSecond <= 0 disables limiting.
func NewLimiter(perSecond float64) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.rl.Wait(ctx)
}
