package workflow

import (
	"context"

	"golang.org/x/time/rate"
)

// StepLimiter is a token bucket guarding a single step: capacity burst,
// refill rps tokens per second. Take blocks until tokens are available and
// is safe for concurrent takers.
type StepLimiter struct {
	limiter *rate.Limiter
}

// NewStepLimiter creates a limiter with the given refill rate and burst
// capacity. The bucket starts full.
func NewStepLimiter(rps float64, burst int) *StepLimiter {
	return &StepLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Take blocks until n tokens are available, then deducts them. Returns the
// context error if ctx is cancelled while waiting.
func (l *StepLimiter) Take(ctx context.Context, n int) error {
	return l.limiter.WaitN(ctx, n)
}
