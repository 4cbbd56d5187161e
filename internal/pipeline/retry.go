package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/dvelkov/subtrans/internal/translate"
)

// DefaultMaxAttempts is the total number of tries per unit: the first
// attempt plus two retries.
const DefaultMaxAttempts = 3

// Retryer wraps a single-unit translation attempt with bounded retries.
// Auth failures surface immediately; rate-limit, network and server
// failures are retried with capped exponential backoff.
type Retryer struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryer returns a policy with the default bounds.
func NewRetryer() *Retryer {
	return &Retryer{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// AttemptFunc performs one translation attempt.
type AttemptFunc func(ctx context.Context) (string, error)

// Attempt runs fn up to MaxAttempts times and returns the first success
// or the last error. A non-retryable error ends the attempts at once.
// Context cancellation during an inter-attempt delay also ends them; the
// attempts already made still count.
func (r *Retryer) Attempt(ctx context.Context, fn AttemptFunc) (string, error) {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			if err := r.wait(ctx, r.Backoff(attempt-1)); err != nil {
				return "", lastErr
			}
		}
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !translate.IsRetryable(err) {
			return "", err
		}
	}
	return "", lastErr
}

// Backoff returns the delay before retry n (0-indexed) with jitter.
func (r *Retryer) Backoff(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	d := base << uint(attempt)
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	return d + jitter
}

func (r *Retryer) wait(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
