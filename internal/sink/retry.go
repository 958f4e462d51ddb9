package sink

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy is exponential backoff with optional jitter.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter spreads each delay uniformly over [delay/2, delay].
	Jitter bool
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (rp RetryPolicy) Delay(attempt int) time.Duration {
	multiplier := rp.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(rp.InitialBackoff) * math.Pow(multiplier, float64(attempt-1))
	if rp.MaxBackoff > 0 && delay > float64(rp.MaxBackoff) {
		delay = float64(rp.MaxBackoff)
	}
	if rp.Jitter && delay > 0 {
		delay = delay/2 + rand.Float64()*delay/2
	}
	return time.Duration(delay)
}

// Do runs fn until it succeeds, shouldRetry rejects the error, or the
// attempts run out. onRetry is called before each wait. It returns the
// number of attempts made.
func (rp RetryPolicy) Do(
	ctx context.Context,
	fn func(ctx context.Context) error,
	shouldRetry func(error) bool,
	onRetry func(attempt int, delay time.Duration, err error),
) (int, error) {
	maxAttempts := rp.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if !shouldRetry(err) {
			return attempt, err
		}
		if attempt >= maxAttempts {
			return attempt, fmt.Errorf("all %d attempts failed: %w", attempt, err)
		}

		delay := rp.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("retry cancelled: %w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}
}
