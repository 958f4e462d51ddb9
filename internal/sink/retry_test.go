package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func retryAll(error) bool { return true }

func TestRetryPolicy_Delay(t *testing.T) {
	rp := RetryPolicy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
	}

	assert.Equal(t, 100*time.Millisecond, rp.Delay(1))
	assert.Equal(t, 200*time.Millisecond, rp.Delay(2))
	assert.Equal(t, 400*time.Millisecond, rp.Delay(3))
	assert.Equal(t, time.Second, rp.Delay(5), "capped at max backoff")
}

func TestRetryPolicy_DelayWithJitter(t *testing.T) {
	rp := RetryPolicy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		Jitter:         true,
	}

	for i := 0; i < 100; i++ {
		d := rp.Delay(2)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	rp := RetryPolicy{MaxAttempts: 4, InitialBackoff: time.Millisecond, Multiplier: 1}

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		var retried []int
		attempts, err := rp.Do(context.Background(),
			func(context.Context) error {
				calls++
				if calls < 3 {
					return errTransient
				}
				return nil
			},
			retryAll,
			func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) },
		)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		permanent := errors.New("permanent")
		attempts, err := rp.Do(context.Background(),
			func(context.Context) error { return permanent },
			func(err error) bool { return !errors.Is(err, permanent) },
			nil,
		)
		assert.Equal(t, 1, attempts)
		assert.Same(t, permanent, err)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		attempts, err := rp.Do(context.Background(),
			func(context.Context) error { return errTransient },
			retryAll,
			nil,
		)
		assert.Equal(t, 4, attempts)
		assert.ErrorIs(t, err, errTransient)
	})

	t.Run("zero max attempts runs once", func(t *testing.T) {
		attempts, err := RetryPolicy{}.Do(context.Background(),
			func(context.Context) error { return errTransient },
			retryAll,
			nil,
		)
		assert.Equal(t, 1, attempts)
		assert.ErrorIs(t, err, errTransient)
	})
}

func TestRetryPolicy_DoCancelled(t *testing.T) {
	rp := RetryPolicy{MaxAttempts: 10, InitialBackoff: time.Hour, Multiplier: 1}
	ctx, cancel := context.WithCancel(context.Background())

	attempts, err := rp.Do(ctx,
		func(context.Context) error { return errTransient },
		retryAll,
		func(int, time.Duration, error) { cancel() },
	)

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}
