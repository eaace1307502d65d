package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", FixedRetry(3, time.Millisecond), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausts(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	err := Retry(context.Background(), "dead", FixedRetry(2, time.Millisecond), func(ctx context.Context) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "cancelled", FixedRetry(5, time.Hour), func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryDefaultsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "defaults", RetryConfig{Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, defaultMaxAttempts, calls)
}

func TestRetryWaitsFixedDelay(t *testing.T) {
	var stamps []time.Time
	err := Retry(context.Background(), "spaced", FixedRetry(3, 20*time.Millisecond), func(ctx context.Context) error {
		stamps = append(stamps, time.Now())
		return errors.New("fail")
	})
	assert.Error(t, err)
	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 20*time.Millisecond)
	}
}

func TestWithTimeoutExpires(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	sentinel := errors.New("bad")
	err := WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, IsTimeout(err))
}

func TestWithTimeoutParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, time.Second, "cancelled", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.False(t, IsTimeout(err))
	assert.ErrorIs(t, err, context.Canceled)
}
