// Package resilience holds retry and deadline helpers for calls to external
// dependencies.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout marks a call abandoned because its own deadline expired, as
// opposed to the caller's context being cancelled.
var ErrTimeout = errors.New("deadline exceeded")

// WithTimeout runs fn with a derived context that is cancelled after the
// given timeout. An expired deadline is reported as ErrTimeout wrapping
// context.DeadlineExceeded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w: %w (limit: %v)", name, ErrTimeout, context.DeadlineExceeded, timeout)
		}
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %w (limit: %v)", name, ErrTimeout, context.DeadlineExceeded, timeout)
	}
}

// IsTimeout reports whether err came from an expired WithTimeout deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
