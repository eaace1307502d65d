package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig spaces attempts by a fixed Delay.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

const (
	defaultMaxAttempts = 3
	defaultDelay       = 100 * time.Millisecond
)

// FixedRetry returns a config making attempts tries spaced by delay.
func FixedRetry(attempts int, delay time.Duration) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, Delay: delay}
}

func Retry(ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = defaultDelay
	}
	logger := slog.Default().With("component", "retry", "operation", name)
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
		logger.Warn("operation failed, retrying", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "error", lastErr, "next_delay", cfg.Delay)
		timer := time.NewTimer(cfg.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}
	}
	return fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, lastErr)
}
