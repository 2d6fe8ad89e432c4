package retry

import (
	"context"
	"fmt"
	"time"
)

// Config bounds a retried operation.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
	// Backoff multiplies Delay by the attempt number.
	Backoff bool
	// Retryable decides whether an error deserves another attempt; nil retries everything.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, attempts run out or ctx is done.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := cfg.Delay
		if cfg.Backoff {
			delay = time.Duration(attempt) * cfg.Delay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
