package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3, Delay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), Config{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected single permanent failure, got %v after %d calls", err, calls)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Config{MaxAttempts: 3, Delay: time.Hour}, func(context.Context) error {
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
