package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func instantAfter(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestIntervalSchedulerStopsAtMaxIterations(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour, 3)
	s.after = instantAfter

	var seen []int
	err := s.Run(context.Background(), func(_ context.Context, n int) error {
		seen = append(seen, n)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 3 || seen[2] != 3 {
		t.Fatalf("unexpected iterations %v", seen)
	}
}

func TestIntervalSchedulerPropagatesJobError(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour, 0)
	s.after = instantAfter
	boom := errors.New("boom")

	calls := 0
	err := s.Run(context.Background(), func(context.Context, int) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) || calls != 2 {
		t.Fatalf("expected boom after 2 calls, got %v after %d", err, calls)
	}
}

func TestIntervalSchedulerStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(time.Hour, 0)

	calls := 0
	err := s.Run(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("expected cancellation after first call, got %v after %d", err, calls)
	}
}

func TestParseInterval(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Duration{
		"30s": 30 * time.Second,
		"5m":  5 * time.Minute,
		"2h":  2 * time.Hour,
		"90":  90 * time.Second,
	}
	for raw, want := range cases {
		got, err := ParseInterval(raw)
		if err != nil || got != want {
			t.Fatalf("ParseInterval(%s) = %v, %v", raw, got, err)
		}
	}
	for _, bad := range []string{"", "-5", "soon", "0"} {
		if _, err := ParseInterval(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
