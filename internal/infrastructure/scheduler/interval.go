package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"NewsRelay/internal/ports"
)

// IntervalScheduler runs a job back to back with a fixed pause in between.
// Iterations never overlap: the pause starts when the previous job returns.
type IntervalScheduler struct {
	interval      time.Duration
	maxIterations int
	after         func(time.Duration) <-chan time.Time
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a driver; maxIterations <= 0 runs until cancelled.
func NewIntervalScheduler(interval time.Duration, maxIterations int) *IntervalScheduler {
	return &IntervalScheduler{
		interval:      interval,
		maxIterations: maxIterations,
		after:         time.After,
	}
}

// Run calls job immediately and then after every interval until ctx is done,
// job returns an error, or the iteration cap is reached.
func (s *IntervalScheduler) Run(ctx context.Context, job func(ctx context.Context, iteration int) error) error {
	if job == nil {
		return nil
	}

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := job(ctx, n); err != nil {
			return err
		}
		if s.maxIterations > 0 && n >= s.maxIterations {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(s.interval):
		}
	}
}

// ParseInterval accepts Go durations such as 30s, 5m, 2h, or bare seconds.
func ParseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty interval")
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("interval must be positive: %s", raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse interval %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive: %s", raw)
	}
	return d, nil
}
