package usecase

import (
	"maps"
	"slices"
	"time"
)

// Per-item outcomes counted by a run.
const (
	OutcomePublished      = "published"
	OutcomeDeferred       = "deferred"
	OutcomePublishError   = "publish_error"
	OutcomePublishFailed  = "publish_failed"
	OutcomePublishSkipped = "publish_skipped"
	OutcomeTransient      = "transient"
	OutcomeInterrupted    = "interrupted"
)

// RunStats summarizes one pipeline iteration.
type RunStats struct {
	RunID       string
	StartedAt   time.Time
	Duration    time.Duration
	Fetched     int
	Unique      int
	Processed   int
	Interrupted bool
	Outcomes    map[string]int
}

// Count increments an outcome counter such as "rejected:not_relevant".
func (s *RunStats) Count(outcome string) {
	if s.Outcomes == nil {
		s.Outcomes = map[string]int{}
	}
	s.Outcomes[outcome]++
}

// LogArgs flattens the stats into slog key/value pairs.
func (s RunStats) LogArgs() []any {
	args := []any{
		"run_id", s.RunID,
		"fetched", s.Fetched,
		"unique", s.Unique,
		"processed", s.Processed,
		"duration", s.Duration.Round(time.Millisecond).String(),
	}
	if s.Interrupted {
		args = append(args, "interrupted", true)
	}
	for _, key := range slices.Sorted(maps.Keys(s.Outcomes)) {
		args = append(args, key, s.Outcomes[key])
	}
	return args
}
