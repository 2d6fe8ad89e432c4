package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsRelay/internal/ports"
)

// RunnerConfig is the deployment policy of the continuous runner.
type RunnerConfig struct {
	StopOnError bool
}

// RunnerTotals accumulates across iterations.
type RunnerTotals struct {
	Iterations int
	Errors     int
	Published  int
	StartedAt  time.Time
}

// Runner wires the interval driver with the pipeline use case.
type Runner struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	cfg      RunnerConfig
	logger   *slog.Logger
	totals   RunnerTotals
}

// NewRunner returns a helper that runs the pipeline on every tick of driver.
func NewRunner(driver ports.Scheduler, pipeline *Pipeline, cfg RunnerConfig, logger *slog.Logger) *Runner {
	return &Runner{driver: driver, pipeline: pipeline, cfg: cfg, logger: logger}
}

// Run blocks until ctx is done, the driver stops, or an iteration fails with StopOnError set.
func (r *Runner) Run(ctx context.Context) error {
	if r.driver == nil || r.pipeline == nil {
		return errors.New("runner misconfigured")
	}

	r.totals = RunnerTotals{StartedAt: time.Now()}
	err := r.driver.Run(ctx, r.iteration)
	r.logTotals()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Totals reports what the runner has done so far.
func (r *Runner) Totals() RunnerTotals {
	return r.totals
}

func (r *Runner) iteration(ctx context.Context, n int) error {
	stats, err := r.pipeline.RunOnce(ctx)
	r.totals.Iterations++
	r.totals.Published += stats.Outcomes[OutcomePublished]

	if r.logger != nil {
		r.logger.Info("iteration finished", append([]any{"iteration", n}, stats.LogArgs()...)...)
	}
	if err == nil {
		return nil
	}

	r.totals.Errors++
	if r.logger != nil {
		r.logger.Error("iteration failed", "iteration", n, "run_id", stats.RunID, "error", err)
	}
	if r.cfg.StopOnError {
		return fmt.Errorf("iteration %d: %w", n, err)
	}
	return nil
}

func (r *Runner) logTotals() {
	if r.logger == nil {
		return
	}
	r.logger.Info("runner stopped",
		"iterations", r.totals.Iterations,
		"errors", r.totals.Errors,
		"published", r.totals.Published,
		"runtime", time.Since(r.totals.StartedAt).Round(time.Second).String(),
	)
}
