// Package pipeline provides the sequential stage runner for FarePipe.
//
// Execution is strictly ordered and single-threaded: stages run in the
// order they were declared, each one observing the complete, committed
// effect of every earlier stage through synchronous blocking I/O. The
// runner stops at the first failure; there are no retries, no fan-out,
// and no background work.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/farepipe/farepipe/pkg/metrics"
)

// Stage is one discrete, idempotent unit of pipeline work.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

// StageFunc adapts a plain function into a Stage.
type StageFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewStageFunc wraps fn as a named stage.
func NewStageFunc(name string, fn func(ctx context.Context) error) StageFunc {
	return StageFunc{name: name, fn: fn}
}

// Name returns the stage name.
func (s StageFunc) Name() string { return s.name }

// Run invokes the wrapped function.
func (s StageFunc) Run(ctx context.Context) error { return s.fn(ctx) }

// Runner executes stages sequentially. It borrows the logger from the
// registry and owns no other state.
type Runner struct {
	stages []Stage
	logger *zap.Logger
}

// NewRunner creates a runner over the given stages.
func NewRunner(logger *zap.Logger, stages ...Stage) *Runner {
	return &Runner{stages: stages, logger: logger}
}

// Run executes every stage in declaration order, returning the first
// failure unchanged (already enriched by the failing stage).
func (r *Runner) Run(ctx context.Context) error {
	for _, stage := range r.stages {
		timer := metrics.NewStageTimer(stage.Name())
		r.logger.Info("stage started", zap.String("stage", stage.Name()))

		if err := stage.Run(ctx); err != nil {
			metrics.StageFailures.WithLabelValues(stage.Name()).Inc()
			r.logger.Error("stage failed",
				zap.String("stage", stage.Name()),
				zap.Error(err))
			return err
		}

		r.logger.Info("stage completed",
			zap.String("stage", stage.Name()),
			zap.Duration("duration", timer.ObserveDuration()))
	}
	return nil
}
