// Package saga runs ordered multi-step writes with compensating rollback.
package saga

import (
	"context"
	"log/slog"
)

// Action is a single forward or compensating operation.
type Action func(ctx context.Context) error

// Step pairs a named forward action with an optional compensation.
// A nil Compensate means the step has no side effect to undo and is
// skipped during rollback.
type Step struct {
	Name       string
	Forward    Action
	Compensate Action
}

// Status is the terminal state of a saga execution.
type Status string

const (
	// StatusSucceeded means every step completed.
	StatusSucceeded Status = "succeeded"
	// StatusFailedClean means a step failed and every compensation ran.
	StatusFailedClean Status = "failed_clean"
	// StatusFailedDirty means a step failed and at least one compensation
	// also failed, leaving state that needs manual reconciliation.
	StatusFailedDirty Status = "failed_dirty"
)

// Result reports how a saga execution ended.
type Result struct {
	CompletedSteps []string
	Status         Status
	Cause          error
}

// Err returns the forward-action error that ended the saga, or nil.
// Compensation failures never replace it; they are visible only through
// Status and logging.
func (r Result) Err() error {
	return r.Cause
}

// Executor runs saga steps strictly in order and rolls back on failure.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor constructs an Executor. A nil logger falls back to slog.Default.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Execute runs forward actions sequentially in list order. Later steps may
// depend on side effects of earlier ones, so there is no parallelism. On the
// first failure, compensations for the completed steps run in reverse order,
// each independently: a compensation failure is logged and does not stop the
// remaining compensations.
func (e *Executor) Execute(ctx context.Context, steps []Step) Result {
	completed := make([]string, 0, len(steps))

	for i, step := range steps {
		e.logger.Debug("saga step starting", "step", step.Name, "index", i)

		if err := step.Forward(ctx); err != nil {
			e.logger.Error("saga step failed, rolling back",
				"step", step.Name, "index", i, "error", err)
			status := e.rollback(ctx, steps[:i])
			return Result{CompletedSteps: completed, Status: status, Cause: err}
		}

		completed = append(completed, step.Name)
	}

	return Result{CompletedSteps: completed, Status: StatusSucceeded}
}

// rollback compensates completed steps in reverse order, best effort.
func (e *Executor) rollback(ctx context.Context, completed []Step) Status {
	status := StatusFailedClean

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}

		if err := step.Compensate(ctx); err != nil {
			// The failed undo is not retried here; someone has to
			// reconcile the leftover state by hand.
			e.logger.Error("saga compensation failed, manual intervention required",
				"step", step.Name, "error", err)
			status = StatusFailedDirty
			continue
		}

		e.logger.Info("saga step compensated", "step", step.Name)
	}

	return status
}
