package atomicsave

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rosterhq/teamkit/pkg/logger"
)

// SaveOperation is one named step of an atomic save: an execute function that
// writes to the backing store and an optional rollback that compensates for
// it should a later step fail.
type SaveOperation[T any] struct {
	Name     string
	Execute  func(ctx context.Context) (T, error)
	Rollback func(ctx context.Context) error
}

// NewSaveOperation builds a SaveOperation. Pass a nil rollback for steps that
// need no compensation (for example idempotent metadata writes).
func NewSaveOperation[T any](name string, execute func(ctx context.Context) (T, error), rollback func(ctx context.Context) error) SaveOperation[T] {
	return SaveOperation[T]{
		Name:     name,
		Execute:  execute,
		Rollback: rollback,
	}
}

// RollbackOutcome records a single compensation attempt during a failed save.
type RollbackOutcome struct {
	// Name is the name of the rolled back operation.
	Name string
	// Err is nil when the rollback succeeded.
	Err error
}

// Result is the outcome of one ExecuteAtomicSave call. It is always returned,
// never accompanied by a separate error: all failure detail lives here.
type Result[T any] struct {
	// Success is true when every operation executed without error.
	Success bool

	// Results holds one entry per input operation, in input order.
	// Populated only on success.
	Results []T

	// Err names the operation that failed and wraps its underlying error.
	// Nil on success.
	Err error

	// RolledBack is true when at least one operation had completed before
	// the failure, so compensation ran.
	RolledBack bool

	// Rollbacks records each invoked rollback in the order it ran
	// (reverse of execution order). Operations without a rollback
	// function are not listed.
	Rollbacks []RollbackOutcome
}

// Coordinator executes ordered save operations with all-or-nothing semantics
// over a store that has no transactions of its own: on the first failure it
// stops and invokes the completed operations' rollbacks in reverse order,
// best-effort.
type Coordinator[T any] struct {
	logger *slog.Logger
	locks  *keyedMutex
}

// NewCoordinator creates a save coordinator.
func NewCoordinator[T any](opts ...Option) *Coordinator[T] {
	options := &options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Coordinator[T]{
		logger: options.logger,
		locks:  newKeyedMutex(),
	}
}

// ExecuteAtomicSave runs the operations in order. On the first failure no
// further operation executes and every completed operation is rolled back in
// reverse order; a rollback error is recorded and logged but never stops the
// remaining rollbacks. The call never returns a Go error; inspect the
// Result instead.
func (c *Coordinator[T]) ExecuteAtomicSave(ctx context.Context, operations []SaveOperation[T], opts ...CallOption) Result[T] {
	// An empty list has nothing to execute and nothing to roll back;
	// all-of-zero operations trivially succeeded.
	if len(operations) == 0 {
		return Result[T]{Success: true, Results: []T{}}
	}

	callOpts := &callOptions{}
	for _, opt := range opts {
		opt(callOpts)
	}

	if len(callOpts.lockKeys) > 0 {
		unlock := c.locks.lockAll(callOpts.lockKeys)
		defer unlock()
	}

	start := time.Now()
	completed := make([]SaveOperation[T], 0, len(operations))
	results := make([]T, 0, len(operations))

	for _, op := range operations {
		if op.Name == "" || op.Execute == nil {
			return c.fail(ctx, op.Name, ErrInvalidOperation, completed)
		}

		c.logger.DebugContext(ctx, "executing save operation", logger.Transaction(op.Name))

		result, err := op.Execute(ctx)
		if err != nil {
			return c.fail(ctx, op.Name, err, completed)
		}

		completed = append(completed, op)
		results = append(results, result)
	}

	c.logger.InfoContext(ctx, "atomic save completed",
		slog.Int("operations", len(operations)),
		logger.Duration(time.Since(start)))

	return Result[T]{Success: true, Results: results}
}

// fail rolls back the completed operations in reverse order and assembles the
// failure result.
func (c *Coordinator[T]) fail(ctx context.Context, failedName string, cause error, completed []SaveOperation[T]) Result[T] {
	err := fmt.Errorf("save operation %q failed: %w", failedName, cause)

	c.logger.ErrorContext(ctx, "atomic save failed, rolling back",
		logger.Transaction(failedName),
		slog.Int("completed", len(completed)),
		logger.Error(cause))

	res := Result[T]{
		Err:        err,
		RolledBack: len(completed) > 0,
	}

	for i := len(completed) - 1; i >= 0; i-- {
		op := completed[i]
		if op.Rollback == nil {
			continue
		}

		outcome := RollbackOutcome{Name: op.Name}
		if rbErr := op.Rollback(ctx); rbErr != nil {
			outcome.Err = rbErr
			c.logger.ErrorContext(ctx, "rollback failed",
				logger.Transaction(op.Name),
				logger.Error(rbErr))
		} else {
			c.logger.DebugContext(ctx, "rolled back save operation", logger.Transaction(op.Name))
		}
		res.Rollbacks = append(res.Rollbacks, outcome)
	}

	return res
}
