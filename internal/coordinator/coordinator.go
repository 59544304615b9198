// Package coordinator runs a single claimed task through its executor,
// records the attempt, and commits the terminal task state.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/executor"
	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/internal/store"
)

var Provider = wire.NewSet(NewCoordinator)

// Outcome tells the caller (the Worker Loop) what, if anything, it still
// needs to do after Run returns.
type Outcome int

const (
	// OutcomeSuccess: the task reached SUCCESS. Nothing further to do.
	OutcomeSuccess Outcome = iota
	// OutcomeTerminalFailure: the task was already finalised as FAILED
	// (no executor, or an unrecoverable error) - the Retry Policy must
	// not be consulted.
	OutcomeTerminalFailure
	// OutcomeNeedsRetryDecision: the executor reported a recoverable
	// failure (or an unexpected fault) and the task is still RUNNING -
	// the caller must hand it to the Retry Policy.
	OutcomeNeedsRetryDecision
)

// Store is the subset of *store.Store the coordinator needs.
type Store interface {
	RecordAttemptStart(ctx context.Context, taskID, workerID string) (*models.TaskAttempt, error)
	RecordAttemptFinish(ctx context.Context, attemptID string, success bool, output, errorMessage *string, metadata models.JSONMap, now time.Time) error
	CompleteTask(ctx context.Context, taskID string, toStatus models.TaskStatus, completedAt time.Time, output *string, metadata models.JSONMap, now time.Time) (bool, error)
}

// Registry is the subset of *executor.Registry the coordinator needs.
type Registry interface {
	Dispatch(taskType models.TaskType) executor.Capability
}

type Coordinator struct {
	store    Store
	registry Registry
	logger   *zap.Logger
}

func NewCoordinator(store *store.Store, registry *executor.Registry, logger *zap.Logger) *Coordinator {
	return &Coordinator{store: store, registry: registry, logger: logger}
}

// Run drives one claimed task end to end. task must already be RUNNING
// and owned by workerID.
func (c *Coordinator) Run(ctx context.Context, task *models.Task, workerID string) (Outcome, error) {
	attempt, err := c.store.RecordAttemptStart(ctx, task.ID, workerID)
	if err != nil {
		return OutcomeTerminalFailure, err
	}

	capability := c.registry.Dispatch(task.Type)
	if capability == nil {
		msg := "no executor for type " + string(task.Type)
		if err := c.finishAttempt(ctx, attempt.ID, false, nil, &msg); err != nil {
			c.logger.Error("failed to record attempt for missing executor", zap.Error(err))
		}
		if _, err := c.store.CompleteTask(ctx, task.ID, models.TaskStatusFailed, time.Now(), nil, nil, time.Now()); err != nil {
			return OutcomeTerminalFailure, err
		}
		return OutcomeTerminalFailure, nil
	}

	result, execErr := capability.Execute(ctx, task)

	var unrecoverable *executor.UnrecoverableError
	if errors.As(execErr, &unrecoverable) {
		msg := unrecoverable.Error()
		if err := c.finishAttempt(ctx, attempt.ID, false, nil, &msg); err != nil {
			c.logger.Error("failed to record unrecoverable attempt", zap.Error(err))
		}
		if _, err := c.store.CompleteTask(ctx, task.ID, models.TaskStatusFailed, time.Now(), nil, nil, time.Now()); err != nil {
			return OutcomeTerminalFailure, err
		}
		return OutcomeTerminalFailure, nil
	}
	if execErr != nil {
		// Any other unexpected fault: behaves like a recoverable failure
		// (safe default: retry).
		msg := execErr.Error()
		if err := c.finishAttempt(ctx, attempt.ID, false, nil, &msg); err != nil {
			c.logger.Error("failed to record attempt for unexpected fault", zap.Error(err))
		}
		return OutcomeNeedsRetryDecision, nil
	}

	if result.Success {
		if err := c.finishAttempt(ctx, attempt.ID, true, result.Output, nil); err != nil {
			c.logger.Error("failed to record successful attempt", zap.Error(err))
		}
		completedAt := time.Now()
		if _, err := c.store.CompleteTask(ctx, task.ID, models.TaskStatusSuccess, completedAt, result.Output, result.Metadata, completedAt); err != nil {
			return OutcomeSuccess, err
		}
		return OutcomeSuccess, nil
	}

	// result.Success == false: recoverable failure, hand to Retry Policy.
	errMsg := result.Error
	if err := c.finishAttempt(ctx, attempt.ID, false, result.Output, &errMsg); err != nil {
		c.logger.Error("failed to record failed attempt", zap.Error(err))
	}
	return OutcomeNeedsRetryDecision, nil
}

func (c *Coordinator) finishAttempt(ctx context.Context, attemptID string, success bool, output, errorMessage *string) error {
	return c.store.RecordAttemptFinish(ctx, attemptID, success, output, errorMessage, nil, time.Now())
}
