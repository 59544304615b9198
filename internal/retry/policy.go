// Package retry decides, for a failed task, whether to reschedule it with
// backoff or finalise it as FAILED, and computes the backoff delay.
package retry

import (
	"context"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/internal/store"
	"github.com/jobs/scheduler/pkg/config"
)

var Provider = wire.NewSet(NewPolicy)

// Store is the subset of *store.Store the Retry Policy needs.
type Store interface {
	IncrementRetryAndReschedule(ctx context.Context, taskID string, toStatus models.TaskStatus, newScheduleAt time.Time, now time.Time) (bool, error)
	UpdateStatus(ctx context.Context, taskID string, fromStatus, toStatus models.TaskStatus, now time.Time) (bool, error)
	FindTasksExceedingRetryLimit(ctx context.Context, status models.TaskStatus) ([]models.Task, error)
}

type Policy struct {
	store  Store
	cfg    config.RetryConfig
	logger *zap.Logger
}

func NewPolicy(store *store.Store, cfg config.RetryConfig, logger *zap.Logger) *Policy {
	return &Policy{store: store, cfg: cfg, logger: logger}
}

// Delay returns the exponential backoff delay for the given 0-based retry
// count: min(base*2^n, max). A negative count is treated as 0.
func (p *Policy) Delay(retryCount int) time.Duration {
	return Delay(retryCount, p.cfg.BaseDelay(), p.cfg.MaxDelay())
}

// Delay is the pure backoff function, exported so it can be unit tested
// independently of a Policy instance and its config.
func Delay(retryCount int, base, max time.Duration) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	// Guard against shift overflow for pathologically large retry counts;
	// at that point the delay is already pinned to max.
	if retryCount >= 62 {
		return max
	}
	delay := base * time.Duration(int64(1)<<uint(retryCount))
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}

// HandleFailure is called by the Worker Loop after the Execution
// Coordinator reports a recoverable executor failure. It reschedules the task with backoff if
// budget remains, otherwise finalises it as FAILED. A false return means
// another actor already moved the task - not an error.
func (p *Policy) HandleFailure(ctx context.Context, task *models.Task) (bool, error) {
	now := time.Now()

	if task.RetryCount < task.MaxRetries {
		delay := p.Delay(task.RetryCount)
		newScheduleAt := now.Add(delay)
		ok, err := p.store.IncrementRetryAndReschedule(ctx, task.ID, models.TaskStatusPending, newScheduleAt, now)
		if err != nil {
			return false, err
		}
		if ok {
			p.logger.Info("task rescheduled for retry",
				zap.String("task_id", task.ID),
				zap.Duration("delay", delay),
				zap.Int("attempt", task.RetryCount+1),
				zap.Int("max_retries", task.MaxRetries))
		} else {
			p.logger.Warn("reschedule lost the race - task was modified concurrently", zap.String("task_id", task.ID))
		}
		return ok, nil
	}

	ok, err := p.store.UpdateStatus(ctx, task.ID, task.Status, models.TaskStatusFailed, now)
	if err != nil {
		return false, err
	}
	if ok {
		p.logger.Info("task permanently failed - retry limit exceeded", zap.String("task_id", task.ID), zap.Int("max_retries", task.MaxRetries))
	}
	return ok, nil
}

// ProcessTasksExceedingRetryLimit finalises, as a periodic safety-net
// sweep, any PENDING row whose retry_count has already reached
// max_retries - a race artefact rather than a normal path.
func (p *Policy) ProcessTasksExceedingRetryLimit(ctx context.Context) (int, error) {
	tasks, err := p.store.FindTasksExceedingRetryLimit(ctx, models.TaskStatusPending)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, task := range tasks {
		ok, err := p.store.UpdateStatus(ctx, task.ID, models.TaskStatusPending, models.TaskStatusFailed, time.Now())
		if err != nil {
			p.logger.Error("error finalising task exceeding retry limit", zap.String("task_id", task.ID), zap.Error(err))
			continue
		}
		if ok {
			failed++
		}
	}
	if failed > 0 {
		p.logger.Info("marked tasks as permanently failed due to retry limit exceeded", zap.Int("count", failed))
	}
	return failed, nil
}
