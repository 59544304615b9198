package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"gorm.io/gorm"

	"github.com/jobs/scheduler/internal/models"
)

// TaskFilter narrows ListTasks. Absent fields (mo.None) are not filtered on.
type TaskFilter struct {
	Status mo.Option[models.TaskStatus]
	Type   mo.Option[models.TaskType]
	Page   int
	Size   int
}

func (s *Store) InsertTask(ctx context.Context, taskType models.TaskType, payload string, scheduleAt time.Time, maxRetries int) (*models.Task, error) {
	task := &models.Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Payload:    payload,
		Status:     models.TaskStatusPending,
		ScheduleAt: scheduleAt,
		RetryCount: 0,
		MaxRetries: maxRetries,
		Version:    0,
	}
	if err := s.db(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	if err := s.db(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	query := s.db(ctx).Model(&models.Task{})
	if filter.Status.IsPresent() {
		query = query.Where("status = ?", filter.Status.MustGet())
	}
	if filter.Type.IsPresent() {
		query = query.Where("type = ?", filter.Type.MustGet())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, size := filter.Page, filter.Size
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	var tasks []models.Task
	err := query.Order("schedule_at DESC").Offset((page - 1) * size).Limit(size).Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// CancelTask deletes the task iff it is still PENDING, per the DELETE
// /tasks/{id} contract: 404 unknown, 409 not PENDING.
func (s *Store) CancelTask(ctx context.Context, taskID string) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskStatusPending {
		return ErrNotPending
	}
	res := s.db(ctx).Where("id = ? AND status = ?", taskID, models.TaskStatusPending).Delete(&models.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

// FindDueTasks returns PENDING rows whose schedule_at has arrived, in
// ascending schedule order.
func (s *Store) FindDueTasks(ctx context.Context, now time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db(ctx).
		Where("status = ? AND schedule_at <= ?", models.TaskStatusPending, now).
		Order("schedule_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// Claim is the fundamental atomicity primitive: a compare-and-swap on
// status that also assigns ownership. Returns true iff exactly one row
// changed.
func (s *Store) Claim(ctx context.Context, taskID string, fromStatus, toStatus models.TaskStatus, workerID string, now time.Time) (bool, error) {
	var claimed bool
	err := s.WithTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context) error {
		res := s.db(ctx).Model(&models.Task{}).
			Where("id = ? AND status = ?", taskID, fromStatus).
			Updates(map[string]any{
				"status":      toStatus,
				"worker_id":   workerID,
				"assigned_at": now,
				"updated_at":  now,
				"version":     gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected == 1
		return nil
	})
	return claimed, err
}

// UpdateStatus is a plain status CAS, used for transitions that do not
// touch ownership fields - notably the Retry Policy's PENDING->FAILED
// finalisation.
func (s *Store) UpdateStatus(ctx context.Context, taskID string, fromStatus, toStatus models.TaskStatus, now time.Time) (bool, error) {
	var updated bool
	err := s.WithTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context) error {
		res := s.db(ctx).Model(&models.Task{}).
			Where("id = ? AND status = ?", taskID, fromStatus).
			Updates(map[string]any{
				"status":     toStatus,
				"updated_at": now,
				"version":    gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected == 1
		return nil
	})
	return updated, err
}

// CompleteTask writes terminal fields unconditionally on id - it runs
// only after the executor has already returned for this specific attempt,
// so there is no concurrent writer to race against and no CAS is needed.
func (s *Store) CompleteTask(ctx context.Context, taskID string, toStatus models.TaskStatus, completedAt time.Time, output *string, metadata models.JSONMap, now time.Time) (bool, error) {
	var completed bool
	err := s.WithTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context) error {
		res := s.db(ctx).Model(&models.Task{}).Where("id = ?", taskID).Updates(map[string]any{
			"status":             toStatus,
			"completed_at":       completedAt,
			"execution_output":   output,
			"execution_metadata": metadata,
			"updated_at":         now,
			"version":            gorm.Expr("version + 1"),
		})
		if res.Error != nil {
			return res.Error
		}
		completed = res.RowsAffected == 1
		return nil
	})
	return completed, err
}

// IncrementRetryAndReschedule bumps retry_count, clears ownership, and
// sends the task back to PENDING at newScheduleAt. Guarded on the task
// still being RUNNING so two concurrent failure reports for the same
// attempt cannot double-increment it.
func (s *Store) IncrementRetryAndReschedule(ctx context.Context, taskID string, toStatus models.TaskStatus, newScheduleAt time.Time, now time.Time) (bool, error) {
	var rescheduled bool
	err := s.WithTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context) error {
		res := s.db(ctx).Model(&models.Task{}).
			Where("id = ? AND status = ?", taskID, models.TaskStatusRunning).
			Updates(map[string]any{
				"status":      toStatus,
				"schedule_at": newScheduleAt,
				"worker_id":   nil,
				"assigned_at": nil,
				"retry_count": gorm.Expr("retry_count + 1"),
				"updated_at":  now,
				"version":     gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		rescheduled = res.RowsAffected == 1
		return nil
	})
	return rescheduled, err
}

// ResetAbandoned bulk-resets every row owned by workerID in fromStatus
// back to toStatus, clearing ownership. Idempotent: a second call for a
// worker already fully reset affects zero rows.
func (s *Store) ResetAbandoned(ctx context.Context, workerID string, fromStatus, toStatus models.TaskStatus, now time.Time) (int64, error) {
	var affected int64
	err := s.WithTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context) error {
		res := s.db(ctx).Model(&models.Task{}).
			Where("worker_id = ? AND status = ?", workerID, fromStatus).
			Updates(map[string]any{
				"status":      toStatus,
				"worker_id":   nil,
				"assigned_at": nil,
				"updated_at":  now,
				"version":     gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}

func (s *Store) CountByStatus(ctx context.Context, status models.TaskStatus) (int64, error) {
	var count int64
	err := s.db(ctx).Model(&models.Task{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// CountTasks is a trivial reachability probe for the tasks table, used by
// Recovery before it touches anything.
func (s *Store) CountTasks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db(ctx).Model(&models.Task{}).Count(&count).Error
	return count, err
}

// ResetAllRunning clears every RUNNING task's ownership and returns it to
// PENDING, regardless of worker - used once at startup by Recovery, where
// every worker id from the previous process is meaningless.
func (s *Store) ResetAllRunning(ctx context.Context, now time.Time) (int64, error) {
	res := s.db(ctx).Model(&models.Task{}).
		Where("status = ?", models.TaskStatusRunning).
		Updates(map[string]any{
			"status":      models.TaskStatusPending,
			"worker_id":   nil,
			"assigned_at": nil,
			"updated_at":  now,
			"version":     gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

func (s *Store) FindByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db(ctx).Where("status = ?", status).Find(&tasks).Error
	return tasks, err
}

func (s *Store) FindByWorkerAndStatus(ctx context.Context, workerID string, status models.TaskStatus) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db(ctx).
		Where("worker_id = ? AND status = ?", workerID, status).
		Order("assigned_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// FindTasksExceedingRetryLimit finds rows whose retry_count has reached
// max_retries while still in status - a race artefact the Retry Policy
// sweep finalises to FAILED.
func (s *Store) FindTasksExceedingRetryLimit(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db(ctx).
		Where("status = ? AND retry_count >= max_retries", status).
		Find(&tasks).Error
	return tasks, err
}
