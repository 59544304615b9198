package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/jobs/scheduler/internal/models"
)

// RecordAttemptStart inserts the in-flight attempt row for a claimed task.
func (s *Store) RecordAttemptStart(ctx context.Context, taskID, workerID string) (*models.TaskAttempt, error) {
	attempt := &models.TaskAttempt{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		WorkerID:  workerID,
		StartedAt: time.Now(),
	}
	if err := s.db(ctx).Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

// RecordAttemptFinish terminal-updates the attempt by id. It runs
// read-committed alongside the attempt-insert transaction per §4.4; there
// is exactly one writer for a given attempt id, so no CAS is needed.
func (s *Store) RecordAttemptFinish(ctx context.Context, attemptID string, success bool, output, errorMessage *string, metadata models.JSONMap, now time.Time) error {
	return s.WithTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context) error {
		return s.db(ctx).Model(&models.TaskAttempt{}).Where("id = ?", attemptID).Updates(map[string]any{
			"completed_at":  now,
			"success":       success,
			"output":        output,
			"error_message": errorMessage,
			"metadata":      metadata,
		}).Error
	})
}

func (s *Store) ListAttemptsForTask(ctx context.Context, taskID string) ([]models.TaskAttempt, error) {
	var attempts []models.TaskAttempt
	err := s.db(ctx).Where("task_id = ?", taskID).Order("started_at ASC").Find(&attempts).Error
	return attempts, err
}

// FindAttemptsStartedBetween backs the Monitoring view's execution
// metrics window.
func (s *Store) FindAttemptsStartedBetween(ctx context.Context, start, end time.Time) ([]models.TaskAttempt, error) {
	var attempts []models.TaskAttempt
	err := s.db(ctx).Where("started_at >= ? AND started_at <= ?", start, end).Find(&attempts).Error
	return attempts, err
}

// FindStuckAttempts returns in-flight attempts (completed_at is null)
// started before cutoff - candidates for a worker that died mid-attempt.
func (s *Store) FindStuckAttempts(ctx context.Context, cutoff time.Time) ([]models.TaskAttempt, error) {
	var attempts []models.TaskAttempt
	err := s.db(ctx).Where("completed_at IS NULL AND started_at < ?", cutoff).Find(&attempts).Error
	return attempts, err
}
