package store

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jobs/scheduler/internal/models"
)

// UpsertHeartbeat registers a worker on first contact and refreshes its
// liveness stamp on every subsequent call - the init and the re-register
// path (after a stale-cleanup sweep) both call this.
func (s *Store) UpsertHeartbeat(ctx context.Context, workerID string, now time.Time, metadata models.JSONMap) error {
	return s.WithTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context) error {
		row := &models.WorkerHeartbeat{
			WorkerID:      workerID,
			LastHeartbeat: now,
			Metadata:      metadata,
			RegisteredAt:  now,
			Version:       0,
		}
		return s.db(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "worker_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_heartbeat", "metadata", "version"}),
		}).Create(row).Error
	})
}

// TouchHeartbeat refreshes a worker's liveness stamp. A zero-row result
// means the row is gone (the Failure Detector's cleanup sweep beat the
// worker to it) and the caller must re-register.
func (s *Store) TouchHeartbeat(ctx context.Context, workerID string, now time.Time) (bool, error) {
	var touched bool
	err := s.WithTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context) error {
		res := s.db(ctx).Model(&models.WorkerHeartbeat{}).
			Where("worker_id = ?", workerID).
			Updates(map[string]any{
				"last_heartbeat": now,
				"version":        gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		touched = res.RowsAffected == 1
		return nil
	})
	return touched, err
}

func (s *Store) FindStaleWorkers(ctx context.Context, cutoff time.Time) ([]models.WorkerHeartbeat, error) {
	var workers []models.WorkerHeartbeat
	err := s.db(ctx).Where("last_heartbeat < ?", cutoff).Find(&workers).Error
	return workers, err
}

func (s *Store) FindActiveWorkers(ctx context.Context, cutoff time.Time) ([]models.WorkerHeartbeat, error) {
	var workers []models.WorkerHeartbeat
	err := s.db(ctx).Where("last_heartbeat >= ?", cutoff).Find(&workers).Error
	return workers, err
}

// CleanupStaleHeartbeats deletes heartbeat rows older than cutoff, bounding
// table size. Deliberately separate from stale detection - see the
// Failure Detector's retention window.
func (s *Store) CleanupStaleHeartbeats(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db(ctx).Where("last_heartbeat < ?", cutoff).Delete(&models.WorkerHeartbeat{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteAllHeartbeats(ctx context.Context) error {
	return s.db(ctx).Where("1 = 1").Delete(&models.WorkerHeartbeat{}).Error
}

func (s *Store) ListHeartbeats(ctx context.Context) ([]models.WorkerHeartbeat, error) {
	var workers []models.WorkerHeartbeat
	err := s.db(ctx).Order("last_heartbeat DESC").Find(&workers).Error
	return workers, err
}

func (s *Store) CountActiveWorkers(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := s.db(ctx).Model(&models.WorkerHeartbeat{}).Where("last_heartbeat >= ?", cutoff).Count(&count).Error
	return count, err
}

// CountHeartbeats is a trivial reachability probe for the worker_heartbeats
// table, used by Recovery before it touches anything.
func (s *Store) CountHeartbeats(ctx context.Context) (int64, error) {
	var count int64
	err := s.db(ctx).Model(&models.WorkerHeartbeat{}).Count(&count).Error
	return count, err
}
