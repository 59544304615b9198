// Package recovery implements the startup and manual recovery sequence
// ported from SystemRecoveryService: on process start no worker id from a
// previous run can be trusted, so every RUNNING task is handed back to
// PENDING and every heartbeat row is discarded before any loop starts.
package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/internal/store"
)

// Store is the subset of *store.Store Recovery needs.
type Store interface {
	CountTasks(ctx context.Context) (int64, error)
	CountHeartbeats(ctx context.Context) (int64, error)
	ResetAllRunning(ctx context.Context, now time.Time) (int64, error)
	DeleteAllHeartbeats(ctx context.Context) error
	FindByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error)
	ListHeartbeats(ctx context.Context) ([]models.WorkerHeartbeat, error)
}

// Result reports what a recovery pass changed, mirroring the original's
// RecoveryResult.
type Result struct {
	RecoveredTasks int64 `json:"recovered_tasks"`
	CleanedWorkers int64 `json:"cleaned_workers"`
	Success        bool  `json:"success"`
}

var Provider = wire.NewSet(New)

// Recovery owns the startup recovery pass and the manual-recovery/
// consistency endpoints backing it.
type Recovery struct {
	store  Store
	logger *zap.Logger
}

func New(store *store.Store, log *zap.Logger) *Recovery {
	return &Recovery{store: store, logger: log}
}

// Run performs the startup recovery sequence exactly once, before any
// Scheduler, Worker, or Failure Detector loop starts. It first checks the
// store is reachable, then resets abandoned work.
func (r *Recovery) Run(ctx context.Context) (Result, error) {
	if err := r.checkReachable(ctx); err != nil {
		return Result{}, fmt.Errorf("store not reachable: %w", err)
	}

	result, err := r.recover(ctx)
	if err != nil {
		return Result{}, err
	}
	r.logger.Info("startup recovery complete",
		zap.Int64("recovered_tasks", result.RecoveredTasks),
		zap.Int64("cleaned_workers", result.CleanedWorkers))
	return result, nil
}

// PerformManualRecovery re-runs the same sequence on demand, backing
// POST /health/recovery.
func (r *Recovery) PerformManualRecovery(ctx context.Context) (Result, error) {
	return r.recover(ctx)
}

func (r *Recovery) recover(ctx context.Context) (Result, error) {
	now := time.Now()

	recovered, err := r.store.ResetAllRunning(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("recover running tasks: %w", err)
	}
	if recovered > 0 {
		r.logger.Warn("reset abandoned running tasks to pending", zap.Int64("count", recovered))
	}

	cleaned, err := r.store.CountHeartbeats(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count stale worker data: %w", err)
	}
	if err := r.store.DeleteAllHeartbeats(ctx); err != nil {
		return Result{}, fmt.Errorf("clean stale worker data: %w", err)
	}
	if cleaned > 0 {
		r.logger.Info("cleared stale worker heartbeats", zap.Int64("count", cleaned))
	}

	return Result{RecoveredTasks: recovered, CleanedWorkers: cleaned, Success: true}, nil
}

func (r *Recovery) checkReachable(ctx context.Context) error {
	if _, err := r.store.CountTasks(ctx); err != nil {
		return fmt.Errorf("tasks table: %w", err)
	}
	if _, err := r.store.CountHeartbeats(ctx); err != nil {
		return fmt.Errorf("worker_heartbeats table: %w", err)
	}
	return nil
}

// IsConsistent reports whether every RUNNING task's worker has a heartbeat
// row (stale rows count), mirroring isSystemStateConsistent. Orphaned tasks are logged but not corrected here -
// that is the Failure Detector's job on its own cadence.
func (r *Recovery) IsConsistent(ctx context.Context) (bool, []string, error) {
	running, err := r.store.FindByStatus(ctx, models.TaskStatusRunning)
	if err != nil {
		return false, nil, err
	}
	heartbeats, err := r.store.ListHeartbeats(ctx)
	if err != nil {
		return false, nil, err
	}

	known := make(map[string]struct{}, len(heartbeats))
	for _, hb := range heartbeats {
		known[hb.WorkerID] = struct{}{}
	}

	var orphaned []string
	for _, task := range running {
		if task.WorkerID == nil {
			continue
		}
		if _, ok := known[*task.WorkerID]; !ok {
			orphaned = append(orphaned, task.ID)
		}
	}

	if len(orphaned) > 0 {
		r.logger.Warn("orphaned running tasks detected", zap.Strings("task_ids", orphaned))
	}
	return len(orphaned) == 0, orphaned, nil
}
