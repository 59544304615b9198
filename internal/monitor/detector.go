// Package monitor implements the Failure Detector (stale-worker scan and
// abandoned-task reassignment) and the read-only Monitoring view.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/internal/retry"
	"github.com/jobs/scheduler/internal/store"
	"github.com/jobs/scheduler/pkg/config"
)

var Provider = wire.NewSet(NewDetector, NewView)

// DetectorStore is the subset of *store.Store the Failure Detector needs.
type DetectorStore interface {
	FindStaleWorkers(ctx context.Context, cutoff time.Time) ([]models.WorkerHeartbeat, error)
	ResetAbandoned(ctx context.Context, workerID string, fromStatus, toStatus models.TaskStatus, now time.Time) (int64, error)
	CleanupStaleHeartbeats(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetrySweeper is the subset of *retry.Policy the Failure Detector needs to
// run the retry-limit safety net on the same cadence as its own stale-worker
// scan, rather than leaving it uninvoked.
type RetrySweeper interface {
	ProcessTasksExceedingRetryLimit(ctx context.Context) (int, error)
}

// Detector periodically scans heartbeats; for any stale worker, it
// reassigns the worker's running tasks back to the ready pool. It also
// sweeps for PENDING tasks that already exceeded their retry budget - a
// race artefact the Retry Policy itself never revisits on its own.
type Detector struct {
	workerCfg  config.WorkerConfig
	monitorCfg config.MonitorConfig
	store      DetectorStore
	retry      RetrySweeper
	logger     *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewDetector(cfg config.Config, store *store.Store, retryPolicy *retry.Policy, logger *zap.Logger) *Detector {
	return &Detector{
		workerCfg:  cfg.Worker,
		monitorCfg: cfg.Monitor,
		store:      store,
		retry:      retryPolicy,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

func (d *Detector) Start() {
	d.wg.Add(1)
	go d.run()
	d.logger.Info("failure detector started", zap.Duration("interval", d.monitorCfg.FailureDetectionInterval()))
}

func (d *Detector) Stop() {
	close(d.stopCh)
	d.wg.Wait()
	d.logger.Info("failure detector stopped")
}

func (d *Detector) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.monitorCfg.FailureDetectionInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.tick()
		case <-d.stopCh:
			return
		}
	}
}

func (d *Detector) tick() {
	ctx := context.Background()
	now := time.Now()
	cutoff := now.Add(-d.workerCfg.HeartbeatTimeout())

	stale, err := d.store.FindStaleWorkers(ctx, cutoff)
	if err != nil {
		d.logger.Error("failed to scan for stale workers", zap.Error(err))
		return
	}

	for _, worker := range stale {
		affected, err := d.store.ResetAbandoned(ctx, worker.WorkerID, models.TaskStatusRunning, models.TaskStatusPending, now)
		if err != nil {
			d.logger.Error("failed to reset abandoned tasks", zap.String("worker_id", worker.WorkerID), zap.Error(err))
			continue
		}
		if affected > 0 {
			d.logger.Warn("reassigned abandoned tasks from stale worker",
				zap.String("worker_id", worker.WorkerID),
				zap.Int64("count", affected),
				zap.Time("last_heartbeat", worker.LastHeartbeat))
		}
	}

	// The stale row itself is not deleted here - only the 24h cleanup
	// below does that, giving observability tools a window to see the
	// dead worker.
	retentionCutoff := now.Add(-d.monitorCfg.HeartbeatRetention())
	if removed, err := d.store.CleanupStaleHeartbeats(ctx, retentionCutoff); err != nil {
		d.logger.Error("failed to clean up stale heartbeats", zap.Error(err))
	} else if removed > 0 {
		d.logger.Info("cleaned up stale heartbeat rows", zap.Int64("count", removed))
	}

	// Safety-net sweep: Policy.HandleFailure already finalises a task the
	// moment it observes the retry budget exhausted, but a task can be left
	// PENDING past its budget if the process restarts mid-retry. Policy logs
	// its own outcome, so only the error path needs handling here.
	if _, err := d.retry.ProcessTasksExceedingRetryLimit(ctx); err != nil {
		d.logger.Error("failed to sweep tasks exceeding retry limit", zap.Error(err))
	}
}
