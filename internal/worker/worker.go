// Package worker implements the per-process actor that registers itself,
// heartbeats, polls for tasks claimed to its identity, and drives the
// Execution Coordinator.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/coordinator"
	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/internal/notify"
	"github.com/jobs/scheduler/internal/retry"
	"github.com/jobs/scheduler/internal/store"
	"github.com/jobs/scheduler/pkg/config"
)

var Provider = wire.NewSet(New)

// Store is the subset of *store.Store the Worker Loop needs.
type Store interface {
	UpsertHeartbeat(ctx context.Context, workerID string, now time.Time, metadata models.JSONMap) error
	TouchHeartbeat(ctx context.Context, workerID string, now time.Time) (bool, error)
	FindByWorkerAndStatus(ctx context.Context, workerID string, status models.TaskStatus) ([]models.Task, error)
}

// Worker is one process's claim-processing identity. Its id is derived
// once at construction from the host name plus a random suffix.
type Worker struct {
	id       string
	cfg      config.WorkerConfig
	store    Store
	coord    *coordinator.Coordinator
	policy   *retry.Policy
	notifier *notify.Publisher
	logger   *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(cfg config.Config, store *store.Store, coord *coordinator.Coordinator, policy *retry.Policy, notifier *notify.Publisher, logger *zap.Logger) *Worker {
	return &Worker{
		id:       deriveWorkerID(),
		cfg:      cfg.Worker,
		store:    store,
		coord:    coord,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func deriveWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) Start(ctx context.Context) error {
	if !w.cfg.Enabled {
		w.logger.Info("worker loop disabled")
		return nil
	}

	now := time.Now()
	if err := w.store.UpsertHeartbeat(ctx, w.id, now, models.JSONMap{
		"hostname":   hostnameOrUnknown(),
		"pid":        os.Getpid(),
		"started_at": now.Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("register worker heartbeat: %w", err)
	}

	w.wg.Add(2)
	go w.heartbeatLoop()
	go w.processingLoop()

	w.logger.Info("worker loop started", zap.String("worker_id", w.id))
	return nil
}

// Stop is cooperative: it stops both subtasks and waits for the current
// tick of each to finish. An attempt in flight inside the Coordinator is
// not cancelled: the current processing tick runs every task it fetched
// to completion before Stop returns. Tasks claimed to this worker after
// that stay RUNNING for the next process's Recovery to re-drive.
func (w *Worker) Stop() {
	if !w.cfg.Enabled {
		return
	}
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("worker loop stopped", zap.String("worker_id", w.id))
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

func (w *Worker) heartbeatLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.HeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.heartbeatTick()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) heartbeatTick() {
	ctx := context.Background()
	now := time.Now()

	touched, err := w.store.TouchHeartbeat(ctx, w.id, now)
	if err != nil {
		w.logger.Error("failed to touch heartbeat", zap.String("worker_id", w.id), zap.Error(err))
		return
	}
	if touched {
		return
	}

	// The row disappeared - e.g. the Failure Detector cleaned it up
	// after a GC pause. Re-register.
	w.logger.Warn("heartbeat row missing, re-registering", zap.String("worker_id", w.id))
	if err := w.store.UpsertHeartbeat(ctx, w.id, now, models.JSONMap{"hostname": hostnameOrUnknown(), "pid": os.Getpid()}); err != nil {
		w.logger.Error("failed to re-register heartbeat", zap.String("worker_id", w.id), zap.Error(err))
	}
}

func (w *Worker) processingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.ProcessingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.processingTick()
		case <-w.stopCh:
			return
		}
	}
}

// processingTick processes this worker's RUNNING tasks sequentially in
// assigned_at order, the within-worker ordering guarantee this loop
// provides. Parallelism across workers, not within one, is the scaling unit.
func (w *Worker) processingTick() {
	ctx := context.Background()

	tasks, err := w.store.FindByWorkerAndStatus(ctx, w.id, models.TaskStatusRunning)
	if err != nil {
		w.logger.Error("failed to poll claimed tasks", zap.String("worker_id", w.id), zap.Error(err))
		return
	}

	for i := range tasks {
		task := &tasks[i]
		outcome, err := w.coord.Run(ctx, task, w.id)
		if err != nil {
			w.logger.Error("coordinator failed running task", zap.String("task_id", task.ID), zap.Error(err))
			continue
		}

		switch outcome {
		case coordinator.OutcomeNeedsRetryDecision:
			if _, err := w.policy.HandleFailure(ctx, task); err != nil {
				w.logger.Error("retry policy failed handling task failure", zap.String("task_id", task.ID), zap.Error(err))
			}
			w.notifier.TaskCompleted(ctx, task.ID, "retrying")
		case coordinator.OutcomeTerminalFailure:
			w.notifier.TaskCompleted(ctx, task.ID, string(models.TaskStatusFailed))
		case coordinator.OutcomeSuccess:
			w.notifier.TaskCompleted(ctx, task.ID, string(models.TaskStatusSuccess))
		}
	}
}
