package monitor

import (
	"context"
	"math"
	"time"

	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/internal/store"
	"github.com/jobs/scheduler/pkg/config"
)

// ViewStore is the subset of *store.Store the Monitoring view needs.
type ViewStore interface {
	CountByStatus(ctx context.Context, status models.TaskStatus) (int64, error)
	ListHeartbeats(ctx context.Context) ([]models.WorkerHeartbeat, error)
	CountActiveWorkers(ctx context.Context, cutoff time.Time) (int64, error)
	FindAttemptsStartedBetween(ctx context.Context, start, end time.Time) ([]models.TaskAttempt, error)
	FindStuckAttempts(ctx context.Context, cutoff time.Time) ([]models.TaskAttempt, error)
}

type TaskCounts struct {
	Pending int64 `json:"pending"`
	Running int64 `json:"running"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	Total   int64 `json:"total"`
}

type WorkerStatus struct {
	WorkerID            string    `json:"worker_id"`
	LastHeartbeat       time.Time `json:"last_heartbeat"`
	RegisteredAt        time.Time `json:"registered_at"`
	Active              bool      `json:"active"`
	SecondsSinceContact int64     `json:"seconds_since_heartbeat"`
}

type ExecutionMetrics struct {
	TotalExecutions        int64     `json:"total_executions"`
	SuccessfulExecutions   int64     `json:"successful_executions"`
	FailedExecutions       int64     `json:"failed_executions"`
	SuccessRatePercent     float64   `json:"success_rate_percent"`
	AverageExecutionTimeMs int64     `json:"average_execution_time_ms"`
	CurrentlyRunning       int       `json:"currently_running"`
	PotentiallyStuck       int       `json:"potentially_stuck"`
	PeriodHours            int       `json:"period_hours"`
	PeriodStart            time.Time `json:"period_start"`
	PeriodEnd              time.Time `json:"period_end"`
}

type HealthStatus string

const (
	HealthUp       HealthStatus = "UP"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthDown     HealthStatus = "DOWN"
)

// View serves the read-only aggregates behind /health, /health/workers
// and /health/metrics.
type View struct {
	cfg       config.MonitorConfig
	workerCfg config.WorkerConfig
	store     ViewStore
	startedAt time.Time
	cache     *cache
}

func NewView(cfg config.Config, store *store.Store) *View {
	return &View{
		cfg:       cfg.Monitor,
		workerCfg: cfg.Worker,
		store:     store,
		startedAt: time.Now(),
		cache:     newCache(2 * time.Second),
	}
}

func (v *View) workerCutoff() time.Time {
	return time.Now().Add(-v.workerCfg.HeartbeatTimeout())
}

func (v *View) TaskCounts(ctx context.Context) (TaskCounts, error) {
	if cached, ok := v.cache.get("task_counts"); ok {
		return cached.(TaskCounts), nil
	}

	var counts TaskCounts
	var err error
	if counts.Pending, err = v.store.CountByStatus(ctx, models.TaskStatusPending); err != nil {
		return TaskCounts{}, err
	}
	if counts.Running, err = v.store.CountByStatus(ctx, models.TaskStatusRunning); err != nil {
		return TaskCounts{}, err
	}
	if counts.Success, err = v.store.CountByStatus(ctx, models.TaskStatusSuccess); err != nil {
		return TaskCounts{}, err
	}
	if counts.Failed, err = v.store.CountByStatus(ctx, models.TaskStatusFailed); err != nil {
		return TaskCounts{}, err
	}
	counts.Total = counts.Pending + counts.Running + counts.Success + counts.Failed

	v.cache.set("task_counts", counts)
	return counts, nil
}

func (v *View) ActiveWorkerCount(ctx context.Context) (int64, error) {
	return v.store.CountActiveWorkers(ctx, v.workerCutoff())
}

func (v *View) WorkerStatuses(ctx context.Context) ([]WorkerStatus, error) {
	heartbeats, err := v.store.ListHeartbeats(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cutoff := v.workerCutoff()
	statuses := make([]WorkerStatus, 0, len(heartbeats))
	for _, hb := range heartbeats {
		statuses = append(statuses, WorkerStatus{
			WorkerID:            hb.WorkerID,
			LastHeartbeat:       hb.LastHeartbeat,
			RegisteredAt:        hb.RegisteredAt,
			Active:              hb.LastHeartbeat.After(cutoff),
			SecondsSinceContact: int64(now.Sub(hb.LastHeartbeat).Seconds()),
		})
	}
	return statuses, nil
}

func (v *View) stuckCutoff() time.Time {
	return time.Now().Add(-v.cfg.StuckExecutionThreshold())
}

func (v *View) ExecutionMetrics(ctx context.Context, period time.Duration) (ExecutionMetrics, error) {
	end := time.Now()
	start := end.Add(-period)

	attempts, err := v.store.FindAttemptsStartedBetween(ctx, start, end)
	if err != nil {
		return ExecutionMetrics{}, err
	}

	metrics := ExecutionMetrics{
		PeriodHours: int(period.Hours()),
		PeriodStart: start,
		PeriodEnd:   end,
	}

	var totalDuration time.Duration
	var completed int64
	for _, a := range attempts {
		metrics.TotalExecutions++
		if a.CompletedAt == nil {
			metrics.CurrentlyRunning++
			continue
		}
		if a.Success != nil && *a.Success {
			metrics.SuccessfulExecutions++
		} else {
			metrics.FailedExecutions++
		}
		totalDuration += a.CompletedAt.Sub(a.StartedAt)
		completed++
	}

	if completed > 0 {
		rate := float64(metrics.SuccessfulExecutions) / float64(completed) * 100.0
		metrics.SuccessRatePercent = math.Round(rate*100) / 100
	}
	if completed > 0 {
		metrics.AverageExecutionTimeMs = totalDuration.Milliseconds() / completed
	}

	stuck, err := v.store.FindStuckAttempts(ctx, v.stuckCutoff())
	if err != nil {
		return ExecutionMetrics{}, err
	}
	metrics.PotentiallyStuck = len(stuck)

	return metrics, nil
}

func (v *View) Uptime() time.Duration {
	return time.Since(v.startedAt)
}

// HealthStatus mirrors the original's degradation rule: pending work with
// no active worker, or more than 10 potentially-stuck executions, is
// DEGRADED rather than DOWN - the store itself is still reachable.
func (v *View) Health(ctx context.Context) (HealthStatus, error) {
	counts, err := v.TaskCounts(ctx)
	if err != nil {
		return HealthDown, err
	}
	activeWorkers, err := v.ActiveWorkerCount(ctx)
	if err != nil {
		return HealthDown, err
	}
	stuck, err := v.store.FindStuckAttempts(ctx, v.stuckCutoff())
	if err != nil {
		return HealthDown, err
	}

	if counts.Pending > 0 && activeWorkers == 0 {
		return HealthDegraded, nil
	}
	if len(stuck) > 10 {
		return HealthDegraded, nil
	}
	return HealthUp, nil
}

// Consistency checking (RUNNING tasks whose worker has no heartbeat row) lives on
// Recovery, not here - IsConsistent backs /health/consistency and this view
// stays a pure read model over counts and metrics.
