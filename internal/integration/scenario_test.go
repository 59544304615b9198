// Package integration exercises the end-to-end lifecycle scenarios from
// the engine's concrete test scenarios - claim, coordinate, retry,
// abandonment, recovery - wiring the real Store, Coordinator and Retry
// Policy together rather than stubbing each in isolation.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/coordinator"
	"github.com/jobs/scheduler/internal/executor"
	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/internal/recovery"
	"github.com/jobs/scheduler/internal/retry"
	"github.com/jobs/scheduler/internal/store"
	"github.com/jobs/scheduler/pkg/config"
)

// flakyCapability fails the first N invocations, then succeeds.
type flakyCapability struct {
	taskType  models.TaskType
	failUntil int

	mu    sync.Mutex
	calls int
}

func (c *flakyCapability) Handles(taskType models.TaskType) bool { return taskType == c.taskType }

func (c *flakyCapability) Execute(ctx context.Context, task *models.Task) (*executor.ExecutionResult, error) {
	c.mu.Lock()
	c.calls++
	attempt := c.calls
	c.mu.Unlock()

	if attempt <= c.failUntil {
		return executor.Failure("transient failure", nil), nil
	}
	return executor.Success("succeeded", nil), nil
}

func newHarness(t *testing.T, capabilities []executor.Capability, retryCfg config.RetryConfig) (*store.Store, *coordinator.Coordinator, *retry.Policy) {
	s := store.NewForTesting(t)
	logger := zap.NewNop()
	registry := executor.NewRegistry(capabilities)
	coord := coordinator.NewCoordinator(s, registry, logger)
	policy := retry.NewPolicy(s, retryCfg, logger)
	return s, coord, policy
}

func TestScenario_HappyPathDummy(t *testing.T) {
	s, coord, _ := newHarness(t, executor.NewBuiltinCapabilities(), config.RetryConfig{DefaultMaxRetries: 3, BaseDelayMs: 10, MaxDelayMs: 100})
	ctx := context.Background()
	now := time.Now()

	task, err := s.InsertTask(ctx, models.TaskTypeDummy, `{"sleepDurationMs":5,"logMessage":"ok"}`, now, 3)
	require.NoError(t, err)

	ok, err := s.Claim(ctx, task.ID, models.TaskStatusPending, models.TaskStatusRunning, "w1", now)
	require.NoError(t, err)
	require.True(t, ok)

	claimed, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)

	outcome, err := coord.Run(ctx, claimed, "w1")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeSuccess, outcome)

	final, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSuccess, final.Status)
	require.NotNil(t, final.Output)
	assert.Contains(t, *final.Output, "ok")

	attempts, err := s.ListAttemptsForTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].Success)
	assert.True(t, *attempts[0].Success)
}

func TestScenario_RetryThenSucceed(t *testing.T) {
	flaky := &flakyCapability{taskType: models.TaskTypeDummy, failUntil: 2}
	retryCfg := config.RetryConfig{DefaultMaxRetries: 3, BaseDelayMs: 10, MaxDelayMs: 100}
	s, coord, policy := newHarness(t, []executor.Capability{flaky}, retryCfg)
	ctx := context.Background()
	t0 := time.Now()

	task, err := s.InsertTask(ctx, models.TaskTypeDummy, "", t0, 3)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := s.Claim(ctx, task.ID, models.TaskStatusPending, models.TaskStatusRunning, "w1", time.Now())
		require.NoError(t, err)
		require.True(t, ok, "iteration %d", i)

		current, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)

		outcome, err := coord.Run(ctx, current, "w1")
		require.NoError(t, err)
		require.Equal(t, coordinator.OutcomeNeedsRetryDecision, outcome)

		rescheduled, err := policy.HandleFailure(ctx, current)
		require.NoError(t, err)
		require.True(t, rescheduled)
	}

	final, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, final.Status)
	assert.Equal(t, 2, final.RetryCount)
	assert.True(t, final.ScheduleAt.After(t0))

	ok, err := s.Claim(ctx, task.ID, models.TaskStatusPending, models.TaskStatusRunning, "w1", time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	current, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)

	outcome, err := coord.Run(ctx, current, "w1")
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeSuccess, outcome)

	final, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSuccess, final.Status)

	attempts, err := s.ListAttemptsForTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
}

func TestScenario_RetryExhausted(t *testing.T) {
	alwaysFails := &flakyCapability{taskType: models.TaskTypeDummy, failUntil: 1000}
	retryCfg := config.RetryConfig{DefaultMaxRetries: 2, BaseDelayMs: 10, MaxDelayMs: 100}
	s, coord, policy := newHarness(t, []executor.Capability{alwaysFails}, retryCfg)
	ctx := context.Background()
	now := time.Now()

	task, err := s.InsertTask(ctx, models.TaskTypeDummy, "", now, 2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := s.Claim(ctx, task.ID, models.TaskStatusPending, models.TaskStatusRunning, "w1", time.Now())
		require.NoError(t, err)
		require.True(t, ok, "iteration %d", i)

		current, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)

		outcome, err := coord.Run(ctx, current, "w1")
		require.NoError(t, err)
		require.Equal(t, coordinator.OutcomeNeedsRetryDecision, outcome)

		_, err = policy.HandleFailure(ctx, current)
		require.NoError(t, err)
	}

	final, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, final.Status)
	assert.Equal(t, 2, final.RetryCount)

	attempts, err := s.ListAttemptsForTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
}

func TestScenario_WorkerDeathReassignment(t *testing.T) {
	s := store.NewForTesting(t)
	ctx := context.Background()
	now := time.Now()

	task, err := s.InsertTask(ctx, models.TaskTypeDummy, "", now, 3)
	require.NoError(t, err)
	ok, err := s.Claim(ctx, task.ID, models.TaskStatusPending, models.TaskStatusRunning, "dead-worker", now)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.UpsertHeartbeat(ctx, "dead-worker", now.Add(-120*time.Second), nil))

	// What the Failure Detector's tick does on each stale worker it finds.
	cutoff := time.Now().Add(-60 * time.Second)
	stale, err := s.FindStaleWorkers(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	affected, err := s.ResetAbandoned(ctx, stale[0].WorkerID, models.TaskStatusRunning, models.TaskStatusPending, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	reset, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, reset.Status)
	assert.Nil(t, reset.WorkerID)

	claimedAgain, err := s.Claim(ctx, task.ID, models.TaskStatusPending, models.TaskStatusRunning, "new-worker", time.Now())
	require.NoError(t, err)
	assert.True(t, claimedAgain)
}

func TestScenario_StartupRecovery(t *testing.T) {
	s := store.NewForTesting(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		task, err := s.InsertTask(ctx, models.TaskTypeDummy, "", now, 3)
		require.NoError(t, err)
		ok, err := s.Claim(ctx, task.ID, models.TaskStatusPending, models.TaskStatusRunning, "gone-worker", now)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, s.UpsertHeartbeat(ctx, "gone-worker-a", now, nil))
	require.NoError(t, s.UpsertHeartbeat(ctx, "gone-worker-b", now, nil))

	r := recovery.New(s, zap.NewNop())
	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.RecoveredTasks)
	assert.Equal(t, int64(2), result.CleanedWorkers)

	pending, err := s.FindByStatus(ctx, models.TaskStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
	for _, task := range pending {
		assert.Nil(t, task.WorkerID)
	}

	heartbeats, err := s.ListHeartbeats(ctx)
	require.NoError(t, err)
	assert.Empty(t, heartbeats)
}
