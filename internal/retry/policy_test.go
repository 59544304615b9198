package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/pkg/config"
)

func TestDelay_MonotoneAndCapped(t *testing.T) {
	// P5: delay(n) = min(base*2^n, max); non-decreasing in n, always <= max.
	base := time.Second
	max := 5 * time.Minute

	var prev time.Duration
	for n := 0; n < 20; n++ {
		d := Delay(n, base, max)
		assert.LessOrEqual(t, d, max)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}

	assert.Equal(t, time.Second, Delay(0, base, max))
	assert.Equal(t, 2*time.Second, Delay(1, base, max))
	assert.Equal(t, 4*time.Second, Delay(2, base, max))
	assert.Equal(t, max, Delay(10, base, max))
	assert.Equal(t, max, Delay(100, base, max))
}

func TestDelay_NegativeTreatedAsZero(t *testing.T) {
	base := time.Second
	max := 5 * time.Minute
	assert.Equal(t, Delay(0, base, max), Delay(-5, base, max))
}

// fakeStore is an in-memory double for the Retry Policy's Store
// dependency, sufficient for exercising the decision branches without a
// real database.
type fakeStore struct {
	tasks map[string]*models.Task

	incrementCalls int
	updateCalls    int
}

func newFakeStore(tasks ...*models.Task) *fakeStore {
	m := make(map[string]*models.Task, len(tasks))
	for _, task := range tasks {
		m[task.ID] = task
	}
	return &fakeStore{tasks: m}
}

func (f *fakeStore) IncrementRetryAndReschedule(ctx context.Context, taskID string, toStatus models.TaskStatus, newScheduleAt time.Time, now time.Time) (bool, error) {
	f.incrementCalls++
	task, ok := f.tasks[taskID]
	if !ok || task.Status != models.TaskStatusRunning {
		return false, nil
	}
	task.Status = toStatus
	task.ScheduleAt = newScheduleAt
	task.RetryCount++
	task.WorkerID = nil
	task.AssignedAt = nil
	return true, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, taskID string, fromStatus, toStatus models.TaskStatus, now time.Time) (bool, error) {
	f.updateCalls++
	task, ok := f.tasks[taskID]
	if !ok || task.Status != fromStatus {
		return false, nil
	}
	task.Status = toStatus
	return true, nil
}

func (f *fakeStore) FindTasksExceedingRetryLimit(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	var out []models.Task
	for _, task := range f.tasks {
		if task.Status == status && task.RetryCount >= task.MaxRetries {
			out = append(out, *task)
		}
	}
	return out, nil
}

func newTestPolicy(store Store) *Policy {
	return &Policy{
		store:  store,
		cfg:    config.RetryConfig{DefaultMaxRetries: 3, BaseDelayMs: 10, MaxDelayMs: 100},
		logger: zap.NewNop(),
	}
}

func TestHandleFailure_ReschedulesWithinBudget(t *testing.T) {
	task := &models.Task{ID: "t1", Status: models.TaskStatusRunning, RetryCount: 0, MaxRetries: 3}
	store := newFakeStore(task)
	policy := newTestPolicy(store)

	ok, err := policy.HandleFailure(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, 1, task.RetryCount)
	assert.Equal(t, 1, store.incrementCalls)
	assert.Equal(t, 0, store.updateCalls)
}

func TestHandleFailure_FinalisesAtRetryLimit(t *testing.T) {
	// P6: after at most max_retries failures, the task is FAILED.
	task := &models.Task{ID: "t1", Status: models.TaskStatusRunning, RetryCount: 3, MaxRetries: 3}
	store := newFakeStore(task)
	policy := newTestPolicy(store)

	ok, err := policy.HandleFailure(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Equal(t, 0, store.incrementCalls)
	assert.Equal(t, 1, store.updateCalls)
}

func TestHandleFailure_LosesRaceWhenAlreadyMoved(t *testing.T) {
	// P6, race branch: another actor already finalised the row (e.g. the
	// retry-limit sweep) before this caller's stale in-memory view acted
	// on it. The CAS reports false rather than double-finalising.
	stored := &models.Task{ID: "t1", Status: models.TaskStatusFailed, RetryCount: 3, MaxRetries: 3}
	store := newFakeStore(stored)
	policy := newTestPolicy(store)

	staleView := &models.Task{ID: "t1", Status: models.TaskStatusRunning, RetryCount: 3, MaxRetries: 3}
	ok, err := policy.HandleFailure(context.Background(), staleView)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.TaskStatusFailed, stored.Status)
}

func TestProcessTasksExceedingRetryLimit(t *testing.T) {
	exceeded := &models.Task{ID: "t1", Status: models.TaskStatusPending, RetryCount: 3, MaxRetries: 3}
	withinBudget := &models.Task{ID: "t2", Status: models.TaskStatusPending, RetryCount: 1, MaxRetries: 3}
	store := newFakeStore(exceeded, withinBudget)
	policy := newTestPolicy(store)

	failed, err := policy.ProcessTasksExceedingRetryLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, models.TaskStatusFailed, exceeded.Status)
	assert.Equal(t, models.TaskStatusPending, withinBudget.Status)
}
