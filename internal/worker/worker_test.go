package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/internal/notify"
	"github.com/jobs/scheduler/pkg/config"
)

type fakeWorkerStore struct {
	heartbeatTouched bool
	touchResult      bool
	upsertCalls      int
	tasks            []models.Task
}

func (f *fakeWorkerStore) UpsertHeartbeat(ctx context.Context, workerID string, now time.Time, metadata models.JSONMap) error {
	f.upsertCalls++
	return nil
}

func (f *fakeWorkerStore) TouchHeartbeat(ctx context.Context, workerID string, now time.Time) (bool, error) {
	f.heartbeatTouched = true
	return f.touchResult, nil
}

func (f *fakeWorkerStore) FindByWorkerAndStatus(ctx context.Context, workerID string, status models.TaskStatus) ([]models.Task, error) {
	return f.tasks, nil
}

func newTestWorker(store Store) *Worker {
	return &Worker{
		id:       "test-worker",
		cfg:      config.WorkerConfig{Enabled: true, HeartbeatIntervalMs: 30000, ProcessingIntervalMs: 1000},
		store:    store,
		coord:    nil,
		policy:   nil,
		notifier: notify.NewPublisher(nil, zap.NewNop()),
		logger:   zap.NewNop(),
		stopCh:   make(chan struct{}),
	}
}

func TestHeartbeatTick_SuccessfulTouchDoesNotReregister(t *testing.T) {
	store := &fakeWorkerStore{touchResult: true}
	w := newTestWorker(store)

	w.heartbeatTick()

	assert.True(t, store.heartbeatTouched)
	assert.Equal(t, 0, store.upsertCalls)
}

func TestHeartbeatTick_MissingRowReregisters(t *testing.T) {
	store := &fakeWorkerStore{touchResult: false}
	w := newTestWorker(store)

	w.heartbeatTick()

	assert.True(t, store.heartbeatTouched)
	assert.Equal(t, 1, store.upsertCalls)
}

func TestDeriveWorkerID_NonEmpty(t *testing.T) {
	id := deriveWorkerID()
	assert.NotEmpty(t, id)
}

func TestProcessingTick_EmptyQueueIsNoOp(t *testing.T) {
	store := &fakeWorkerStore{}
	w := newTestWorker(store)

	require.NotPanics(t, func() { w.processingTick() })
}
