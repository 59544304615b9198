package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobs/scheduler/internal/models"
)

func TestRecordAttemptStartAndFinish(t *testing.T) {
	s := NewForTesting(t)
	ctx := context.Background()
	now := time.Now()

	task, err := s.InsertTask(ctx, models.TaskTypeDummy, "", now, 3)
	require.NoError(t, err)

	attempt, err := s.RecordAttemptStart(ctx, task.ID, "worker-1")
	require.NoError(t, err)
	assert.NotEmpty(t, attempt.ID)
	assert.Nil(t, attempt.CompletedAt)
	assert.Nil(t, attempt.Success)

	output := "ok"
	require.NoError(t, s.RecordAttemptFinish(ctx, attempt.ID, true, &output, nil, models.JSONMap{"k": "v"}, now.Add(time.Second)))

	attempts, err := s.ListAttemptsForTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.NotNil(t, attempts[0].CompletedAt)
	require.NotNil(t, attempts[0].Success)
	assert.True(t, *attempts[0].Success)
	require.NotNil(t, attempts[0].Output)
	assert.Equal(t, "ok", *attempts[0].Output)
}

func TestFindStuckAttempts(t *testing.T) {
	s := NewForTesting(t)
	ctx := context.Background()
	now := time.Now()

	task, err := s.InsertTask(ctx, models.TaskTypeDummy, "", now, 3)
	require.NoError(t, err)

	stuck, err := s.RecordAttemptStart(ctx, task.ID, "w1")
	require.NoError(t, err)
	require.NoError(t, s.conn.WithContext(ctx).Model(&models.TaskAttempt{}).
		Where("id = ?", stuck.ID).Update("started_at", now.Add(-time.Hour)).Error)

	fresh, err := s.RecordAttemptStart(ctx, task.ID, "w1")
	require.NoError(t, err)
	_ = fresh

	found, err := s.FindStuckAttempts(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stuck.ID, found[0].ID)
}

func TestFindAttemptsStartedBetween(t *testing.T) {
	s := NewForTesting(t)
	ctx := context.Background()
	now := time.Now()

	task, err := s.InsertTask(ctx, models.TaskTypeDummy, "", now, 3)
	require.NoError(t, err)

	inWindow, err := s.RecordAttemptStart(ctx, task.ID, "w1")
	require.NoError(t, err)

	outOfWindow, err := s.RecordAttemptStart(ctx, task.ID, "w1")
	require.NoError(t, err)
	require.NoError(t, s.conn.WithContext(ctx).Model(&models.TaskAttempt{}).
		Where("id = ?", outOfWindow.ID).Update("started_at", now.Add(-48*time.Hour)).Error)

	found, err := s.FindAttemptsStartedBetween(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, inWindow.ID, found[0].ID)
}
