package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobs/scheduler/internal/models"
)

func TestRegistry_DispatchFirstMatchWins(t *testing.T) {
	registry := NewRegistry(NewBuiltinCapabilities())

	assert.IsType(t, &DummyExecutor{}, registry.Dispatch(models.TaskTypeDummy))
	assert.IsType(t, &HTTPExecutor{}, registry.Dispatch(models.TaskTypeHTTP))
	assert.IsType(t, &ShellExecutor{}, registry.Dispatch(models.TaskTypeShell))
	assert.Nil(t, registry.Dispatch("UNKNOWN"))
}

func TestRegistry_ExecuteNoExecutorIsUnrecoverable(t *testing.T) {
	registry := NewRegistry(nil)

	_, err := registry.Execute(context.Background(), &models.Task{Type: "UNKNOWN"})
	require.Error(t, err)

	var unrecoverable *UnrecoverableError
	require.ErrorAs(t, err, &unrecoverable)
	assert.Contains(t, unrecoverable.Error(), "no executor for type UNKNOWN")
}

func TestExecutionResult_FailureRequiresMessage(t *testing.T) {
	assert.Panics(t, func() {
		Failure("", nil)
	})
}

func TestExecutionResult_SuccessAllowsEmptyOutput(t *testing.T) {
	result := Success("", nil)
	require.NotNil(t, result.Output)
	assert.Equal(t, "", *result.Output)
	assert.True(t, result.Success)
}
