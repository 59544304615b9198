package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jobs/scheduler/internal/models"
)

// DummyExecutor sleeps for a configured duration and logs a message.
// Useful for testing and demonstration - it performs no side effects.
type DummyExecutor struct{}

type dummyPayload struct {
	SleepDurationMs int64  `json:"sleepDurationMs"`
	LogMessage      string `json:"logMessage"`
}

func (e *DummyExecutor) Handles(taskType models.TaskType) bool {
	return taskType == models.TaskTypeDummy
}

func (e *DummyExecutor) Execute(ctx context.Context, task *models.Task) (*ExecutionResult, error) {
	payload := dummyPayload{SleepDurationMs: 1000, LogMessage: "Dummy task executed"}
	if task.Payload != "" {
		if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
			return nil, Unrecoverable("dummy task payload is not valid JSON: %v", err)
		}
	}

	select {
	case <-time.After(time.Duration(payload.SleepDurationMs) * time.Millisecond):
	case <-ctx.Done():
		return Failure("dummy task was interrupted", nil), nil
	}

	output := fmt.Sprintf("Dummy task completed successfully. Slept for %d ms. Message: %s",
		payload.SleepDurationMs, payload.LogMessage)
	metadata := models.JSONMap{
		"sleepDurationMs": payload.SleepDurationMs,
		"logMessage":      payload.LogMessage,
	}
	return Success(output, metadata), nil
}
