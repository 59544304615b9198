// Package executor dispatches a claimed task to the capability that can
// run its type.
package executor

import (
	"context"
	"fmt"

	"github.com/jobs/scheduler/internal/models"
)

// ExecutionResult is what a Capability returns for one invocation. Success
// with a nil output is allowed; a failure result without an error message
// is not - Failure panics if msg is empty, since that shape can't be
// produced through this constructor path.
type ExecutionResult struct {
	Success  bool
	Output   *string
	Error    string
	Metadata models.JSONMap
}

func Success(output string, metadata models.JSONMap) *ExecutionResult {
	return &ExecutionResult{Success: true, Output: &output, Metadata: metadata}
}

func Failure(msg string, metadata models.JSONMap) *ExecutionResult {
	if msg == "" {
		panic("executor: failure result requires a non-empty message")
	}
	return &ExecutionResult{Success: false, Error: msg, Metadata: metadata}
}

// UnrecoverableError signals that the executor itself rejected the task -
// malformed payload, unsupported shape - and that retrying is pointless.
// The coordinator finalises the task as FAILED directly, without
// consulting the Retry Policy.
type UnrecoverableError struct {
	Message string
}

func (e *UnrecoverableError) Error() string {
	return e.Message
}

func Unrecoverable(format string, args ...any) error {
	return &UnrecoverableError{Message: fmt.Sprintf(format, args...)}
}

// Capability is one pluggable executor body. A new task type is added by
// registering a new Capability - the core never enumerates types itself.
type Capability interface {
	Handles(taskType models.TaskType) bool
	Execute(ctx context.Context, task *models.Task) (*ExecutionResult, error)
}
