package executor

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/jobs/scheduler/internal/models"
)

const defaultShellTimeout = 5 * time.Minute

// ShellExecutor runs a shell command described by the task payload:
// {"command", "workingDirectory"?, "environment"?}. Exit code 0 is
// success; any other exit code or a timeout is a recoverable failure.
type ShellExecutor struct {
	Timeout time.Duration
}

type shellPayload struct {
	Command          string            `json:"command"`
	WorkingDirectory string            `json:"workingDirectory"`
	Environment      map[string]string `json:"environment"`
}

func (e *ShellExecutor) Handles(taskType models.TaskType) bool {
	return taskType == models.TaskTypeShell
}

func (e *ShellExecutor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return defaultShellTimeout
}

func (e *ShellExecutor) Execute(ctx context.Context, task *models.Task) (*ExecutionResult, error) {
	var payload shellPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		return nil, Unrecoverable("shell task payload is not valid JSON: %v", err)
	}
	if strings.TrimSpace(payload.Command) == "" {
		return nil, Unrecoverable("shell task payload is missing \"command\"")
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", payload.Command)
	if payload.WorkingDirectory != "" {
		cmd.Dir = payload.WorkingDirectory
	}
	if len(payload.Environment) > 0 {
		env := cmd.Environ()
		for k, v := range payload.Environment {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	output, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(output))

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Failure("command timed out after "+e.timeout().String(), models.JSONMap{
			"timeout":        true,
			"timeoutSeconds": int(e.timeout().Seconds()),
		}), nil
	}

	metadata := models.JSONMap{"command": payload.Command}
	if payload.WorkingDirectory != "" {
		metadata["workingDirectory"] = payload.WorkingDirectory
	}

	var exitErr *exec.ExitError
	if err != nil {
		if errors.As(err, &exitErr) {
			metadata["exitCode"] = exitErr.ExitCode()
			return &ExecutionResult{Success: false, Output: &trimmed, Error: "command failed with exit code: " + exitErr.Error(), Metadata: metadata}, nil
		}
		return Failure("failed to start process: "+err.Error(), metadata), nil
	}

	metadata["exitCode"] = 0
	return Success(trimmed, metadata), nil
}
