package api

import (
	"time"

	"github.com/jobs/scheduler/internal/models"
)

// CreateTaskRequest is the POST /tasks body. Payload is the raw string an
// executor.Capability parses for itself - the core never looks inside it.
type CreateTaskRequest struct {
	Type       models.TaskType `json:"type" binding:"required"`
	Payload    string          `json:"payload"`
	ScheduleAt *time.Time      `json:"schedule_at"`
	MaxRetries *int            `json:"max_retries"`
}

// TaskView is the task representation returned by every task-reading
// endpoint.
type TaskView struct {
	ID          string          `json:"id"`
	Type        models.TaskType `json:"type"`
	Payload     string          `json:"payload"`
	Status      models.TaskStatus `json:"status"`
	ScheduleAt  time.Time       `json:"schedule_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	WorkerID    *string         `json:"worker_id"`
	AssignedAt  *time.Time      `json:"assigned_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Output      *string         `json:"execution_output"`
	Metadata    models.JSONMap  `json:"execution_metadata"`
	Version     uint64          `json:"version"`
}

func newTaskView(t models.Task) TaskView {
	return TaskView{
		ID:          t.ID,
		Type:        t.Type,
		Payload:     t.Payload,
		Status:      t.Status,
		ScheduleAt:  t.ScheduleAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		RetryCount:  t.RetryCount,
		MaxRetries:  t.MaxRetries,
		WorkerID:    t.WorkerID,
		AssignedAt:  t.AssignedAt,
		CompletedAt: t.CompletedAt,
		Output:      t.Output,
		Metadata:    t.Metadata,
		Version:     t.Version,
	}
}

// AttemptView mirrors a TaskAttempt row.
type AttemptView struct {
	ID           string         `json:"id"`
	WorkerID     string         `json:"worker_id"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at"`
	Success      *bool          `json:"success"`
	Output       *string        `json:"output"`
	ErrorMessage *string        `json:"error_message"`
	Metadata     models.JSONMap `json:"metadata"`
}

func newAttemptView(a models.TaskAttempt) AttemptView {
	return AttemptView{
		ID:           a.ID,
		WorkerID:     a.WorkerID,
		StartedAt:    a.StartedAt,
		CompletedAt:  a.CompletedAt,
		Success:      a.Success,
		Output:       a.Output,
		ErrorMessage: a.ErrorMessage,
		Metadata:     a.Metadata,
	}
}

// TaskDetailView is GET /tasks/{id}'s body: the task plus its attempt
// history.
type TaskDetailView struct {
	TaskView
	Attempts []AttemptView `json:"attempts"`
}

// TaskListResponse is GET /tasks's body.
type TaskListResponse struct {
	Data  []TaskView `json:"data"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
}
