package models

import "time"

// TaskAttempt is one executor invocation for a task. It is a one-way
// reference to Task by id - Task never back-references its attempts - per
// the cyclic-reference design note.
type TaskAttempt struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	TaskID      string     `gorm:"size:64;not null;index" json:"task_id"`
	WorkerID    string     `gorm:"size:128;not null;index" json:"worker_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	// Success is tri-state: nil while the attempt is in flight.
	Success      *bool   `json:"success"`
	Output       *string `gorm:"type:text" json:"output"`
	ErrorMessage *string `gorm:"type:text" json:"error_message"`
	Metadata     JSONMap `gorm:"type:json" json:"metadata"`
}

func (TaskAttempt) TableName() string {
	return "task_attempts"
}
