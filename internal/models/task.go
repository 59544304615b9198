package models

import (
	"time"
)

// Task is the durable unit of work. status, version and the
// worker_id/assigned_at pair are mutated only through the Store's atomic
// primitives (see internal/store) - never via a blind Save.
type Task struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	Type        TaskType   `gorm:"size:32;not null" json:"type"`
	Payload     string     `gorm:"type:text" json:"payload"`
	Status      TaskStatus `gorm:"size:16;not null;default:'PENDING';index:idx_schedule_status,priority:2;index:idx_worker_status,priority:2" json:"status"`
	ScheduleAt  time.Time  `gorm:"index:idx_schedule_status,priority:1" json:"schedule_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	RetryCount  int        `gorm:"default:0" json:"retry_count"`
	MaxRetries  int        `gorm:"default:3" json:"max_retries"`
	WorkerID    *string    `gorm:"size:128;index:idx_worker_status,priority:1" json:"worker_id"`
	AssignedAt  *time.Time `json:"assigned_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Output      *string    `gorm:"column:execution_output;type:text" json:"execution_output"`
	Metadata    JSONMap    `gorm:"column:execution_metadata;type:json" json:"execution_metadata"`
	Version     uint64     `gorm:"default:0" json:"version"`
}

func (Task) TableName() string {
	return "tasks"
}
