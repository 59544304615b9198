package models

import (
	"database/sql/driver"
	"encoding/json"
)

// TaskType is the closed set of dispatchable task kinds. New types are
// added by registering a new executor.Capability, not by editing this set.
type TaskType string

const (
	TaskTypeHTTP  TaskType = "HTTP"
	TaskTypeShell TaskType = "SHELL"
	TaskTypeDummy TaskType = "DUMMY"
)

type TaskStatus string

const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusRunning TaskStatus = "RUNNING"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailed  TaskStatus = "FAILED"
)

// JSONMap is a free-form JSON object persisted as a single column.
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}
