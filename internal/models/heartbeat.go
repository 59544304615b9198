package models

import "time"

// WorkerHeartbeat is the liveness row a Worker Loop upserts on start and
// touches on every heartbeat tick. The Failure Detector reads this table
// to find workers that have gone stale.
type WorkerHeartbeat struct {
	WorkerID      string    `gorm:"primaryKey;size:128" json:"worker_id"`
	LastHeartbeat time.Time `gorm:"index" json:"last_heartbeat"`
	Metadata      JSONMap   `gorm:"type:json" json:"metadata"`
	RegisteredAt  time.Time `json:"registered_at"`
	Version       uint64    `gorm:"default:0" json:"version"`
}

func (WorkerHeartbeat) TableName() string {
	return "worker_heartbeats"
}
