// Package notify publishes best-effort task lifecycle events over Redis
// pub/sub. It never affects the outcome of a Store operation - a publish
// failure (or Redis being disabled entirely) is logged and swallowed.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/pkg/config"
)

var Provider = wire.NewSet(NewClient, NewPublisher)

const channel = "scheduler:task-events"

type EventType string

const (
	EventTaskClaimed   EventType = "task.claimed"
	EventTaskCompleted EventType = "task.completed"
)

type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id"`
	WorkerID  string    `json:"worker_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp int64     `json:"ts"`
}

// NewClient returns nil (rather than an error) when Redis is disabled in
// config - Publisher treats a nil client as "fall back to no-op".
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}

type Publisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPublisher(rdb *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{rdb: rdb, logger: logger}
}

func (p *Publisher) publish(ctx context.Context, ev Event) {
	if p.rdb == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("failed to marshal task event", zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish task event", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}

func (p *Publisher) TaskClaimed(ctx context.Context, taskID, workerID string) {
	p.publish(ctx, Event{Type: EventTaskClaimed, TaskID: taskID, WorkerID: workerID, Timestamp: time.Now().UnixMilli()})
}

func (p *Publisher) TaskCompleted(ctx context.Context, taskID, status string) {
	p.publish(ctx, Event{Type: EventTaskCompleted, TaskID: taskID, Status: status, Timestamp: time.Now().UnixMilli()})
}
