//go:build wireinject
// +build wireinject

package main

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/api"
	"github.com/jobs/scheduler/internal/coordinator"
	"github.com/jobs/scheduler/internal/executor"
	"github.com/jobs/scheduler/internal/monitor"
	"github.com/jobs/scheduler/internal/notify"
	"github.com/jobs/scheduler/internal/recovery"
	"github.com/jobs/scheduler/internal/retry"
	"github.com/jobs/scheduler/internal/scheduler"
	"github.com/jobs/scheduler/internal/store"
	"github.com/jobs/scheduler/internal/worker"
	"github.com/jobs/scheduler/pkg/config"
)

// App aggregates every long-lived component main.go starts and stops.
// Only built by `go generate` against the wireinject tag - main.go wires
// these by hand, the same wire.go/main.go split used throughout this repo.
type App struct {
	Store    *store.Store
	Recovery *recovery.Recovery
	Registry *executor.Registry
	Policy   *retry.Policy
	Coord    *coordinator.Coordinator
	Notifier *notify.Publisher
	Sched    *scheduler.Scheduler
	Worker   *worker.Worker
	Detector *monitor.Detector
	View     *monitor.View
	Server   *api.Server
}

func NewApp(
	store *store.Store,
	rec *recovery.Recovery,
	registry *executor.Registry,
	policy *retry.Policy,
	coord *coordinator.Coordinator,
	notifier *notify.Publisher,
	sched *scheduler.Scheduler,
	w *worker.Worker,
	detector *monitor.Detector,
	view *monitor.View,
	server *api.Server,
) *App {
	return &App{
		Store:    store,
		Recovery: rec,
		Registry: registry,
		Policy:   policy,
		Coord:    coord,
		Notifier: notifier,
		Sched:    sched,
		Worker:   w,
		Detector: detector,
		View:     view,
		Server:   server,
	}
}

func provideDatabaseConfig(cfg config.Config) config.DatabaseConfig { return cfg.Database }
func provideRetryConfig(cfg config.Config) config.RetryConfig       { return cfg.Retry }
func provideRedisConfig(cfg config.Config) config.RedisConfig       { return cfg.Redis }

func InitializeApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	wire.Build(
		NewApp,

		provideDatabaseConfig,
		provideRetryConfig,
		provideRedisConfig,

		store.Provider,
		recovery.Provider,
		executor.Provider,
		retry.Provider,
		coordinator.Provider,
		notify.Provider,
		scheduler.Provider,
		worker.Provider,
		monitor.Provider,
		api.Provider,
	)
	return nil, nil
}
