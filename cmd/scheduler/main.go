package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	"github.com/jobs/scheduler/pkg/logger"
)

// main wires every component in the init order the engine requires:
// Store -> Recovery (must finish before anything else touches the tables)
// -> Executor Registry -> Retry Policy / Notifier / Coordinator ->
// Scheduler Loop / Worker Loop / Failure Detector -> HTTP API.
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := store.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer db.Close()

	rec := recovery.New(db, zapLogger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	_, err = rec.Run(startupCtx)
	cancelStartup()
	if err != nil {
		// A half-initialised scheduler is worse than none: the process
		// refuses to start rather than run loops against unreconciled state.
		zapLogger.Fatal("startup recovery failed", zap.Error(err))
	}

	registry := executor.NewRegistry(executor.NewBuiltinCapabilities())
	policy := retry.NewPolicy(db, cfg.Retry, zapLogger)
	coord := coordinator.NewCoordinator(db, registry, zapLogger)

	redisClient, err := notify.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("failed to create redis client", zap.Error(err))
	}
	notifier := notify.NewPublisher(redisClient, zapLogger)

	sched := scheduler.New(*cfg, db, notifier, zapLogger)
	w := worker.New(*cfg, db, coord, policy, notifier, zapLogger)
	detector := monitor.NewDetector(*cfg, db, policy, zapLogger)
	view := monitor.NewView(*cfg, db)

	taskHandlers := api.NewTaskHandlers(db, *cfg)
	healthHandlers := api.NewHealthHandlers(view, rec)
	server := api.NewServer(*cfg, taskHandlers, healthHandlers, zapLogger)

	sched.Start()
	if err := w.Start(context.Background()); err != nil {
		zapLogger.Fatal("failed to start worker", zap.Error(err))
	}
	detector.Start()
	serverErrCh := server.Start()

	zapLogger.Info("job scheduler started",
		zap.String("worker_id", w.ID()),
		zap.Int("server_port", cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zapLogger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			zapLogger.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop http server", zap.Error(err))
	}
	detector.Stop()
	w.Stop()
	sched.Stop()

	zapLogger.Info("shutdown complete")
}
