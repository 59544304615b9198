package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/jobs/scheduler/internal/api/middleware"
	"github.com/jobs/scheduler/pkg/config"
)

var Provider = wire.NewSet(
	NewTaskHandlers,
	NewHealthHandlers,
	NewServer,
)

// Server wraps the gin engine and the stdlib http.Server fronting it.
type Server struct {
	cfg    config.ServerConfig
	router *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

func NewServer(cfg config.Config, tasks *TaskHandlers, health *HealthHandlers, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.ErrorHandling(logger))
	router.Use(middleware.Correlation())
	router.Use(middleware.Cors())

	v1 := router.Group("/")
	{
		taskGroup := v1.Group("/tasks")
		taskGroup.POST("", tasks.Create)
		taskGroup.GET("", tasks.List)
		taskGroup.GET("/:id", tasks.Get)
		taskGroup.DELETE("/:id", tasks.Cancel)

		healthGroup := v1.Group("/health")
		healthGroup.GET("", health.Health)
		healthGroup.GET("/workers", health.Workers)
		healthGroup.GET("/metrics", health.Metrics)
		healthGroup.POST("/recovery", health.Recovery)
		healthGroup.GET("/consistency", health.Consistency)
		healthGroup.GET("/live", health.Live)
		healthGroup.GET("/ready", health.Ready)
	}

	return &Server{
		cfg:    cfg.Server,
		router: router,
		logger: logger,
		http: &http.Server{
			Addr:           fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port),
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
	}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start runs the HTTP server in the background. It returns immediately;
// listen errors other than a clean shutdown are sent on the returned
// channel.
func (s *Server) Start() <-chan error {
	s.http.Handler = s.router
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	return errCh
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
