package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"github.com/jobs/scheduler/internal/api/middleware"
	"github.com/jobs/scheduler/internal/monitor"
	"github.com/jobs/scheduler/internal/recovery"
)

// HealthHandlers serves the /health HTTP surface from §6.
type HealthHandlers struct {
	view     *monitor.View
	recovery *recovery.Recovery
}

func NewHealthHandlers(view *monitor.View, recovery *recovery.Recovery) *HealthHandlers {
	return &HealthHandlers{view: view, recovery: recovery}
}

type healthResponse struct {
	Status     monitor.HealthStatus   `json:"status"`
	UptimeSecs int64                  `json:"uptime_seconds"`
	Counts     monitor.TaskCounts     `json:"counts"`
	Metrics    monitor.ExecutionMetrics `json:"metrics_1h"`
}

func (h *HealthHandlers) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status, err := h.view.Health(ctx)
	if err != nil {
		middleware.Fail(c, http.StatusInternalServerError, middleware.CodeInternalError, "unable to compute health")
		return
	}
	counts, err := h.view.TaskCounts(ctx)
	if err != nil {
		middleware.Fail(c, http.StatusInternalServerError, middleware.CodeInternalError, "unable to read task counts")
		return
	}
	metrics, err := h.view.ExecutionMetrics(ctx, time.Hour)
	if err != nil {
		middleware.Fail(c, http.StatusInternalServerError, middleware.CodeInternalError, "unable to read execution metrics")
		return
	}

	httpStatus := http.StatusOK
	if status == monitor.HealthDown {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, healthResponse{
		Status:     status,
		UptimeSecs: int64(h.view.Uptime().Seconds()),
		Counts:     counts,
		Metrics:    metrics,
	})
}

func (h *HealthHandlers) Workers(c *gin.Context) {
	statuses, err := h.view.WorkerStatuses(c.Request.Context())
	if err != nil {
		middleware.Fail(c, http.StatusInternalServerError, middleware.CodeInternalError, "unable to read worker statuses")
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": statuses})
}

func (h *HealthHandlers) Metrics(c *gin.Context) {
	hours := cast.ToInt(c.DefaultQuery("hours", "1"))
	if hours < 1 || hours > 168 {
		middleware.Fail(c, http.StatusBadRequest, middleware.CodeIllegalArgument, "hours must be between 1 and 168")
		return
	}

	metrics, err := h.view.ExecutionMetrics(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		middleware.Fail(c, http.StatusInternalServerError, middleware.CodeInternalError, "unable to read execution metrics")
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *HealthHandlers) Recovery(c *gin.Context) {
	result, err := h.recovery.PerformManualRecovery(c.Request.Context())
	if err != nil {
		middleware.Fail(c, http.StatusInternalServerError, middleware.CodeInternalError, "recovery failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HealthHandlers) Consistency(c *gin.Context) {
	consistent, orphaned, err := h.recovery.IsConsistent(c.Request.Context())
	if err != nil {
		middleware.Fail(c, http.StatusInternalServerError, middleware.CodeInternalError, "unable to check consistency")
		return
	}
	c.JSON(http.StatusOK, gin.H{"consistent": consistent, "orphaned_task_ids": orphaned})
}

func (h *HealthHandlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (h *HealthHandlers) Ready(c *gin.Context) {
	status, err := h.view.Health(c.Request.Context())
	if err != nil || status == monitor.HealthDown {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
