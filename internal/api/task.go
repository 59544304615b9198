package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/mo"
	"github.com/spf13/cast"

	"github.com/jobs/scheduler/internal/api/middleware"
	"github.com/jobs/scheduler/internal/models"
	"github.com/jobs/scheduler/internal/store"
	"github.com/jobs/scheduler/pkg/config"
)

// TaskHandlers serves the /tasks HTTP surface from §6.
type TaskHandlers struct {
	store     *store.Store
	retryCfg  config.RetryConfig
}

func NewTaskHandlers(store *store.Store, cfg config.Config) *TaskHandlers {
	return &TaskHandlers{store: store, retryCfg: cfg.Retry}
}

func (h *TaskHandlers) Create(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, http.StatusBadRequest, middleware.CodeInvalidJSON, "malformed request body", err.Error())
		return
	}
	if req.Type != models.TaskTypeHTTP && req.Type != models.TaskTypeShell && req.Type != models.TaskTypeDummy {
		middleware.Fail(c, http.StatusBadRequest, middleware.CodeValidationError, "unknown task type")
		return
	}

	scheduleAt := time.Now()
	if req.ScheduleAt != nil {
		scheduleAt = *req.ScheduleAt
	}
	maxRetries := h.retryCfg.DefaultMaxRetries
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			middleware.Fail(c, http.StatusBadRequest, middleware.CodeIllegalArgument, "max_retries must be >= 0")
			return
		}
		maxRetries = *req.MaxRetries
	}

	task, err := h.store.InsertTask(c.Request.Context(), req.Type, req.Payload, scheduleAt, maxRetries)
	if err != nil {
		middleware.TranslateStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskView(*task))
}

func (h *TaskHandlers) Get(c *gin.Context) {
	id := c.Param("id")
	task, err := h.store.GetTask(c.Request.Context(), id)
	if err != nil {
		middleware.TranslateStoreError(c, err)
		return
	}
	attempts, err := h.store.ListAttemptsForTask(c.Request.Context(), id)
	if err != nil {
		middleware.TranslateStoreError(c, err)
		return
	}

	views := make([]AttemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, newAttemptView(a))
	}
	c.JSON(http.StatusOK, TaskDetailView{TaskView: newTaskView(*task), Attempts: views})
}

func (h *TaskHandlers) List(c *gin.Context) {
	page := cast.ToInt(c.DefaultQuery("page", "1"))
	size := cast.ToInt(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}

	filter := store.TaskFilter{Page: page, Size: size}
	if s := c.Query("status"); s != "" {
		filter.Status = mo.Some(models.TaskStatus(s))
	}
	if t := c.Query("type"); t != "" {
		filter.Type = mo.Some(models.TaskType(t))
	}

	tasks, total, err := h.store.ListTasks(c.Request.Context(), filter)
	if err != nil {
		middleware.TranslateStoreError(c, err)
		return
	}

	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t))
	}
	c.JSON(http.StatusOK, TaskListResponse{Data: views, Total: total, Page: page, Size: size})
}

func (h *TaskHandlers) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.CancelTask(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.Fail(c, http.StatusNotFound, middleware.CodeNotFound, "task not found")
			return
		}
		if errors.Is(err, store.ErrNotPending) {
			middleware.Fail(c, http.StatusConflict, middleware.CodeConflict, "task is not PENDING")
			return
		}
		middleware.TranslateStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "id": id})
}
