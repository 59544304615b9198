package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jobs/scheduler/internal/store"
)

// Error codes in the taxonomy the HTTP boundary exposes - the core never
// sees these, only the handlers that translate its errors at this layer.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeInvalidJSON         = "INVALID_JSON"
	CodeTypeMismatch        = "TYPE_MISMATCH"
	CodeIllegalArgument     = "ILLEGAL_ARGUMENT"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeInternalError       = "INTERNAL_ERROR"
)

// ErrorEnvelope is the uniform JSON error body every handler failure
// produces.
type ErrorEnvelope struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Details   []string  `json:"details,omitempty"`
}

// Fail writes the envelope. It does not add to c.Errors, so
// ErrorHandling's error log does not see failures reported this way.
func Fail(c *gin.Context, status int, code, message string, details ...string) {
	c.JSON(status, ErrorEnvelope{
		Error:     code,
		Message:   message,
		Status:    status,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
		Details:   details,
	})
}

// TranslateStoreError maps the small set of sentinel errors the store
// surfaces to the HTTP taxonomy; anything else is INTERNAL_ERROR.
func TranslateStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		Fail(c, http.StatusNotFound, CodeNotFound, "resource not found")
	case errors.Is(err, store.ErrNotPending):
		Fail(c, http.StatusConflict, CodeConflict, "task is not cancellable in its current state")
	case errors.Is(err, gorm.ErrRecordNotFound):
		Fail(c, http.StatusNotFound, CodeNotFound, "resource not found")
	default:
		Fail(c, http.StatusInternalServerError, CodeInternalError, "an internal error occurred")
	}
}

// ErrorHandling recovers panics into the uniform envelope instead of
// letting gin's default recovery close the connection bare.
func ErrorHandling(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method))
				Fail(c, http.StatusInternalServerError, CodeInternalError, "an internal error occurred")
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			logger.Error("request error",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method))
		}
	}
}
