package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	correlationHeader = "X-Correlation-Id"
	correlationKey    = "correlation_id"
)

// Correlation assigns every inbound request a correlation id - the
// caller's own if it sent one, otherwise a fresh one - and echoes it on
// the response so a caller can always tie a request to its logs.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationKey, id)
		c.Header(correlationHeader, id)
		c.Next()
	}
}

// CorrelationID reads the id Correlation stashed on the context, for
// handlers that want to thread it into logs.
func CorrelationID(c *gin.Context) string {
	if v, ok := c.Get(correlationKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
