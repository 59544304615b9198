package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Cors allows any origin, a permissive development policy; a deployment
// that needs origin allow-listing overrides this at the gin.Engine level.
func Cors() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Correlation-Id"}
	cfg.ExposeHeaders = []string{"X-Correlation-Id"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}
