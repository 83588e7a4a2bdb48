package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"academy-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	userIDHeader = "X-User-ID"
	userIDCtx    = "user_id"
)

// RequireUser reads the caller identity set by the upstream gateway.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing " + userIDHeader + " header"})
			return
		}
		c.Set(userIDCtx, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDCtx)
}

// LoggingMiddleware logs one line per request and every error attached to the context.
func LoggingMiddleware(log logger.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = fmt.Sprintf("%s?%s", path, raw)
		}
		status := c.Writer.Status()
		log.Info(fmt.Sprintf("%s %s", c.Request.Method, path),
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
		for _, ginErr := range c.Errors {
			log.ErrorErr("http request error", ginErr.Err,
				"status", status,
				"method", c.Request.Method,
				"path", path,
			)
		}
	}
}
