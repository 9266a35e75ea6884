package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Set(requestIDHeader, requestID)
		c.Next()
	}
}

// AccessLogMiddleware logs one line per request. Errors attached to the
// context by handlers are logged at error level alongside it.
func AccessLogMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		requestID, _ := c.Get(requestIDHeader)
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
			"client_ip", c.ClientIP(),
		}

		if len(c.Errors) > 0 {
			logger.Error("http request", append(attrs, "error", c.Errors.String())...)
			return
		}
		logger.Info("http request", attrs...)
	}
}
