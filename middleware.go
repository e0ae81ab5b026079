package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"receipt2ledger/pkg/logger"
)

// requestLogger tags each request with an id, puts a request-scoped logger
// into the request context and logs the outcome.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)
		l := log.With().Str("request_id", reqID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), l))

		c.Next()

		ev := l.Info()
		if c.Writer.Status() >= 500 {
			ev = l.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", c.ClientIP()).
			Msg("http request")
	}
}
