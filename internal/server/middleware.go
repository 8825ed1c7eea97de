package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LavishGent/imgedge/internal/metrics"
	"github.com/LavishGent/imgedge/internal/types"
)

func loggingMiddleware(logger *slog.Logger, publisher types.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", duration,
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.Last().Err)
		}
		logger.Log(c.Request.Context(), level, "http request", attrs...)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		publisher.Timing(metrics.HTTPRequest, duration, metrics.RouteTag(route), metrics.CodeTag(status))
	}
}

func recoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("panic serving request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
