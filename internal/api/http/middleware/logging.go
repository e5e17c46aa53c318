package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/metrics"
)

// Logging logs every HTTP request and records request metrics.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// Handle logs method, route, status and duration for each request.
func (l *Logging) Handle(c *gin.Context) {
	start := time.Now()
	metrics.InFlight(1)
	defer metrics.InFlight(-1)

	c.Next()

	duration := time.Since(start)
	status := c.Writer.Status()

	// Unmatched routes are collapsed to keep metric cardinality bounded.
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), duration)

	args := []any{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	}
	if id, ok := IdentityFrom(c.Request.Context()); ok {
		args = append(args, "username", id.UserID)
	}

	switch {
	case status >= 500:
		l.logger.Error("HTTP request failed", append(args, "errors", c.Errors.String())...)
	default:
		l.logger.Info("HTTP request completed", args...)
	}
}
