// Package middleware holds the gin middleware of the read API.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
)

const (
	HeaderRequestID = "X-Request-ID"
	requestIDKey    = "request_id"
)

// LoggingConfig controls RequestLogging.
type LoggingConfig struct {
	// SkipPaths are not logged, e.g. probes and the metrics endpoint.
	SkipPaths []string
	// SlowThreshold upgrades successful requests to Warn; zero disables it.
	SlowThreshold time.Duration
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// HTTPMetrics receives one observation per request.
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, statusCode int, d time.Duration)
}

// RequestID keeps an incoming X-Request-ID or mints one, and echoes it on
// the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogging logs one line per request at a level chosen by status and
// latency, and feeds metrics when m is non-nil. Metrics are labelled with the
// route template so path parameters do not explode cardinality.
func RequestLogging(logger logging.Logger, m HTTPMetrics, cfg LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if m != nil {
			m.RecordHTTPRequest(c.Request.Method, route, status, elapsed)
		}
		if skip[c.Request.URL.Path] {
			return
		}

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Duration("latency", elapsed),
			logging.Int("bytes", c.Writer.Size()),
			logging.String("client_ip", c.ClientIP()),
			logging.String("request_id", GetRequestID(c)),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, logging.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("request failed", fields...)
		case status >= 400:
			logger.Warn("request rejected", fields...)
		case cfg.SlowThreshold > 0 && elapsed >= cfg.SlowThreshold:
			logger.Warn("slow request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 with the standard error envelope.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.Error("panic recovered",
			logging.Any("panic", rec),
			logging.String("path", c.Request.URL.Path),
			logging.String("request_id", GetRequestID(c)),
		)
		c.AbortWithStatusJSON(500, gin.H{"error": gin.H{"code": "COMMON_001", "message": "internal server error"}})
	})
}
