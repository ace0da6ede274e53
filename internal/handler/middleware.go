// Package handler serves the local view API over gin: settings, generation,
// key verification and the saved-recipe collection.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dishcovery/dishcovery-client/internal/domain"
	"github.com/dishcovery/dishcovery-client/internal/recipes"
	"github.com/dishcovery/dishcovery-client/internal/ui"
)

// Identity headers set by the identity provider session in front of the API.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
)

// HTTPRecorder receives request metrics. *metrics.Collector implements it.
type HTTPRecorder interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// CORSMiddleware returns a middleware that enables permissive CORS for the
// local view layer.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Origin, Cache-Control, X-Requested-With, "+HeaderUserID+", "+HeaderUserEmail)
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// IdentityMiddleware carries the X-User-Id header into the request context
// so the recipe gateway can enforce ownership.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(HeaderUserID); id != "" {
			c.Request = c.Request.WithContext(recipes.ContextWithUser(c.Request.Context(), id))
		}
		c.Next()
	}
}

// LoggingMiddleware logs request details, and echoes them to console when set.
func LoggingMiddleware(logger *slog.Logger, console *ui.Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		code, _ := c.Get(errorCodeKey)
		errCode, _ := code.(string)

		logger.Info("request completed",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", latency),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user", recipes.UserFromContext(c.Request.Context())),
			slog.String("error_code", errCode),
		)
		if console != nil {
			console.PrintRequest(c.Request.Method, path, c.Writer.Status(), latency)
		}
	}
}

// MetricsMiddleware records every request under its route template.
func MetricsMiddleware(m HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// RecoveryMiddleware returns a middleware that recovers from panics.
// It logs the error and returns a 500 response in the API error shape.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					slog.Any("error", err),
					slog.String("path", c.Request.URL.Path),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
					Error: domain.NewAPIError("internal_error", "Internal server error", ""),
				})
			}
		}()

		c.Next()
	}
}
