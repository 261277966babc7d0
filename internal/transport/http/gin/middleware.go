package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/obs"
)

// RequestIDMiddleware echoes the caller's X-Request-ID or assigns one.
// Oversized ids are replaced.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}

		c.Set("request_id", id)
		c.Header("X-Request-ID", id)

		c.Next()
	}
}

// TracingMiddleware continues the caller's trace and wraps the request in a
// server span named after the route.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, finish := obs.Start(ctx, c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		var err error
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			err = errors.New(http.StatusText(status))
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
		}
		finish(err)
	}
}

// CORS allows browser clients on any origin.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "Idempotency-Key", "If-None-Match", "traceparent"},
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Cache-Control", "Idempotency-Key", "Retry-After"},
		MaxAge:        12 * time.Hour,
	})
}

// LoggingMiddleware writes one record per request. Server errors log at
// error level with the handler errors attached, client errors at warn.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.String("path", c.Request.URL.RequestURI()),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString("request_id")),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", c.Writer.Size()),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
		}
		if user := principal(c).UserID; user != "" {
			attrs = append(attrs, slog.String("user", user))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("err", c.Errors.String()))
		}

		logger.LogAttrs(c.Request.Context(), level, "http", attrs...)
	}
}
