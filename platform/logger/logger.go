// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithWorkspace returns a logger scoped to a workspace.
func (l *Logger) WithWorkspace(workspaceID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("workspace_id", workspaceID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// SendAttempt logs an outbound channel send attempt.
func (l *Logger) SendAttempt(workspaceID, channel, provider, to string, success bool, errMsg string) {
	if success {
		l.Info("channel_send",
			slog.String("workspace_id", workspaceID),
			slog.String("channel", channel),
			slog.String("provider", provider),
			slog.String("to", to),
			slog.Bool("success", success),
		)
		return
	}
	l.Warn("channel_send",
		slog.String("workspace_id", workspaceID),
		slog.String("channel", channel),
		slog.String("provider", provider),
		slog.String("to", to),
		slog.Bool("success", success),
		slog.String("error", errMsg),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
