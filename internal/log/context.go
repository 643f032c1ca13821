package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type loggerKey struct{}

// FromContext returns the logger stored by IntoContext, or one wrapping the
// slog default tagged component=unknown.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// IntoContext stores logger in ctx so FromContext finds it downstream.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// AccessLog writes the start and completion records of one API request.
type AccessLog struct {
	logger   *Logger
	clientIP string
}

func NewAccessLog(logger *Logger, clientIP string) AccessLog {
	return AccessLog{logger: logger, clientIP: clientIP}
}

// Started logs at debug; the completion record carries everything useful.
func (a AccessLog) Started(ctx context.Context, r *http.Request) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(a.clientIP)
	a.logger.DebugContext(ctx, "Request started", fields.ToSlice()...)
}

// Finished logs server errors at error, rejected credentials and throttling
// at warn and everything else at info.
func (a AccessLog) Finished(ctx context.Context, r *http.Request, status int, elapsed time.Duration) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(status, elapsed.Milliseconds(), status < 400).
		WithClientIP(a.clientIP)
	a.logger.Log(ctx, level, "Request completed", fields.ToSlice()...)
}
