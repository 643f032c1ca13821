package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerTagsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: slog.LevelDebug}).WithComponent(ComponentStorage)

	l.Info("opened", FieldCount, 3)
	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "count=3") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	l.Error("failed", NewFields().WithComponent(ComponentAMQP).WithError(errors.New("boom")).ToSlice()...)
	out = buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=amqp") {
		t.Fatalf("component should appear once, got: %s", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Fatalf("missing error field: %s", out)
	}
}

func TestContextCarriesLogger(t *testing.T) {
	logger := Nop().WithComponent(ComponentHTTP)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(IntoContext(r.Context(), logger))
	if FromContext(r.Context()) != logger {
		t.Fatal("logger not propagated through context")
	}

	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
}

func TestAccessLogLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=INFO"},
		{http.StatusUnauthorized, "level=WARN"},
		{http.StatusTooManyRequests, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		l := New(Config{Output: &buf, Level: slog.LevelDebug}).WithComponent(ComponentHTTP)
		r := httptest.NewRequest(http.MethodGet, "/api/expenses?month=2025-01", nil)
		a := NewAccessLog(l, "10.0.0.1")
		a.Started(context.Background(), r)
		a.Finished(context.Background(), r, tt.status, 15*time.Millisecond)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("status %d: got %d records", tt.status, len(lines))
		}
		done := lines[1]
		if !strings.Contains(done, tt.level) || !strings.Contains(done, "status_code="+strconv.Itoa(tt.status)) {
			t.Errorf("status %d: %s", tt.status, done)
		}
		if !strings.Contains(done, "component=http") || !strings.Contains(done, "client_ip=10.0.0.1") {
			t.Errorf("missing tags: %s", done)
		}
	}
}
