package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-contacts-api/internal/model"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestLogging_RequestScopedLogger(t *testing.T) {
	buf := captureLogs(t)
	authMW := NewAuthMiddleware(stubResolver{accounts: map[string]model.Account{
		"good": {ID: "acc-1", Email: "ann@example.com"},
	}})

	handler := Logging(authMW.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LoggerFromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.Header.Set(requestIDHeader, "req-42")
	req.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := logLines(t, buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "inside handler", lines[0]["msg"])
	assert.Equal(t, "req-42", lines[0]["request_id"])

	assert.Equal(t, "request", lines[1]["msg"])
	assert.Equal(t, "req-42", lines[1]["request_id"])
	assert.Equal(t, "acc-1", lines[1]["account_id"])
	assert.Equal(t, float64(http.StatusNoContent), lines[1]["status"])
	assert.Equal(t, "INFO", lines[1]["level"])
}

func TestLogging_ErrorEnvelope(t *testing.T) {
	buf := captureLogs(t)
	authMW := NewAuthMiddleware(stubResolver{accounts: map[string]model.Account{}})

	handler := Logging(authMW.RequireAuth(okHandler()))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/contacts", nil))

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "UNAUTHORIZED", lines[0]["error_code"])
	assert.NotContains(t, lines[0], "account_id")
}

func TestLoggerFromContext_Default(t *testing.T) {
	assert.Same(t, slog.Default(), LoggerFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
