package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false).WithFields(map[string]any{"email": "a@b.co"})

	logger.Info("hello")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "a@b.co", entries[0]["email"])
	assert.Equal(t, "hello", entries[0]["msg"])
}

func TestLogger_LogError_Oops(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)

	err := oops.Code("AUTH_PERSISTENCE").
		With("operation", "update session").
		Errorf("connection refused")

	logger.LogError(context.Background(), "login failed", err)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.Equal(t, "AUTH_PERSISTENCE", entries[0]["code"])
	assert.Contains(t, entries[0]["context"], "operation")
}

func TestLogger_LogError_Plain(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)

	logger.LogError(context.Background(), "failed", errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0]["error"])
	assert.NotContains(t, entries[0], "code")
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		mw := RequestLogger(newLogger(&buf, false))

		var fromCtx *Logger
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromCtx = GetLoggerFromContext(r.Context())
			w.WriteHeader(tt.status)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/login", nil))

		require.NotNil(t, fromCtx)
		entries := decodeLines(t, &buf)
		require.NotEmpty(t, entries)
		last := entries[len(entries)-1]
		assert.Equal(t, tt.level, last["level"])
		assert.Equal(t, float64(tt.status), last["status"])
		assert.Equal(t, "/auth/login", last["path"])
	}
}

func TestGetLoggerFromContext_Fallback(t *testing.T) {
	assert.NotNil(t, GetLoggerFromContext(context.Background()))
}
