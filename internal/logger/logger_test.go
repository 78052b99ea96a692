package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	log.Info("login", "user_id", 7, "password", "hunter2", "refreshToken", "abc.def.ghi")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(7), entry["user_id"])
	assert.Equal(t, redacted, entry["password"])
	assert.Equal(t, redacted, entry["refreshToken"])
}

func TestPrettyHandlerRedactsAndFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "pretty")

	log.Info("hidden")
	log.With("pepper", "p").Warn("visible", "password_hash", "$2a$")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.NotContains(t, out, "$2a$")
	assert.Contains(t, out, redacted)
}

func TestPrettyHandlerNilLevel(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestPrettyHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{ReplaceAttr: Redact}))

	log.With("component", "security").WithGroup("event").
		Info("security event", "type", "account.locked", slog.Group("req", "token", "abc", "path", "/api/auth/login"))

	out := buf.String()
	assert.Contains(t, out, "component"+reset+"=security")
	assert.Contains(t, out, "event.type"+reset+"=account.locked")
	assert.Contains(t, out, "event.req.path"+reset+"=/api/auth/login")
	assert.Contains(t, out, "event.req.token"+reset+"="+redacted)
	assert.NotContains(t, out, "abc")
	assert.NotContains(t, out, "event.component")
}

func TestPrettyHandlerQuotesStrings(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.Info("request", "user_agent", "curl/8.0 (linux)", "empty", "")

	out := buf.String()
	assert.Contains(t, out, `user_agent`+reset+`="curl/8.0 (linux)"`)
	assert.Contains(t, out, `empty`+reset+`=""`)
}
