// ABOUTME: Tests for config path resolution and the root logger handlers
// ABOUTME: Color output is disabled so rendered lines can be compared as text

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriai/nutrition-gateway/internal/config"
)

func TestGetConfigPath(t *testing.T) {
	t.Run("env var wins", func(t *testing.T) {
		t.Setenv("NUTRITION_CONFIG", "/etc/nutrition/custom.toml")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, "/etc/nutrition/custom.toml", getConfigPath())
	})

	t.Run("xdg config home", func(t *testing.T) {
		t.Setenv("NUTRITION_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, filepath.Join("/xdg", "nutrition", "gateway.yaml"), getConfigPath())
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("NUTRITION_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/alice")
		assert.Equal(t, filepath.Join("/home/alice", ".config", "nutrition", "gateway.yaml"), getConfigPath())
	})
}

func TestGetDataPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "nutrition"), getDataPath())

	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/alice")
	assert.Equal(t, filepath.Join("/home/alice", ".local", "share", "nutrition"), getDataPath())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("login failed", "username", "alice")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "login failed", rec["msg"])
	assert.Equal(t, "alice", rec["username"])
}

func TestSetupLogger_Text(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)

	logger.Debug("loading principal", "username", "alice")
	logger.Error("store unavailable", "err", "closed")

	out := buf.String()
	assert.Contains(t, out, "DBG loading principal username=alice\n")
	assert.Contains(t, out, "ERR store unavailable err=closed\n")
}

func TestColorHandler_Levels(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.Debug("hidden")
	logger.Info("info line")
	logger.Warn("warn line")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF info line")
	assert.Contains(t, out, "WRN warn line")
}

func TestColorHandler_AttrsAndGroups(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.With("component", "auth").
		WithGroup("request").
		With("method", "GET").
		Info("denied", "path", "/api/admin/users", slog.Group("principal", "id", 7))

	line := buf.String()
	assert.Contains(t, line, "INF denied")
	assert.Contains(t, line, " component=auth")
	assert.Contains(t, line, " request.method=GET")
	assert.Contains(t, line, " request.path=/api/admin/users")
	assert.Contains(t, line, " request.principal.id=7")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestColorHandler_EmptyGroupIgnored(t *testing.T) {
	h := &colorHandler{}
	assert.Same(t, h, h.WithGroup(""))
}
