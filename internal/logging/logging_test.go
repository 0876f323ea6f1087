// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Init("warn", "json", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "attempt", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, float64(2), rec["attempt"])
}

func TestInit_RedactsSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init("debug", "text", &buf)

	Component("cloud").Debug("request",
		"api_key", "sk-live-123",
		"Authorization", "Bearer sk-live-123",
		"prompt", "Once upon a time",
		"status", 200)

	out := buf.String()
	assert.NotContains(t, out, "sk-live-123")
	assert.NotContains(t, out, "Once upon a time")
	assert.Contains(t, out, "component=cloud")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, Redacted)
}

func TestAttach(t *testing.T) {
	var buf bytes.Buffer
	logger := Init("info", "text", &buf)

	ctx := WithContext(context.Background(), StoryIDKey, "story-1")
	ctx = WithContext(ctx, ModelKey, "ollama/llama3.2")
	Attach(ctx, logger).Info("continued")

	out := buf.String()
	assert.Contains(t, out, "story_id=story-1")
	assert.Contains(t, out, "model=ollama/llama3.2")
}

func TestAttach_NilUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	Init("info", "text", &buf)

	Attach(context.Background(), nil).Info("plain")
	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), "story_id")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "storyrun.log")
	f, err := OpenFile(path)
	require.NoError(t, err)

	Init("info", "text", f).Info("hello")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestInit_NilWriterDiscards(t *testing.T) {
	logger := Init("debug", "text", nil)
	logger.Info("nowhere")
	assert.NotNil(t, Default())
}
