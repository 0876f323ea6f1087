// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging sets up structured logging for storyrun.
//
// The TUI owns the terminal, so logs normally go to a file. Loggers are
// tagged per component and can pick up story and model ids from a context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jeranaias/storyrun-tui/internal/util"
)

// ContextKey is the type of keys this package stores in a context.
type ContextKey string

// Context keys copied onto loggers by Attach.
const (
	StoryIDKey ContextKey = "story_id"
	ModelKey   ContextKey = "model"
)

var contextKeys = []ContextKey{StoryIDKey, ModelKey}

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// sensitiveKeys are attribute names whose values are never written.
var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"key":           true,
	"secret":        true,
	"authorization": true,
	"prompt":        true,
}

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// =============================================================================
// SETUP
// =============================================================================

// Init builds the process logger writing to w and installs it as the slog
// default. format is "text" or "json".
func Init(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	mu.Lock()
	defaultLogger = logger
	mu.Unlock()
	slog.SetDefault(logger)
	return logger
}

// OpenFile opens path for appending log lines.
// SECURITY: Log files are created 0600 inside a 0700 directory.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerm); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SECURITY: Secrets and story text never reach the log, whatever the caller passes.
func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// =============================================================================
// ACCESS
// =============================================================================

// Default returns the process logger. Before Init it discards everything.
func Default() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

// Component returns the default logger tagged with a component name.
func Component(name string) *slog.Logger {
	return Default().With("component", name)
}

// WithContext stores a logging value in ctx.
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// Attach returns logger with any story and model ids found in ctx.
func Attach(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = Default()
	}
	for _, k := range contextKeys {
		if v := ctx.Value(k); v != nil {
			logger = logger.With(string(k), v)
		}
	}
	return logger
}
