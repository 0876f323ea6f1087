// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/jeranaias/storyrun-tui/internal/session"
	"github.com/jeranaias/storyrun-tui/internal/util"
)

// =============================================================================
// JSON STORE
// =============================================================================

// JSONStore keeps each story in its own JSON file.
type JSONStore struct {
	// BaseDir holds one <id>.json file per story
	BaseDir string

	retryConfig retry.Config
}

// NewJSONStore creates a store rooted at dir, creating it if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, util.PrivateDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create story directory: %w", err)
	}
	return &JSONStore{
		BaseDir: dir,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
			IsRetryable:   isTransientRead,
		},
	}, nil
}

// Save implements Store.
func (s *JSONStore) Save(snap session.Snapshot) error {
	if err := validateID(snap.Meta.ID); err != nil {
		return err
	}
	if snap.Version == 0 {
		snap.Version = session.SnapshotVersion
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal story: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(s.filePath(snap.Meta.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

// Load implements Store. Transient read errors are retried.
func (s *JSONStore) Load(id string) (session.Snapshot, error) {
	if err := validateID(id); err != nil {
		return session.Snapshot{}, err
	}
	path := s.filePath(id)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return session.Snapshot{}, notFound(id)
	}

	retryer := retry.New[session.Snapshot](s.retryConfig)
	return retryer.Do(context.Background(), func(ctx context.Context) (session.Snapshot, error) {
		return readSnapshot(path)
	})
}

// isTransientRead reports whether a load failure came from the file system.
// A file that parses badly or fails validation will fail the same way again.
func isTransientRead(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) && !errors.Is(err, fs.ErrNotExist)
}

func readSnapshot(path string) (session.Snapshot, error) {
	// #nosec G304 -- path is built from a validated UUID
	data, err := os.ReadFile(path)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to read story file: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to unmarshal story: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return session.Snapshot{}, fmt.Errorf("invalid story file %s: %w", filepath.Base(path), err)
	}
	return snap, nil
}

// List implements Store. Unreadable files are skipped.
func (s *JSONStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, err
	}

	stories := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		snap, err := readSnapshot(filepath.Join(s.BaseDir, name))
		if err != nil {
			continue
		}
		stories = append(stories, summarize(snap))
	}

	sort.Slice(stories, func(i, j int) bool {
		return stories[i].UpdatedAt.After(stories[j].UpdatedAt)
	})
	return stories, nil
}

// Delete implements Store.
func (s *JSONStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return notFound(id)
		}
		return err
	}
	return nil
}

// Close implements Store.
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}
