// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across storyrun.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, StringWidth, PadRight: Terminal cell aware layout
//   - SingleLine: Flatten text for list previews
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	// Truncate a story title for a status bar
//	display := util.TruncateWidth(title, 30)
//
//	// Write a story file atomically
//	err := util.AtomicWriteFile(path, data, 0600)
package util
