// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stories out in shareable formats.
//
// # Key Types
//
//   - Exporter: Converts a story snapshot to one format
//   - Options: Export configuration options
//
// # Supported Formats
//
//   - Markdown: YAML frontmatter, title heading and the story as prose
//   - Text: Plain prose with the player's turns quoted
//   - JSON: The full snapshot, re-loadable by storyrun
//   - YAML: The full snapshot for hand editing
//
// # Usage
//
// Write a story to stdout:
//
//	err := export.Story(snap, "markdown", os.Stdout)
//
// Write a story to a file:
//
//	exporter, _ := export.ForFormat("yaml", nil)
//	path, err := export.ToFile(snap, exporter, nil)
package export
