// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the storyrun command line.
//
// Usage:
//
//	storyrun [--model provider/name] [--story id] [--config path] [--plain] [--debug]
//	storyrun --list-models
//	storyrun stories
//	storyrun export <id> [--format md|text|json|yaml] [--out-dir dir]
//	storyrun delete <id> [--yes]
//
// With no subcommand storyrun opens the TUI, or the line REPL when stdin or
// stdout is not a terminal or --plain is given.
package cli
