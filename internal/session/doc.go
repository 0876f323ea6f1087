// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the live story: its metadata, its transcript and the
// redo stack.
//
// # Key Types
//
//   - Session: The mutable story being written
//   - Snapshot: A serializable copy of a Session, used by storage and export
//
// # Usage
//
//	sess := session.New("openai/gpt-4o-mini")
//	sess.Append(model.NewUserTurn("You wake up in a lighthouse."))
//	turn, ok := sess.Undo()
//
// Nothing in this package writes to disk. Callers save a Snapshot explicitly.
package session
