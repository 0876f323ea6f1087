// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires configuration, the model registry, storage and the
// generation orchestrator into one object that both front ends drive.
//
// # Key Types
//
//   - App: The open story, its model and the services acting on it
//
// # Usage
//
//	reg := app.NewRegistry(cfg, secrets, logger)
//	a := app.New(cfg, reg, store, logger)
//	if err := a.Open(storyID, modelID); err != nil { ... }
//	_, err := a.Continue(ctx, "I open the door.")
package app
