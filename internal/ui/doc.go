// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui implements the Bubble Tea interface of storyrun.
//
// The model shows the story in a glamour-rendered viewport, takes the next
// turn in a textarea and reports the model, turn count and generation state
// in a status bar. Generation runs in a tea.Cmd with a cancelable context;
// orchestrator transitions reach the model as messages sent to the program.
package ui
