// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
)

// TransitionMsg carries an orchestrator state change into the program.
type TransitionMsg orchestrator.Transition

// GenerationDoneMsg is sent when a Continue or Regenerate call returns.
type GenerationDoneMsg struct {
	Result model.GenerationResult
	Err    error
}
