// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
	"github.com/jeranaias/storyrun-tui/internal/ui/styles"
)

// Run starts the TUI on the alternate screen and blocks until the user quits.
// It returns the error of the save made on quit, if any.
func Run(ctx context.Context, core Core, theme *styles.Theme) error {
	p := tea.NewProgram(New(ctx, core, theme), tea.WithAltScreen(), tea.WithContext(ctx))

	core.SetObserver(func(tr orchestrator.Transition) {
		p.Send(TransitionMsg(tr))
	})
	defer core.SetObserver(nil)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.quitErr
	}
	return nil
}
