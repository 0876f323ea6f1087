// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/storyrun-tui/internal/export"
	"github.com/jeranaias/storyrun-tui/internal/offline"
	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
	"github.com/jeranaias/storyrun-tui/internal/provider"
	"github.com/jeranaias/storyrun-tui/internal/util"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sess := m.core.Session()
	title := m.theme.Title.Render(util.TruncateWidth(sess.Meta().DisplayTitle(), m.width))

	input := m.theme.InputBorder
	if m.busy {
		input = m.theme.InputBorderDisabled
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.viewport.View(),
		m.messageLine(),
		input.Render(m.input.View()),
		m.statusBar(),
		m.help.View(m.helpKeys()),
	)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

var transcriptExporter = export.NewMarkdownExporter(&export.Options{})

// renderTranscript renders the story as Markdown through glamour.
func (m *Model) renderTranscript() string {
	sess := m.core.Session()
	if sess.Len() == 0 {
		return m.theme.Muted.Render("An empty story. Describe the opening scene, or press enter to let the narrator begin.")
	}

	doc, err := transcriptExporter.Export(sess.Snapshot())
	if err != nil {
		m.logger.Warn("transcript render failed", "error", err)
		return ""
	}
	if m.renderer == nil {
		return string(doc)
	}
	out, err := m.renderer.Render(string(doc))
	if err != nil {
		return string(doc)
	}
	return out
}

// =============================================================================
// STATUS LINES
// =============================================================================

// messageLine is the one-line error or notice above the input.
func (m Model) messageLine() string {
	switch {
	case m.err != nil:
		return m.theme.RenderError(util.TruncateWidth(errorLine(m.err), m.width-4))
	case m.busy:
		return m.spinner.View() + " " + m.theme.Notice.Render(m.state)
	case m.notice != "":
		return m.theme.Notice.Render(util.TruncateWidth(m.notice, m.width))
	}
	return ""
}

// statusBar shows the model, turn count and generation state.
func (m Model) statusBar() string {
	sess := m.core.Session()
	turns := fmt.Sprintf("%d turns", sess.Len())
	if sess.IsDirty() {
		turns += " *"
	}

	state := m.theme.StatusState
	if m.busy || m.err != nil {
		state = m.theme.StatusBusy
	}

	parts := []string{
		m.theme.StatusModel.Render(" " + m.core.Spec().ID() + " "),
		m.theme.StatusBar.Render(" " + turns + " "),
		state.Render(" " + m.state + " "),
	}
	if ind := offline.StatusIndicator(); ind != "" {
		parts = append(parts, m.theme.Notice.Render(" "+ind+" "))
	}
	bar := strings.Join(parts, m.theme.StatusBar.Render("|"))
	gap := m.width - lipgloss.Width(bar)
	if gap > 0 {
		bar += m.theme.StatusBar.Render(strings.Repeat(" ", gap))
	}
	return bar
}

// helpKeys hides undo and redo from the help line when they would do nothing.
func (m Model) helpKeys() KeyMap {
	k := m.keys
	sess := m.core.Session()
	k.Undo.SetEnabled(sess.CanUndo())
	k.Redo.SetEnabled(sess.CanRedo())
	return k
}

// errorLine renders err as one line naming its failure kind.
func errorLine(err error) string {
	msg := util.SingleLine(err.Error())
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		return "busy: " + msg
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout: " + msg
	}
	kind := provider.KindOf(err)
	if kind == provider.KindUnknown {
		return "error: " + msg
	}
	return kind.String() + ": " + msg
}
