// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/storyrun-tui/internal/logging"
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
	"github.com/jeranaias/storyrun-tui/internal/session"
	"github.com/jeranaias/storyrun-tui/internal/ui/styles"
)

// Core is the story backend driven by the UI. *app.App implements it.
type Core interface {
	Continue(ctx context.Context, text string) (model.GenerationResult, error)
	Regenerate(ctx context.Context) (model.GenerationResult, error)
	Undo() bool
	Redo() bool
	Save() error
	Session() *session.Session
	Spec() model.ModelSpec
	SetObserver(orchestrator.Observer)
}

// Layout constants.
const (
	inputHeight   = 3
	minViewHeight = 3
	defaultWidth  = 80
	defaultHeight = 24
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the story view.
type Model struct {
	ctx    context.Context
	core   Core
	theme  *styles.Theme
	keys   KeyMap
	logger *slog.Logger

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	renderer *glamour.TermRenderer

	width  int
	height int

	// busy is true while a Continue or Regenerate call is in flight
	busy   bool
	cancel context.CancelFunc

	// state is the status bar label of the last transition
	state  string
	err    error
	notice string

	quitting bool
	quitErr  error
}

// New creates the story view for core. ctx bounds every generation call.
func New(ctx context.Context, core Core, theme *styles.Theme) Model {
	ta := textarea.New()
	ta.Placeholder = "What do you do? (enter on an empty story starts it)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.SetHeight(inputHeight)
	ta.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Line),
		spinner.WithStyle(theme.Spinner),
	)

	m := Model{
		ctx:      ctx,
		core:     core,
		theme:    theme,
		keys:     DefaultKeyMap(),
		logger:   logging.Component("ui"),
		viewport: viewport.New(defaultWidth, defaultHeight),
		input:    ta,
		spinner:  sp,
		help:     help.New(),
		state:    string(orchestrator.StateIdle),
	}
	m.resize(defaultWidth, defaultHeight)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TransitionMsg:
		// The done message sets the final state; only it knows about cancellation.
		if tr := orchestrator.Transition(msg); !tr.To.Terminal() {
			m.state = tr.String()
		}
		return m, nil

	case GenerationDoneMsg:
		return m.handleDone(msg)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Cancel):
		if m.busy && m.cancel != nil {
			m.cancel()
			m.notice = "cancelling..."
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// Input is disabled while a call is in flight.
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		text := m.input.Value()
		if text == "" && m.core.Session().Len() > 0 {
			return m, nil
		}
		m.input.Reset()
		return m.generate(func(ctx context.Context) (model.GenerationResult, error) {
			return m.core.Continue(ctx, text)
		})

	case key.Matches(msg, m.keys.Regenerate):
		return m.generate(m.core.Regenerate)

	case key.Matches(msg, m.keys.Undo):
		m.clearMessages()
		if !m.core.Undo() {
			m.notice = "nothing to undo"
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Redo):
		m.clearMessages()
		if !m.core.Redo() {
			m.notice = "nothing to redo"
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Save):
		m.clearMessages()
		if err := m.core.Save(); err != nil {
			m.err = err
		} else {
			m.notice = "saved"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// quit cancels any in-flight call, saves the story and exits.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.quitting = true
	if err := m.core.Save(); err != nil {
		m.logger.Error("save on quit failed", "error", err)
		m.quitErr = err
	}
	return m, tea.Quit
}

func (m *Model) clearMessages() {
	m.err = nil
	m.notice = ""
}

// =============================================================================
// GENERATION
// =============================================================================

// generate runs call in a tea.Cmd with a cancelable context.
func (m Model) generate(call func(context.Context) (model.GenerationResult, error)) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.busy = true
	m.clearMessages()
	m.state = orchestrator.Transition{To: orchestrator.StateBuildingPrompt}.String()
	m.input.Blur()

	run := func() tea.Msg {
		defer cancel()
		res, err := call(ctx)
		return GenerationDoneMsg{Result: res, Err: err}
	}
	return m, tea.Batch(m.spinner.Tick, run)
}

func (m Model) handleDone(msg GenerationDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.cancel = nil
	m.input.Focus()
	m.clearMessages()

	switch {
	case msg.Err == nil:
		m.state = orchestrator.Transition{To: orchestrator.StateSuccess}.String()
		if msg.Result.FinishReason == model.FinishTruncated {
			m.notice = "reply cut at the output token limit"
		}
	case errors.Is(msg.Err, context.Canceled):
		m.state = "cancelled"
		m.notice = "generation cancelled"
	default:
		m.state = orchestrator.Transition{To: orchestrator.StateFailed}.String()
		m.err = msg.Err
		m.logger.Warn("generation failed", "error", msg.Err)
	}
	m.refresh()
	return m, textarea.Blink
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	m.width, m.height = width, height

	// title, notice line, input with border, status bar, help line
	reserved := 1 + 1 + (inputHeight + 2) + 1 + 1
	vh := height - reserved
	if vh < minViewHeight {
		vh = minViewHeight
	}
	m.viewport.Width = width
	m.viewport.Height = vh
	m.input.SetWidth(width - 2)
	m.help.Width = width

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", "error", err)
		r = nil
	}
	m.renderer = r
	m.refresh()
}

// refresh re-renders the transcript and scrolls to the newest turn.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
