// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/storyrun-tui/internal/config"
	"github.com/jeranaias/storyrun-tui/internal/logging"
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
	"github.com/jeranaias/storyrun-tui/internal/session"
	"github.com/jeranaias/storyrun-tui/internal/ui/styles"
)

// historyFileName is the liner history file in the config directory.
const historyFileName = "repl_history"

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle  = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(styles.TextSecondary)
	okStyle      = lipgloss.NewStyle().Foreground(styles.Emerald)
	warningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	errorStyle   = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
)

// =============================================================================
// INTERFACES
// =============================================================================

// Core is the story backend driven by the REPL. *app.App implements it.
type Core interface {
	Continue(ctx context.Context, text string) (model.GenerationResult, error)
	Regenerate(ctx context.Context) (model.GenerationResult, error)
	SuggestTitle(ctx context.Context) (string, error)
	SuggestConcept(ctx context.Context) (string, error)
	Undo() bool
	Redo() bool
	Save() error
	SetTitle(title string) error
	SetDetails(text string) error
	SetInstructions(text string) error
	SetModel(id string) error
	Models(ctx context.Context) []model.ModelSpec
	Session() *session.Session
	Spec() model.ModelSpec
	SetObserver(orchestrator.Observer)
}

// LineReader reads one line of input. *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// =============================================================================
// REPL
// =============================================================================

// REPL reads turns and commands line by line.
type REPL struct {
	core   Core
	in     LineReader
	out    io.Writer
	errOut io.Writer
	width  int
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a REPL reading from in. Output is wrapped to width cells;
// zero disables wrapping.
func New(core Core, in LineReader, out, errOut io.Writer, width int) *REPL {
	return &REPL{
		core:   core,
		in:     in,
		out:    out,
		errOut: errOut,
		width:  width,
		logger: logging.Component("repl"),
	}
}

// Run starts a REPL on the terminal with liner line editing and history.
func Run(ctx context.Context, core Core, width int) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := loadHistory(line)
	defer func() {
		saveHistory(line, historyFile)
		line.Close()
	}()

	return New(core, line, os.Stdout, os.Stderr, width).Loop(ctx)
}

// Loop reads lines until /quit, EOF or Ctrl+C at the prompt. The story is
// saved on the way out. SIGINT during generation cancels the call.
func (r *REPL) Loop(ctx context.Context) error {
	r.core.SetObserver(r.observe)
	defer r.core.SetObserver(nil)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if r.cancelInFlight() {
				fmt.Fprintln(r.errOut, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	r.printWelcome()
	for {
		input, err := r.in.Prompt(promptStyle.Render("> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or closed stdin
			fmt.Fprintln(r.out)
			return r.save()
		}
		if strings.TrimSpace(input) != "" {
			r.in.AppendHistory(input)
		}

		quit, err := r.Handle(ctx, input)
		if err != nil {
			r.printError(err)
		}
		if quit {
			return r.save()
		}
	}
}

// Handle runs one line of input. It reports true when the REPL should exit.
func (r *REPL) Handle(ctx context.Context, input string) (bool, error) {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "/") {
		return r.handleCommand(ctx, trimmed)
	}
	if trimmed == "" && r.core.Session().Len() > 0 {
		return false, nil
	}
	return false, r.generate(ctx, func(ctx context.Context) (model.GenerationResult, error) {
		return r.core.Continue(ctx, input)
	})
}

// =============================================================================
// GENERATION
// =============================================================================

func (r *REPL) generate(ctx context.Context, call func(context.Context) (model.GenerationResult, error)) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	res, err := call(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if strings.TrimSpace(res.Text) != "" {
		r.printStory(res.Text)
	}
	if res.FinishReason == model.FinishTruncated {
		fmt.Fprintln(r.errOut, infoStyle.Render("[reply cut at the output token limit]"))
	}
	return nil
}

func (r *REPL) cancelInFlight() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// observe reports retries, the only transitions worth a line in plain mode.
func (r *REPL) observe(tr orchestrator.Transition) {
	if tr.To == orchestrator.StateRetrying {
		fmt.Fprintln(r.errOut, warningStyle.Render("["+tr.String()+"]"))
	}
}

func (r *REPL) save() error {
	if err := r.core.Save(); err != nil {
		return fmt.Errorf("save on exit: %w", err)
	}
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, historyFileName)
}

func loadHistory(line *liner.State) string {
	path := historyPath()
	if f, err := os.Open(path); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return path
}

// saveHistory writes the history file.
// SECURITY: the history holds story text, so it is owner-only (0600).
func saveHistory(line *liner.State, path string) {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
