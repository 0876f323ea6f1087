// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package repl

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/storyrun-tui/internal/app"
	"github.com/jeranaias/storyrun-tui/internal/config"
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
	"github.com/jeranaias/storyrun-tui/internal/provider"
	"github.com/jeranaias/storyrun-tui/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// scriptedReader returns lines in order, then io.EOF.
type scriptedReader struct {
	lines   []string
	history []string
}

func (s *scriptedReader) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedReader) AppendHistory(item string) {
	s.history = append(s.history, item)
}

type harness struct {
	app    *app.App
	store  storage.Store
	repl   *REPL
	in     *scriptedReader
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(t *testing.T, lines ...string) *harness {
	t.Helper()
	cfg := config.Default()
	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	a := app.New(cfg, app.NewRegistry(cfg, config.NewSecrets(nil), nil), store, nil)
	require.NoError(t, a.Open("", "mock/mock"))

	h := &harness{
		app:    a,
		store:  store,
		in:     &scriptedReader{lines: lines},
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
	}
	h.repl = New(a, h.in, h.out, h.errOut, 60)
	return h
}

// =============================================================================
// LOOP
// =============================================================================

func TestLoop_ContinuesAndSavesOnEOF(t *testing.T) {
	h := newHarness(t, "I open the door.", "I step inside.")

	require.NoError(t, h.repl.Loop(context.Background()))

	assert.Equal(t, 4, h.app.Session().Len())
	assert.Equal(t, []string{"I open the door.", "I step inside."}, h.in.history)
	assert.Contains(t, h.out.String(), provider.DefaultMockReplies[0])

	list, err := h.store.List()
	require.NoError(t, err)
	require.Len(t, list, 1, "the story should be saved on exit")
	assert.Equal(t, 4, list[0].TurnCount)
}

func TestLoop_QuitStopsReading(t *testing.T) {
	h := newHarness(t, "/quit", "never read")

	require.NoError(t, h.repl.Loop(context.Background()))

	assert.Equal(t, []string{"never read"}, h.in.lines)
	assert.Equal(t, 0, h.app.Session().Len())
}

func TestLoop_BlankOnEmptyStoryStartsIt(t *testing.T) {
	h := newHarness(t, "", "")

	require.NoError(t, h.repl.Loop(context.Background()))

	turns := h.app.Session().Turns()
	require.Len(t, turns, 1, "only the first blank line should generate")
	assert.Equal(t, model.RoleAI, turns[0].Role)
	assert.Empty(t, h.in.history, "blank lines are not history")
}

func TestLoop_ErrorsDoNotStopTheLoop(t *testing.T) {
	h := newHarness(t, "/bogus", "Hello.")

	require.NoError(t, h.repl.Loop(context.Background()))

	assert.Contains(t, h.errOut.String(), "unknown command: /bogus")
	assert.Equal(t, 2, h.app.Session().Len())
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestHandle_Commands(t *testing.T) {
	tests := []struct {
		name      string
		setup     []string
		line      string
		wantQuit  bool
		wantErr   string
		wantOut   string
		wantTurns int
	}{
		{name: "undo", setup: []string{"Go north."}, line: "/undo", wantOut: "undone, 1 turns left", wantTurns: 1},
		{name: "undo empty", line: "/undo", wantOut: "nothing to undo"},
		{name: "redo empty", line: "/redo", wantOut: "nothing to redo"},
		{name: "retry", setup: []string{"Go north."}, line: "/retry", wantTurns: 2},
		{name: "save", line: "/save", wantOut: "saved "},
		{name: "title", line: "/title   the sunken keep  ", wantOut: "title: the sunken keep"},
		{name: "models", line: "/models", wantOut: "* mock/mock"},
		{name: "model show", line: "/model", wantOut: "model: mock/mock"},
		{name: "model unknown", line: "/model nowhere/none", wantErr: "unknown model"},
		{name: "help", line: "/help", wantOut: "/retry"},
		{name: "quit", line: "/q", wantQuit: true},
		{name: "case insensitive", line: "/QUIT", wantQuit: true},
		{name: "unknown", line: "/dance", wantErr: "unknown command: /dance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			for _, line := range tt.setup {
				_, err := h.repl.Handle(ctx, line)
				require.NoError(t, err)
			}
			h.out.Reset()

			quit, err := h.repl.Handle(ctx, tt.line)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantQuit, quit)
			if tt.wantOut != "" {
				assert.Contains(t, h.out.String(), tt.wantOut)
			}
			assert.Equal(t, tt.wantTurns, h.app.Session().Len())
		})
	}
}

func TestHandle_RedoRestoresTurn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.repl.Handle(ctx, "Knock twice.")
	require.NoError(t, err)
	last, _ := h.app.Session().Last()

	_, err = h.repl.Handle(ctx, "/undo")
	require.NoError(t, err)
	h.out.Reset()
	_, err = h.repl.Handle(ctx, "/redo")
	require.NoError(t, err)

	assert.Equal(t, 2, h.app.Session().Len())
	assert.Contains(t, h.out.String(), last.Text)
}

func TestHandle_SuggestedTitle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.repl.Handle(ctx, "A tale of two ravens.")
	require.NoError(t, err)

	_, err = h.repl.Handle(ctx, "/title")
	require.NoError(t, err)
	assert.NotEqual(t, "", h.app.Session().Title())
	assert.Contains(t, h.out.String(), "title: ")
}

func TestHandle_DetailsAndInstructions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.repl.Handle(ctx, "/details")
	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "adventurous journey")
	assert.NotContains(t, h.out.String(), "%", "comment lines are not shown")

	_, err = h.repl.Handle(ctx, "/details The keep sank in a single night.")
	require.NoError(t, err)
	assert.Equal(t, "The keep sank in a single night.", h.app.Session().Meta().Details)

	_, err = h.repl.Handle(ctx, "/instructions Write in the second person.")
	require.NoError(t, err)
	assert.Equal(t, "Write in the second person.", h.app.Session().Meta().Instructions)

	h.out.Reset()
	_, err = h.repl.Handle(ctx, "/instructions")
	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "second person")

	_, err = h.repl.Handle(ctx, "/instructions reset")
	require.NoError(t, err)
	assert.Empty(t, h.app.Session().Meta().Instructions, "reset falls back to the default instructions")
}

func TestHandle_Concept(t *testing.T) {
	h := newHarness(t)

	_, err := h.repl.Handle(context.Background(), "/concept")
	require.NoError(t, err)

	details := h.app.Session().Meta().Details
	assert.NotEmpty(t, details)
	assert.Contains(t, h.out.String(), "kept as the story details")
	assert.Equal(t, 0, h.app.Session().Len(), "a concept does not add turns")
}

func TestPrintTurn_InlineInstruction(t *testing.T) {
	h := newHarness(t)
	h.repl.printTurn(model.NewUserTurn("INSTRUCT: a storm arrives"))
	assert.Contains(t, h.out.String(), "I: a storm arrives")
	assert.NotContains(t, h.out.String(), "INSTRUCT")
}

func TestHandle_ModelSwitch(t *testing.T) {
	cfg := config.Default()
	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	a := app.New(cfg, app.NewRegistry(cfg, config.NewSecrets(nil), nil), store, nil)
	require.NoError(t, a.Open("", "mock/mock"))
	out := &bytes.Buffer{}
	r := New(a, &scriptedReader{}, out, io.Discard, 0)

	_, err = r.Handle(context.Background(), "/model ollama/llama3.2")
	require.NoError(t, err)
	assert.Equal(t, "ollama/llama3.2", a.Spec().ID())
	assert.Equal(t, "ollama/llama3.2", a.Session().Meta().Model)
}

// =============================================================================
// OUTPUT
// =============================================================================

func TestPrintError_NamesKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"provider", &provider.Error{Kind: provider.KindAuth, Provider: "openai", Message: "bad\nkey"}, "[auth] openai: bad key"},
		{"busy", orchestrator.ErrBusy, "[busy] a generation is already in progress"},
		{"other", io.ErrUnexpectedEOF, "[Error] unexpected EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.repl.printError(tt.err)
			got := strings.TrimSpace(h.errOut.String())
			if got != tt.want {
				t.Errorf("printError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObserve_PrintsRetries(t *testing.T) {
	h := newHarness(t)
	h.repl.observe(orchestrator.Transition{To: orchestrator.StateAwaitingProvider, Attempt: 1, MaxAttempts: 3})
	assert.Empty(t, h.errOut.String())

	h.repl.observe(orchestrator.Transition{To: orchestrator.StateRetrying, Attempt: 1, MaxAttempts: 3})
	assert.Contains(t, h.errOut.String(), "[retrying 2/3 in 0s]")
}

func TestPrintWelcome_ReplaysStory(t *testing.T) {
	h := newHarness(t)
	h.app.Session().Append(model.NewUserTurn("Wake up."))
	h.app.Session().Append(model.NewAITurn("The room is cold.", 4))

	h.repl.printWelcome()

	out := h.out.String()
	assert.Contains(t, out, "mock/mock, 2 turns")
	assert.Contains(t, out, "> Wake up.")
	assert.Contains(t, out, "The room is cold.")
}

func TestCancelInFlight(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.repl.cancelInFlight(), "nothing to cancel when idle")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.repl.cancel = cancel
	assert.True(t, h.repl.cancelInFlight())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
