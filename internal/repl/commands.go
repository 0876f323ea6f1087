// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package repl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
	"github.com/jeranaias/storyrun-tui/internal/prompt"
	"github.com/jeranaias/storyrun-tui/internal/provider"
	"github.com/jeranaias/storyrun-tui/internal/util"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand processes a slash command.
// It reports true when the REPL should exit.
func (r *REPL) handleCommand(ctx context.Context, line string) (bool, error) {
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case "/undo":
		if !r.core.Undo() {
			r.printInfo("nothing to undo")
			return false, nil
		}
		r.printOK(fmt.Sprintf("undone, %d turns left", r.core.Session().Len()))

	case "/redo":
		if !r.core.Redo() {
			r.printInfo("nothing to redo")
			return false, nil
		}
		if last, ok := r.core.Session().Last(); ok {
			r.printTurn(last)
		}

	case "/retry":
		return false, r.generate(ctx, r.core.Regenerate)

	case "/save":
		if err := r.core.Save(); err != nil {
			return false, err
		}
		r.printOK("saved " + r.core.Session().ID())

	case "/title":
		return false, r.handleTitle(ctx, arg)

	case "/details":
		if arg == "" {
			r.printDetails()
			return false, nil
		}
		if err := r.core.SetDetails(arg); err != nil {
			return false, err
		}
		r.printOK("details updated")

	case "/instructions":
		if arg == "" {
			fmt.Fprintln(r.out, prompt.Instructions(r.core.Session().Meta()))
			return false, nil
		}
		if strings.EqualFold(arg, "reset") {
			arg = ""
		}
		if err := r.core.SetInstructions(arg); err != nil {
			return false, err
		}
		r.printOK("instructions updated")

	case "/concept":
		var concept string
		err := r.generate(ctx, func(ctx context.Context) (model.GenerationResult, error) {
			var err error
			concept, err = r.core.SuggestConcept(ctx)
			return model.GenerationResult{Text: concept, FinishReason: model.FinishComplete}, err
		})
		if err != nil || concept == "" {
			return false, err
		}
		r.printOK("kept as the story details")

	case "/models":
		for _, spec := range r.core.Models(ctx) {
			marker := "  "
			if spec.ID() == r.core.Spec().ID() {
				marker = "* "
			}
			line := marker + spec.String()
			if label := spec.Label(); label != spec.ID() {
				line += "  " + infoStyle.Render(label)
			}
			fmt.Fprintln(r.out, line)
		}

	case "/model":
		if arg == "" {
			r.printInfo("model: " + r.core.Spec().ID())
			return false, nil
		}
		if err := r.core.SetModel(arg); err != nil {
			return false, err
		}
		r.printOK("switched to " + r.core.Spec().ID())

	case "/help", "/h", "/?", "/":
		r.printHelp()

	case "/quit", "/q", "/exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return false, nil
}

func (r *REPL) handleTitle(ctx context.Context, arg string) error {
	if arg != "" {
		if err := r.core.SetTitle(arg); err != nil {
			return err
		}
		r.printOK("title: " + r.core.Session().Title())
		return nil
	}

	var title string
	err := r.generate(ctx, func(ctx context.Context) (model.GenerationResult, error) {
		var err error
		title, err = r.core.SuggestTitle(ctx)
		return model.GenerationResult{}, err
	})
	if err != nil {
		return err
	}
	if title != "" {
		r.printOK("title: " + title)
	}
	return nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *REPL) printWelcome() {
	sess := r.core.Session()
	fmt.Fprintln(r.out, titleStyle.Render(sess.Meta().DisplayTitle()))
	fmt.Fprintln(r.out, infoStyle.Render(fmt.Sprintf("%s, %d turns. Type /help for commands.", r.core.Spec().ID(), sess.Len())))
	if sess.Len() == 0 {
		fmt.Fprintln(r.out, infoStyle.Render("Describe the opening scene, or press enter to let the narrator begin."))
	}
	for _, turn := range sess.Turns() {
		r.printTurn(turn)
	}
}

func (r *REPL) printTurn(turn model.Turn) {
	if turn.Role == model.RoleUser && prompt.IsInstruction(turn.Text) {
		fmt.Fprintln(r.out, infoStyle.Render("I: "+prompt.InstructionBody(turn.Text)))
		return
	}
	if turn.Role == model.RoleUser {
		fmt.Fprintln(r.out, promptStyle.Render("> ")+util.WrapWords(turn.Text, r.width))
		return
	}
	r.printStory(turn.Text)
}

func (r *REPL) printStory(text string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, util.WrapWords(strings.TrimSpace(text), r.width))
	fmt.Fprintln(r.out)
}

func (r *REPL) printDetails() {
	details := prompt.Details(r.core.Session().Meta())
	if details == "" {
		r.printInfo("no details; set them with /details <text> or /concept")
		return
	}
	fmt.Fprintln(r.out, util.WrapWords(details, r.width))
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, `Commands:
  /undo          remove the newest turn
  /redo          restore the most recently undone turn
  /retry         regenerate the newest AI turn
  /save          save the story
  /title [text]  set the title, or ask the model for one
  /details [t]   show or set the details sent with every prompt
  /instructions [t|reset]
                 show, set or reset the writing instructions
  /concept       ask the model for a story idea and keep it as details
  /models        list usable models
  /model <id>    switch to another provider/name model
  /quit          save and exit
Anything else continues the story. Lines starting with # are dropped;
a line starting with INSTRUCT: directs the narrator.`)
}

func (r *REPL) printOK(msg string) {
	fmt.Fprintln(r.out, okStyle.Render("[OK]")+" "+msg)
}

func (r *REPL) printInfo(msg string) {
	fmt.Fprintln(r.out, infoStyle.Render(msg))
}

// printError prints err on one line naming its failure kind.
func (r *REPL) printError(err error) {
	label := "Error"
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		label = "busy"
	case provider.KindOf(err) != provider.KindUnknown:
		label = provider.KindOf(err).String()
	}
	r.logger.Debug("command failed", "error", err)
	fmt.Fprintf(r.errOut, "%s %s\n", errorStyle.Render("["+label+"]"), util.SingleLine(err.Error()))
}
