// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/storyrun-tui/internal/app"
	"github.com/jeranaias/storyrun-tui/internal/repl"
	"github.com/jeranaias/storyrun-tui/internal/ui"
	"github.com/jeranaias/storyrun-tui/internal/ui/styles"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// options holds the root flags.
type options struct {
	model      string
	story      string
	configPath string
	listModels bool
	plain      bool
	debug      bool
	offline    bool
}

// NewRootCmd builds the storyrun command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "storyrun",
		Short:         "Write interactive fiction with a language model",
		Long:          "storyrun continues a story turn by turn with a hosted or local language model.",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStory(cmd, o)
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default ~/.storyrun/config.toml)")
	flags.BoolVar(&o.debug, "debug", false, "log at debug level")
	flags.BoolVar(&o.offline, "offline", false, "use local models only (loopback Ollama and mock)")

	root.Flags().StringVarP(&o.model, "model", "m", "", "model as provider/name, e.g. ollama/llama3.2")
	root.Flags().StringVarP(&o.story, "story", "s", "", "open a saved story by id")
	root.Flags().BoolVar(&o.listModels, "list-models", false, "list usable models and exit")
	root.Flags().BoolVar(&o.plain, "plain", false, "use the line REPL instead of the TUI")

	root.AddCommand(newStoriesCmd(o), newExportCmd(o), newDeleteCmd(o))
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	configureColors()

	// SIGINT is left to the TUI and REPL, which cancel generation with it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// STORY COMMAND
// =============================================================================

func runStory(cmd *cobra.Command, o *options) error {
	ctx := cmd.Context()
	env, err := loadEnvironment(o)
	if err != nil {
		return err
	}
	defer env.Close()

	secrets, err := env.loadSecrets()
	if err != nil {
		return err
	}
	reg := app.NewRegistry(env.cfg, secrets, env.logger)

	if o.listModels {
		for _, spec := range reg.ListAvailable(ctx) {
			fmt.Fprintln(cmd.OutOrStdout(), spec.String())
		}
		return nil
	}

	modelID := o.model
	if modelID == "" && o.story == "" {
		modelID = env.cfg.General.DefaultModel
	}
	a := app.New(env.cfg, reg, env.store, env.logger)
	if err := a.Open(o.story, modelID); err != nil {
		return err
	}

	if o.plain || !IsTTY() || !IsStdoutTTY() {
		return repl.Run(ctx, a, wrapWidth(env.cfg.UI.WordWrap))
	}

	runErr := ui.Run(ctx, a, styles.NewTheme(env.cfg.UI.Theme))
	// The TUI saves on quit; this covers SIGTERM and program errors.
	if err := a.Save(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
