// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/storyrun-tui/internal/export"
	"github.com/jeranaias/storyrun-tui/internal/storage"
)

// =============================================================================
// STORIES
// =============================================================================

func newStoriesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "stories",
		Aliases: []string{"ls", "list"},
		Short:   "List saved stories, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(o)
			if err != nil {
				return err
			}
			defer env.Close()

			list, err := env.store.List()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), storage.FormatList(list))
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCmd(o *options) *cobra.Command {
	var (
		format string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a story as Markdown, text, JSON or YAML",
		Long: "Export writes the story to stdout, or to a new file in --out-dir.\n" +
			"Formats: " + strings.Join(export.Formats(), ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return &UsageError{Err: err}
			}

			env, err := loadEnvironment(o)
			if err != nil {
				return err
			}
			defer env.Close()

			snap, err := env.store.Load(args[0])
			if err != nil {
				return err
			}

			if outDir == "" {
				return export.Story(snap, format, cmd.OutOrStdout())
			}
			opts.OutputDir = outDir
			path, err := export.ToFile(snap, exporter, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Exported")+" "+path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "md, text, json or yaml")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "write a file in this directory instead of stdout")
	return cmd
}

// =============================================================================
// DELETE
// =============================================================================

func newDeleteCmd(o *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved story",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(o)
			if err != nil {
				return err
			}
			defer env.Close()

			id := args[0]
			snap, err := env.store.Load(id)
			if err != nil {
				return err
			}
			action := fmt.Sprintf("delete %q (%d turns)", snap.Meta.DisplayTitle(), len(snap.Turns))
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), IsTTY(), yes, action)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}

			if err := env.store.Delete(id); err != nil {
				return err
			}
			env.logger.Info("story deleted", "story_id", id)
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Deleted")+" "+id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}
