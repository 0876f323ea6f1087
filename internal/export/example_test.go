// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"os"

	"github.com/jeranaias/storyrun-tui/internal/export"
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/session"
)

// ExampleStory prints a story as plain text.
func ExampleStory() {
	snap := session.Snapshot{
		Version: session.SnapshotVersion,
		Meta:    model.StoryMeta{ID: "example", Title: "Cellar"},
		Turns: []model.Turn{
			{Role: model.RoleAI, Text: "The cellar door creaks."},
			{Role: model.RoleUser, Text: "I go down."},
		},
	}

	if err := export.Story(snap, "text", os.Stdout); err != nil {
		panic(err)
	}
	// Output:
	// Cellar
	// ======
	//
	// The cellar door creaks.
	//
	// > I go down.
}
