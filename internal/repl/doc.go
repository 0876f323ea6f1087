// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package repl is the line-oriented interface of storyrun, used when stdout
// is not a terminal or with --plain.
//
// Plain text continues the story. Slash commands:
//
//	/undo          remove the newest turn
//	/redo          restore the most recently undone turn
//	/retry         regenerate the newest AI turn
//	/save          save the story
//	/title [text]  set the title, or ask the model for one
//	/models        list usable models
//	/model <id>    switch to another provider/name model
//	/help          list commands
//	/quit          save and exit
//
// Input history is kept with liner in the config directory.
package repl
