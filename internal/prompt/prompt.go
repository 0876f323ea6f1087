// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"fmt"
	"strings"

	"github.com/jeranaias/storyrun-tui/internal/model"
)

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultInstructions is the writing guide used when a story has none.
// Lines starting with % are help for the user and never reach the model.
const DefaultInstructions = `% These instructions are given to the AI before the story.
% - All lines starting with percent (%) are removed for the AI.
% - Leave the instructions blank to reset to the default instructions.

You are an excellent story writer assistant, writing remarkable fantasy
fiction. Do not reply with dialog, only with the answers directly.

Use markdown format, but use formatting sparsely.

Writing Guidelines: Use second person perspective and present tense,
unless the story starts differently. Use writing techniques to bring
the world and characters to life. Vary what phrases you use. Be
specific and to the point, and focus on the action in the story. Let
the characters develop, and bring out their motivations, relationships,
thoughts and complexity. Keep the story on track, but be creative and
allow surprising subplots. Include dialog with the characters. Avoid
repetition and summarisation. Avoid repeating phrases. Use humour.

If a paragraph starts with "INSTRUCT:", it is not a part of the story,
but instructions from the user that you must follow when continuing the
story. Do not add instructions on behalf of the user. Do not include
the word INSTRUCT in the story.
`

// DefaultDetails seeds the details of a new story.
const DefaultDetails = `% Story summary and details.
%
% Put details that are important for the story here, for example a summary
% of how the story should go, or details about certain characters.
%
% All lines starting with percent (%) are ignored.

This is a story about you, going on an adventurous journey. You will
experience a lot of things, and will be surprised from time to time.
`

// Token limits for the helper prompts.
const (
	ConceptMaxTokens      = 800
	TitleMaxTokens        = 20
	IntroductionMaxTokens = 200

	// TitleMaxRunes bounds a suggested title after cleanup
	TitleMaxRunes = 50
)

// =============================================================================
// INSTRUCTIONS
// =============================================================================

// Instructions returns the system instructions for meta, falling back to
// DefaultInstructions when the story's own are blank.
func Instructions(meta model.StoryMeta) string {
	text := strings.TrimSpace(StripComments(meta.Instructions))
	if text == "" {
		text = strings.TrimSpace(StripComments(DefaultInstructions))
	}
	return Clean(text)
}

// Details returns the story details as sent to the model.
func Details(meta model.StoryMeta) string {
	return strings.TrimSpace(StripUserComments(StripComments(meta.Details)))
}

// =============================================================================
// PROMPTS
// =============================================================================

// Continuation asks for the next sentences of the story.
// turns is the (already budgeted) history; userText is the newest user
// contribution and may be empty.
func Continuation(meta model.StoryMeta, turns []model.Turn, userText string) string {
	var b strings.Builder
	b.WriteString("Generate two more sentences, continuing the given story:\n")
	writeHeader(&b, meta)

	b.WriteString("\n---\n<THE-STORY>:\n")
	for _, t := range turns {
		if t.IsEmpty() {
			continue
		}
		b.WriteString(strings.TrimSpace(t.Text))
		b.WriteString("\n")
	}
	if s := strings.TrimSpace(userText); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("</THE-STORY>")
	return Clean(b.String())
}

// Concept asks for a random story idea.
func Concept() string {
	return "Give me 100-200 words describing an idea for one exciting fantasy " +
		"story. Only return one story. Return a summary of the story, including " +
		"a chapter layout and character descriptions. Do not start the story."
}

// Title asks for a title matching concept.
func Title(concept string) string {
	return Clean(fmt.Sprintf("Give me only one title, max 40 characters, for a story with "+
		"the given concept, without any other feedback and no newlines:\n%s",
		strings.TrimSpace(concept)))
}

// Introduction asks for the opening sentences of a new story.
func Introduction(meta model.StoryMeta) string {
	var b strings.Builder
	b.WriteString("Give me three sentences that start this story.\n")
	writeHeader(&b, meta)
	return Clean(b.String())
}

// CleanTitle turns a model reply into a single-line title.
func CleanTitle(reply string) string {
	title := strings.ReplaceAll(reply, "\r", "")
	title = strings.ReplaceAll(title, "\n", "")
	title = strings.TrimSpace(Clean(title))
	title = strings.Trim(title, `"'`)
	if r := []rune(title); len(r) > TitleMaxRunes {
		title = strings.TrimSpace(string(r[:TitleMaxRunes]))
	}
	return title
}

func writeHeader(b *strings.Builder, meta model.StoryMeta) {
	if title := strings.TrimSpace(meta.Title); title != "" {
		fmt.Fprintf(b, "\n---\nThe title of the story: '%s'\n", title)
	}
	if details := Details(meta); details != "" {
		fmt.Fprintf(b, "\n---\nImportant details about the story:\n%s\n", details)
	}
}
