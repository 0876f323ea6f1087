// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// TEXT CLEANUP
// =============================================================================

var (
	// manyNewlines matches three or more newlines
	manyNewlines = regexp.MustCompile(`\n{3,}`)

	// inlineSpace matches runs of horizontal whitespace
	inlineSpace = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// Clean normalizes story text: NFC composition, at most one blank line between
// paragraphs, and single spaces within lines.
func Clean(text string) string {
	text = norm.NFC.String(text)
	text = inlineSpace.ReplaceAllString(text, " ")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return text
}

// =============================================================================
// COMMENTS
// =============================================================================

// CommentPrefix marks help lines in instructions and details.
const CommentPrefix = "%"

// UserCommentPrefix marks lines the user wants kept out of the prompt.
const UserCommentPrefix = "#"

// StripComments drops lines starting with CommentPrefix.
// Leading whitespace is removed from every line.
func StripComments(text string) string {
	return stripLines(text, CommentPrefix)
}

// StripUserComments drops lines starting with UserCommentPrefix.
func StripUserComments(text string) string {
	return stripLines(text, UserCommentPrefix)
}

func stripLines(text, prefix string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimLeft(line, " \t\r")
		if strings.HasPrefix(line, prefix) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// =============================================================================
// INLINE INSTRUCTIONS
// =============================================================================

// InstructPrefix starts a user paragraph that directs the model instead of
// adding to the story.
const InstructPrefix = "INSTRUCT:"

// IsInstruction reports whether text is an inline instruction.
func IsInstruction(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), InstructPrefix)
}

// InstructionBody returns text without the InstructPrefix.
func InstructionBody(text string) string {
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimPrefix(text, InstructPrefix))
}
