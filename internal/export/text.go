// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/prompt"
	"github.com/jeranaias/storyrun-tui/internal/session"
	"github.com/jeranaias/storyrun-tui/internal/util"
)

// =============================================================================
// TEXT EXPORTER
// =============================================================================

// TextExporter exports stories as plain prose.
type TextExporter struct {
	options *Options
}

// NewTextExporter creates a new plain-text exporter.
func NewTextExporter(opts *Options) *TextExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &TextExporter{options: opts}
}

// Export converts a story to plain text. The title is underlined and the
// player's turns are prefixed with "> ".
func (e *TextExporter) Export(snap session.Snapshot) ([]byte, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	title := snap.Meta.DisplayTitle()
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", util.StringWidth(title)) + "\n\n")

	if e.options.IncludeMetadata && snap.Meta.Model != "" {
		sb.WriteString("Model: " + snap.Meta.Model + "\n")
		sb.WriteString("Updated: " + formatTimestamp(snap.Meta.UpdatedAt) + "\n\n")
	}

	for _, turn := range snap.Turns {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		switch {
		case turn.Role == model.RoleUser && prompt.IsInstruction(text):
			text = "I: " + prompt.InstructionBody(text)
		case turn.Role == model.RoleUser:
			text = quote(text, "> ")
		}
		sb.WriteString(text + "\n\n")
	}

	return []byte(strings.TrimRight(sb.String(), "\n") + "\n"), nil
}

// FileExtension returns the file extension for plain text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for plain text.
func (e *TextExporter) MimeType() string {
	return "text/plain"
}
