// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/prompt"
	"github.com/jeranaias/storyrun-tui/internal/session"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports stories to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontmatter is the YAML header of a Markdown export.
type frontmatter struct {
	Title     string `yaml:"title"`
	Model     string `yaml:"model,omitempty"`
	Created   string `yaml:"date"`
	Updated   string `yaml:"updated"`
	Turns     int    `yaml:"turns"`
	Generator string `yaml:"generator"`
}

// Export converts a story to Markdown format.
// The narrator's turns are prose; the player's turns are block quotes.
// Inline instructions are quoted in italics with an "I:" marker.
func (e *MarkdownExporter) Export(snap session.Snapshot) ([]byte, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		header, err := yaml.Marshal(frontmatter{
			Title:     snap.Meta.DisplayTitle(),
			Model:     snap.Meta.Model,
			Created:   snap.Meta.CreatedAt.Format(time.RFC3339),
			Updated:   snap.Meta.UpdatedAt.Format(time.RFC3339),
			Turns:     len(snap.Turns),
			Generator: "storyrun",
		})
		if err != nil {
			return nil, fmt.Errorf("encode frontmatter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(snap.Meta.DisplayTitle())))

	if details := prompt.Details(snap.Meta); e.options.IncludeMetadata && details != "" {
		sb.WriteString("## Details\n\n")
		sb.WriteString(details)
		sb.WriteString("\n\n---\n\n")
	}

	for _, turn := range snap.Turns {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		switch {
		case turn.Role == model.RoleUser && prompt.IsInstruction(text):
			sb.WriteString("> *I: " + escapeMarkdown(prompt.InstructionBody(text)) + "*")
		case turn.Role == model.RoleUser:
			sb.WriteString(quote(text, "> "))
		default:
			sb.WriteString(text)
		}
		sb.WriteString("\n\n")
	}

	if e.options.IncludeMetadata {
		sb.WriteString("---\n\n")
		sb.WriteString(fmt.Sprintf("*Exported from storyrun on %s*\n",
			time.Now().Format("January 2, 2006 at 3:04 PM")))
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// quote prefixes every line of text, keeping blank lines inside the quote.
func quote(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(prefix+line, " ")
	}
	return strings.Join(lines, "\n")
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
