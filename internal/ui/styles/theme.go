// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds the styled components of the TUI.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// TRANSCRIPT STYLES
	// ==========================================================================

	Title    lipgloss.Style
	UserTurn lipgloss.Style
	Muted    lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputBorder         lipgloss.Style
	InputBorderDisabled lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusModel  lipgloss.Style
	StatusState  lipgloss.Style
	StatusBusy   lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// NOTICE STYLES
	// ==========================================================================

	Spinner lipgloss.Style
	Error   lipgloss.Style
	Notice  lipgloss.Style
}

// NewTheme creates a theme for mode, one of ModeAuto, ModeDark or ModeLight.
// Unknown modes behave like ModeAuto.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()
	isDark := termenv.HasDarkBackground()
	switch mode {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.UserTurn = lipgloss.NewStyle().Foreground(Cyan)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple)
	t.InputBorderDisabled = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim)
	t.StatusModel = lipgloss.NewStyle().Bold(true).Foreground(Purple).Background(SurfaceDim)
	t.StatusState = lipgloss.NewStyle().Foreground(Emerald).Background(SurfaceDim)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Amber).Background(SurfaceDim)
	t.ShortcutKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().Foreground(Amber)
	t.Error = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.Notice = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
}

// GlamourStyle names the glamour standard style matching the theme.
// Terminals without color get the plain "notty" style.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// RenderError renders message with the error indicator.
// ACCESSIBILITY: the indicator carries the meaning without color.
func (t *Theme) RenderError(message string) string {
	return t.Error.Render(StatusIndicators.Error + " " + message)
}
