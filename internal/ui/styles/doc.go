// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and Lip Gloss styles of the storyrun TUI.

# Color System (colors.go)

All colors are Lip Gloss AdaptiveColor values, so they follow the terminal's
light or dark background:

  - Purple - AI turns and the status bar accent
  - Cyan - player turns and key hints
  - Amber - retries and other in-flight states
  - Rose - errors

# Theme (theme.go)

NewTheme detects the terminal's color profile with termenv. The "dark" and
"light" modes override background detection; "auto" keeps it. The theme
also names the glamour style used to render the transcript.
*/
package styles
