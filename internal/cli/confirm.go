// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation for destructive commands.

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm asks the user to confirm action on in.
//
// Confirmation flow:
//  1. If yes is true (--yes), proceed without prompting
//  2. If stdin is not a TTY, return an error (can't prompt)
//  3. Otherwise prompt and accept "y" or "yes"
func confirm(in io.Reader, out io.Writer, tty, yes bool, action string) (bool, error) {
	if yes {
		return true, nil
	}
	if !tty {
		return false, &UsageError{Err: fmt.Errorf("confirmation required but stdin is not a terminal; use --yes")}
	}

	fmt.Fprintf(out, "Are you sure you want to %s? [y/N]: ", action)
	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}
