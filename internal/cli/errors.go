// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and hints for CLI errors.
//
// Commands always return errors; Execute prints them once and maps them to
// an exit code.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/storyrun-tui/internal/config"
	"github.com/jeranaias/storyrun-tui/internal/offline"
	"github.com/jeranaias/storyrun-tui/internal/provider"
	"github.com/jeranaias/storyrun-tui/internal/storage"
	"github.com/jeranaias/storyrun-tui/internal/util"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// UsageError marks errors in flags or arguments.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErr *config.ValidationError
	var cfgErrs config.ValidateErrors
	switch {
	case errors.As(err, &usage), errors.Is(err, offline.ErrHostedBlocked):
		return ExitUsageError
	case errors.As(err, &cfgErr), errors.As(err, &cfgErrs):
		return ExitConfigError
	case errors.Is(err, storage.ErrStoryNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	}

	switch provider.KindOf(err) {
	case provider.KindAuth, provider.KindCredentialMissing:
		return ExitAuthError
	case provider.KindUnavailable, provider.KindRateLimit:
		return ExitNetworkError
	case provider.KindUnknownModel:
		return ExitUsageError
	}
	return ExitGeneralError
}

// Hint returns a one-line suggestion for err, or "".
func Hint(err error) string {
	switch {
	case errors.Is(err, storage.ErrStoryNotFound):
		return "List saved stories with: storyrun stories"
	case errors.Is(err, offline.ErrHostedBlocked):
		return "Offline mode allows local models only; drop --offline or pick an ollama/ model"
	case provider.KindOf(err) == provider.KindCredentialMissing:
		path, _ := config.SecretsPath()
		return fmt.Sprintf("Add the API key to %s or set the provider's *_API_KEY variable", path)
	case provider.KindOf(err) == provider.KindUnknownModel:
		return "List usable models with: storyrun --list-models"
	case provider.KindOf(err) == provider.KindUnavailable:
		return "Check the provider is reachable; for Ollama run: ollama serve"
	}
	return ""
}

// printError writes err and its hint to w.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), util.SingleLine(err.Error()))
	if hint := Hint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
}
