// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind categorizes generation failures for retry decisions and display.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindCredentialMissing
	KindUnknownModel
	KindRateLimit
	KindUnavailable
	KindContentFiltered
	KindModel
	KindInsufficientBudget
)

// String returns a short label for the kind, suitable for status lines.
func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindCredentialMissing:
		return "credential missing"
	case KindUnknownModel:
		return "unknown model"
	case KindRateLimit:
		return "rate limited"
	case KindUnavailable:
		return "provider unavailable"
	case KindContentFiltered:
		return "content filtered"
	case KindModel:
		return "model error"
	case KindInsufficientBudget:
		return "insufficient budget"
	default:
		return "unknown"
	}
}

// Retryable reports whether errors of this kind are transient.
func (k Kind) Retryable() bool {
	return k == KindRateLimit || k == KindUnavailable
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is the single error type returned by adapters, the registry and the
// budgeter. Two Errors match under errors.Is when their kinds are equal.
// SECURITY: Message must never contain credential material.
type Error struct {
	Kind     Kind
	Provider string
	Message  string

	// RetryAfter is the provider's throttling hint; zero means none was given
	RetryAfter time.Duration

	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors for errors.Is checks.
var (
	ErrAuth               = &Error{Kind: KindAuth, Message: "authentication failed"}
	ErrCredentialMissing  = &Error{Kind: KindCredentialMissing, Message: "credential not configured"}
	ErrUnknownModel       = &Error{Kind: KindUnknownModel, Message: "unknown model"}
	ErrRateLimit          = &Error{Kind: KindRateLimit, Message: "rate limited"}
	ErrUnavailable        = &Error{Kind: KindUnavailable, Message: "provider unavailable"}
	ErrContentFiltered    = &Error{Kind: KindContentFiltered, Message: "content filtered"}
	ErrModel              = &Error{Kind: KindModel, Message: "model rejected request"}
	ErrInsufficientBudget = &Error{Kind: KindInsufficientBudget, Message: "insufficient token budget"}
)

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewError creates an error of the given kind.
func NewError(kind Kind, providerID, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: providerID, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, providerID string, cause error, message string) *Error {
	return &Error{Kind: kind, Provider: providerID, Message: message, Cause: cause}
}

// RateLimited creates a rate limit error carrying the provider's retry hint.
func RateLimited(providerID string, retryAfter time.Duration, message string) *Error {
	return &Error{Kind: KindRateLimit, Provider: providerID, Message: message, RetryAfter: retryAfter}
}

// =============================================================================
// HELPERS
// =============================================================================

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// RetryAfterOf returns the provider's retry hint, or zero.
func RetryAfterOf(err error) time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}
