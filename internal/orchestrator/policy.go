// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// RETRY POLICY
// =============================================================================

// Policy bounds retries of transient provider failures.
type Policy struct {
	// MaxAttempts is the total number of provider calls, including the first
	MaxAttempts int

	// BaseDelay is the wait before the second attempt
	BaseDelay time.Duration

	// MaxDelay caps computed backoff; a larger retry-after hint still wins
	MaxDelay time.Duration

	// AttemptTimeout bounds a single provider call
	AttemptTimeout time.Duration
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		AttemptTimeout: 120 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = d.AttemptTimeout
	}
	return p
}

// Backoff returns BaseDelay * 2^(attempt-1), capped at MaxDelay.
// attempt is the number of the attempt that just failed, starting at 1.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if d >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		d *= 2
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Delay returns the wait after a failed attempt: the larger of the backoff
// and the provider's retry-after hint.
func (p Policy) Delay(attempt int, retryAfter time.Duration) time.Duration {
	d := p.Backoff(attempt)
	if retryAfter > d {
		return retryAfter
	}
	return d
}

// =============================================================================
// SLEEPING
// =============================================================================

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-time SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// =============================================================================
// EXHAUSTED RETRIES
// =============================================================================

// ExhaustedError is returned when every attempt failed with a transient error.
// It unwraps to the last provider error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
