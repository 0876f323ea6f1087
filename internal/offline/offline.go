// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/jeranaias/storyrun-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNonLocalhost is returned for a non-loopback URL in offline mode.
	ErrNonLocalhost = errors.New("only localhost connections are allowed in offline mode")

	// ErrHostedBlocked is returned when a hosted model is used in offline mode.
	ErrHostedBlocked = errors.New("hosted providers are disabled in offline mode")

	// ErrInvalidURLScheme is returned when a URL scheme is not http or https.
	// SECURITY: Keeps file://, data:// and similar schemes out of provider URLs.
	ErrInvalidURLScheme = errors.New("only http and https URLs are allowed")
)

// =============================================================================
// MODE MANAGEMENT
// =============================================================================

// Global offline mode state with thread-safe access.
var (
	offlineMode      bool
	offlineModeMutex sync.RWMutex
)

// SetOfflineMode enables or disables offline mode globally.
func SetOfflineMode(enabled bool) {
	offlineModeMutex.Lock()
	defer offlineModeMutex.Unlock()
	offlineMode = enabled
}

// IsOfflineMode returns true if offline mode is currently enabled.
func IsOfflineMode() bool {
	offlineModeMutex.RLock()
	defer offlineModeMutex.RUnlock()
	return offlineMode
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost checks if a host string refers to localhost.
// Accepts "localhost" and any loopback IP, with or without a port.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	// IsLoopback covers all of 127.0.0.0/8 and every spelling of ::1
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateURL checks a provider base URL. The scheme must be http or https;
// in offline mode the host must also be a loopback address.
func ValidateURL(rawURL string) error {
	return validateURL(rawURL, IsOfflineMode())
}

func validateURL(rawURL string, offline bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}
	if offline && !IsLocalhost(parsed.Hostname()) {
		return fmt.Errorf("%w: %s", ErrNonLocalhost, parsed.Host)
	}
	return nil
}

// =============================================================================
// PROVIDER GUARDS
// =============================================================================

// IsLocalProvider reports whether providerID runs on this machine.
func IsLocalProvider(providerID string) bool {
	return providerID == model.ProviderOllama || providerID == model.ProviderMock
}

// CheckModelAllowed returns ErrHostedBlocked for a hosted model in offline mode.
func CheckModelAllowed(spec model.ModelSpec) error {
	if IsOfflineMode() && !IsLocalProvider(spec.Provider) {
		return fmt.Errorf("%w: %s", ErrHostedBlocked, spec.ID())
	}
	return nil
}

// =============================================================================
// STATUS DISPLAY
// =============================================================================

// StatusIndicator returns "OFFLINE" when offline mode is on, else "".
func StatusIndicator() string {
	if IsOfflineMode() {
		return "OFFLINE"
	}
	return ""
}
