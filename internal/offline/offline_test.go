// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/storyrun-tui/internal/model"
)

// =============================================================================
// MODE
// =============================================================================

// resetMode restores online mode when the test ends.
func resetMode(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { SetOfflineMode(false) })
}

func TestMode_Toggle(t *testing.T) {
	resetMode(t)

	SetOfflineMode(true)
	assert.True(t, IsOfflineMode())
	assert.Equal(t, "OFFLINE", StatusIndicator())

	SetOfflineMode(false)
	assert.False(t, IsOfflineMode())
	assert.Empty(t, StatusIndicator(), "no indicator while online")
}

func TestMode_ConcurrentToggle(t *testing.T) {
	resetMode(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				SetOfflineMode((w+j)%2 == 0)
				_ = CheckModelAllowed(model.ModelSpec{Provider: model.ProviderGemini, Name: "gemini-1.5-flash"})
			}
		}(w)
	}
	wg.Wait()
}

// =============================================================================
// LOCALHOST DETECTION TESTS
// =============================================================================

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"127.0.0.1", true},
		{"127.0.0.1:11434", true},
		{"127.1.2.3", true},
		{"::1", true},
		{"[::1]", true},
		{"[::1]:11434", true},
		{"0:0:0:0:0:0:0:1", true},

		{"api.openai.com", false},
		{"192.168.1.1", false},
		{"0.0.0.0", false},
		{"", false},
		{"localhost.localdomain", false},
	}
	for _, tc := range tests {
		t.Run(tc.host, func(t *testing.T) {
			if got := IsLocalhost(tc.host); got != tc.want {
				t.Errorf("IsLocalhost(%q) = %v, want %v", tc.host, got, tc.want)
			}
		})
	}
}

// =============================================================================
// URL VALIDATION TESTS
// =============================================================================

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		offline bool
		wantErr error
	}{
		{"hosted online", "https://api.mistral.ai/v1", false, nil},
		{"local online", "http://127.0.0.1:11434", false, nil},
		{"local offline", "http://localhost:11434", true, nil},
		{"ipv6 offline", "http://[::1]:11434", true, nil},
		{"remote offline", "http://192.168.1.20:11434", true, ErrNonLocalhost},
		{"hosted offline", "https://api.openai.com/v1", true, ErrNonLocalhost},
		{"file scheme", "file:///etc/passwd", false, ErrInvalidURLScheme},
		{"data scheme offline", "data:text/plain,hi", true, ErrInvalidURLScheme},
		{"no scheme", "localhost:11434", false, ErrInvalidURLScheme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(tt.url, tt.offline)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validateURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// PROVIDER GUARD TESTS
// =============================================================================

func TestCheckModelAllowed(t *testing.T) {
	resetMode(t)

	hosted := model.ModelSpec{Provider: model.ProviderOpenAI, Name: "gpt-4o-mini"}
	local := model.ModelSpec{Provider: model.ProviderOllama, Name: "llama3.2"}
	mock := model.ModelSpec{Provider: model.ProviderMock, Name: "mock"}

	SetOfflineMode(false)
	for _, s := range []model.ModelSpec{hosted, local, mock} {
		if err := CheckModelAllowed(s); err != nil {
			t.Errorf("CheckModelAllowed(%s) online = %v, want nil", s.ID(), err)
		}
	}

	SetOfflineMode(true)
	err := CheckModelAllowed(hosted)
	assert.ErrorIs(t, err, ErrHostedBlocked)
	assert.Contains(t, err.Error(), hosted.ID(), "the blocked model is named")
	for _, s := range []model.ModelSpec{local, mock} {
		if err := CheckModelAllowed(s); err != nil {
			t.Errorf("CheckModelAllowed(%s) offline = %v, want nil", s.ID(), err)
		}
	}
}
