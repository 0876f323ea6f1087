// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// =============================================================================
// RETRY-AFTER PARSING TESTS
// =============================================================================

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "7", 7 * time.Second},
		{"fractional", "1.5", 1500 * time.Millisecond},
		{"zero", "0", 0},
		{"negative", "-3", 0},
		{"http date", now.Add(20 * time.Second).Format(http.TimeFormat), 20 * time.Second},
		{"date in past", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseRetryAfter(tc.value, now); got != tc.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

// =============================================================================
// STATUS CLASSIFICATION TESTS
// =============================================================================

func TestClassifyStatus(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		status    int
		header    string
		body      string
		wantKind  provider.Kind
		wantAfter time.Duration
	}{
		{"unauthorized", 401, "", `{"error":{"message":"bad key"}}`, provider.KindAuth, 0},
		{"forbidden", 403, "", `{"message":"Forbidden"}`, provider.KindAuth, 0},
		{"rate limited with header", 429, "4", `{"error":{"message":"slow"}}`, provider.KindRateLimit, 4 * time.Second},
		{"rate limited with body hint", 429, "", `{"error":{"code":429,"message":"quota","details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"12s"}]}}`, provider.KindRateLimit, 12 * time.Second},
		{"rate limited no hint", 429, "", `{}`, provider.KindRateLimit, 0},
		{"server error", 503, "", `upstream down`, provider.KindUnavailable, 0},
		{"bad gateway", 502, "", ``, provider.KindUnavailable, 0},
		{"bad request", 400, "", `{"error":{"message":"max_tokens too large"}}`, provider.KindModel, 0},
		{"not found", 404, "", `{"error":{"message":"model does not exist"}}`, provider.KindModel, 0},
		{"gemini invalid key", 400, "", `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT","details":[{"reason":"API_KEY_INVALID"}]}}`, provider.KindAuth, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tc.status,
				Status:     http.StatusText(tc.status),
				Header:     http.Header{},
			}
			if tc.header != "" {
				resp.Header.Set("Retry-After", tc.header)
			}

			err := classifyStatus("test", resp, []byte(tc.body), now)

			var pe *provider.Error
			if !errors.As(err, &pe) {
				t.Fatalf("classifyStatus returned %T, want *provider.Error", err)
			}
			if pe.Kind != tc.wantKind {
				t.Errorf("Kind = %v, want %v", pe.Kind, tc.wantKind)
			}
			if pe.RetryAfter != tc.wantAfter {
				t.Errorf("RetryAfter = %v, want %v", pe.RetryAfter, tc.wantAfter)
			}
		})
	}
}

// =============================================================================
// SHARED CLIENT TESTS
// =============================================================================

func TestKeyFingerprint(t *testing.T) {
	c := newClient("test", "http://x", Config{APIKey: "sk-secret-value"})
	fp := c.keyFingerprint()

	if len(fp) != 8 {
		t.Errorf("fingerprint length = %d, want 8", len(fp))
	}
	if strings.Contains("sk-secret-value", fp) {
		t.Error("fingerprint should not be a fragment of the key")
	}

	empty := newClient("test", "http://x", Config{})
	if got := empty.keyFingerprint(); got != "none" {
		t.Errorf("empty fingerprint = %q, want none", got)
	}
}

func TestReadResponse_SizeLimit(t *testing.T) {
	big := strings.Repeat("x", MaxResponseSize+10)
	resp := &http.Response{Body: io.NopCloser(strings.NewReader(big))}

	if _, err := readResponse(resp); err == nil {
		t.Error("readResponse should reject bodies over MaxResponseSize")
	}

	exact := strings.Repeat("x", 100)
	resp = &http.Response{Body: io.NopCloser(strings.NewReader(exact))}
	body, err := readResponse(resp)
	if err != nil {
		t.Fatalf("readResponse error = %v", err)
	}
	if len(body) != 100 {
		t.Errorf("len(body) = %d, want 100", len(body))
	}
}

func TestPostJSON_NetworkErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newClient("test", url, Config{APIKey: "k", RequestsPerMinute: -1, Timeout: time.Second})
	_, err := c.postJSON(context.Background(), "/x", map[string]string{}, nil)

	if !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestPostJSON_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := newClient("test", server.URL, Config{APIKey: "k", RequestsPerMinute: -1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.postJSON(ctx, "/x", map[string]string{}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if provider.IsRetryable(err) {
		t.Error("a cancelled call must not look retryable")
	}
}
