// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewAdapter(&ClientConfig{BaseURL: server.URL})
}

func localRequest() model.GenerationRequest {
	spec, _ := model.Lookup(model.ProviderOllama, "llama3.2")
	return model.GenerationRequest{
		Prompt:          "Continue the story.",
		Instructions:    "Write fantasy.",
		MaxOutputTokens: 100,
		Model:           spec,
		Temperature:     0.75,
	}
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestNewClientWithConfig_FillsDefaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://example:1234/"})
	cfg := c.config

	if cfg.BaseURL != "http://example:1234" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("Timeout = %v, want 120s", cfg.Timeout)
	}
	if cfg.ProbeTimeout != 2*time.Second {
		t.Errorf("ProbeTimeout = %v, want 2s", cfg.ProbeTimeout)
	}

	if got := NewClientWithConfig(nil).config.BaseURL; got != DefaultBaseURL {
		t.Errorf("nil config BaseURL = %q, want %q", got, DefaultBaseURL)
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestClient_CheckRunning(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	})

	if err := a.Client().CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() error = %v", err)
	}
	if err := a.Available(context.Background()); err != nil {
		t.Errorf("Available() error = %v", err)
	}
}

func TestClient_NotRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url})
	err := c.CheckRunning(context.Background())

	if !IsNotRunning(err) {
		t.Errorf("CheckRunning() = %v, want not running", err)
	}
	if !errors.Is(err, ErrNotRunning) {
		t.Error("errors.Is(err, ErrNotRunning) = false, want true")
	}

	a := NewAdapter(&ClientConfig{BaseURL: url})
	if err := a.Available(context.Background()); !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("Available() = %v, want ErrUnavailable", err)
	}
}

func TestClient_HasModel(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2:latest","size":2019393189},{"name":"mistral:7b"}]}`))
	})

	tests := []struct {
		name string
		want bool
	}{
		{"llama3.2", true},
		{"llama3.2:latest", true},
		{"mistral", true},
		{"phi3", false},
	}

	for _, tc := range tests {
		got, err := a.HasModel(context.Background(), tc.name)
		if err != nil {
			t.Fatalf("HasModel(%q) error = %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("HasModel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestChatResponse_TokensPerSecond(t *testing.T) {
	resp := &ChatResponse{EvalCount: 100, EvalDuration: int64(time.Second)}
	if got := resp.TokensPerSecond(); got < 99.9 || got > 100.1 {
		t.Errorf("TokensPerSecond() = %f, want 100", got)
	}

	resp = &ChatResponse{EvalCount: 100}
	if got := resp.TokensPerSecond(); got != 0 {
		t.Errorf("TokensPerSecond() with zero duration = %f, want 0", got)
	}
}

// =============================================================================
// ADAPTER TESTS
// =============================================================================

func TestAdapter_Generate(t *testing.T) {
	var got ChatRequest
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"An owl hoots."},"done":true,"done_reason":"stop","prompt_eval_count":30,"eval_count":5}`))
	})

	res, err := a.Generate(context.Background(), localRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if res.Text != "An owl hoots." {
		t.Errorf("Text = %q, want %q", res.Text, "An owl hoots.")
	}
	if res.FinishReason != model.FinishComplete {
		t.Errorf("FinishReason = %v, want complete", res.FinishReason)
	}
	if res.Usage == nil || res.Usage.CompletionTokens != 5 {
		t.Errorf("Usage = %+v, want 5 completion tokens", res.Usage)
	}

	if got.Stream {
		t.Error("request should not stream")
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("Messages = %+v, want system then user", got.Messages)
	}
	if got.Options == nil || got.Options.NumPredict != 100 || got.Options.NumCtx != 8192 {
		t.Errorf("Options = %+v, want num_predict 100 and num_ctx 8192", got.Options)
	}
}

func TestAdapter_GenerateTruncated(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"The"},"done":true,"done_reason":"length"}`))
	})

	res, err := a.Generate(context.Background(), localRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.FinishReason != model.FinishTruncated {
		t.Errorf("FinishReason = %v, want truncated", res.FinishReason)
	}
	if res.Usage != nil {
		t.Errorf("Usage = %+v, want nil when counts are absent", res.Usage)
	}
}

func TestAdapter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"model missing", http.StatusNotFound, `{"error":"model 'llama3.2' not found"}`, provider.ErrModel},
		{"server error", http.StatusInternalServerError, `{"error":"out of memory"}`, provider.ErrUnavailable},
		{"bad options", http.StatusBadRequest, `{"error":"invalid options"}`, provider.ErrModel},
		{"empty answer", http.StatusOK, `{"message":{"role":"assistant","content":""},"done":true}`, provider.ErrContentFiltered},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			_, err := a.Generate(context.Background(), localRequest())
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Generate() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAdapter_Cancelled(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := a.Generate(ctx, localRequest())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
	if provider.IsRetryable(err) {
		t.Error("cancelled call must not be retryable")
	}
}
