// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/provider"
)

func TestMistral_Generate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer mk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"A raven lands."},"finish_reason":"stop"}],"usage":{"prompt_tokens":9,"completion_tokens":4}}`))
	}))
	defer server.Close()

	spec, _ := model.Lookup(model.ProviderMistral, "open-mistral-nemo")
	adapter := NewMistral(Config{BaseURL: server.URL, APIKey: "mk-test", RequestsPerMinute: -1})

	res, err := adapter.Generate(context.Background(), model.GenerationRequest{Prompt: "p", Model: spec, MaxOutputTokens: 50})
	require.NoError(t, err)

	assert.Equal(t, "A raven lands.", res.Text)
	assert.Equal(t, false, got["safe_prompt"])
	assert.Equal(t, "open-mistral-nemo", got["model"])
}

func TestMistral_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthorized","request_id":"abc"}`))
	}))
	defer server.Close()

	adapter := NewMistral(Config{BaseURL: server.URL, APIKey: "mk-bad", RequestsPerMinute: -1})
	_, err := adapter.Generate(context.Background(), model.GenerationRequest{Prompt: "p"})

	assert.ErrorIs(t, err, provider.ErrAuth)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestMistral_EmptyReplyIsFiltered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	spec, _ := model.Lookup(model.ProviderMistral, "open-mistral-nemo")
	adapter := NewMistral(Config{BaseURL: server.URL, APIKey: "mk-test", RequestsPerMinute: -1})
	res, err := adapter.Generate(context.Background(), model.GenerationRequest{Prompt: "p", Model: spec})

	assert.ErrorIs(t, err, provider.ErrContentFiltered)
	assert.Empty(t, res.Text)
}
