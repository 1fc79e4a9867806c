// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategos/core/advisor/llm"
)

func noRetry() *llm.RetryConfig {
	return &llm.RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 1, RetryIf: llm.DefaultRetryable}
}

func TestGenerateParsesTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Messages[0].Content)

		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": "hi there"}},
			"stop_reason": "end_turn",
		})
	}))
	defer srv.Close()

	p := New(Config{APIKey: "test-key", BaseURL: srv.URL, Retry: noRetry()})

	got, err := p.Generate(context.Background(), "hello", llm.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hi there", got)
}

func TestGenerateExpectJSONAddsSystemInstruction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.System, "valid JSON")

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": `{"ok":true}`}},
		})
	}))
	defer srv.Close()

	p := New(Config{APIKey: "k", BaseURL: srv.URL, Retry: noRetry()})

	got, err := p.Generate(context.Background(), "hello", llm.GenerateOptions{ExpectJSON: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, got)
}

func TestGenerateMapsStatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
	}{
		{http.StatusUnauthorized, llm.ErrCodeAuth},
		{http.StatusTooManyRequests, llm.ErrCodeRateLimit},
		{http.StatusBadRequest, llm.ErrCodeInvalidRequest},
		{http.StatusInternalServerError, llm.ErrCodeServerError},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"type": "err", "message": "nope"}})
		}))

		p := New(Config{APIKey: "k", BaseURL: srv.URL, Retry: noRetry()})
		_, err := p.Generate(context.Background(), "hello", llm.GenerateOptions{})
		srv.Close()

		var perr *llm.ProviderError
		require.ErrorAs(t, err, &perr, "status %d", tt.status)
		assert.Equal(t, tt.wantCode, perr.Code)
		assert.Equal(t, tt.status, perr.StatusCode)
		assert.Equal(t, "nope", perr.Message)
	}
}

func TestGenerateWithoutKeyFails(t *testing.T) {
	p := New(Config{})
	assert.False(t, p.IsConfigured())

	_, err := p.Generate(context.Background(), "hello", llm.GenerateOptions{})
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, llm.ErrCodeNotConfigured, perr.Code)
}

func TestDefaults(t *testing.T) {
	p := New(Config{APIKey: "k"})
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, DefaultModel, p.Model())
}
