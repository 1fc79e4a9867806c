// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package openai provides a provider adapter for OpenAI's chat completion
// models.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"strategos/core/advisor/llm"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"
)

// HTTPClient is the subset of http.Client the adapter needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the OpenAI adapter.
type Config struct {
	// Name is the provider instance name; defaults to "openai".
	Name string

	// APIKey is the OpenAI API key.
	APIKey string

	// Model overrides the default model.
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Retry overrides the adapter-local retry policy.
	Retry *llm.RetryConfig
}

// Provider is the OpenAI adapter. Safe for concurrent use.
type Provider struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	client  HTTPClient
	retry   llm.RetryConfig
}

var _ llm.Provider = (*Provider)(nil)

// New creates an OpenAI provider from config.
func New(cfg Config) *Provider {
	p := &Provider{
		name:    cfg.Name,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		client:  &http.Client{},
		retry:   llm.DefaultRetryConfig(),
	}
	if p.name == "" {
		p.name = "openai"
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.baseURL == "" {
		p.baseURL = DefaultBaseURL
	}
	if cfg.Retry != nil {
		p.retry = *cfg.Retry
	}
	return p
}

// SetHTTPClient replaces the HTTP client (used in tests).
func (p *Provider) SetHTTPClient(client HTTPClient) {
	p.client = client
}

// Name returns the provider instance name.
func (p *Provider) Name() string { return p.name }

// Model returns the configured model identifier.
func (p *Provider) Model() string { return p.model }

// IsConfigured reports whether an API key is present.
func (p *Provider) IsConfigured() bool { return p.apiKey != "" }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate calls the chat completions API with adapter-local bounded retry.
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if !p.IsConfigured() {
		return "", llm.NewProviderError(p.name, llm.ErrCodeNotConfigured, "missing API key")
	}

	return llm.RetryWithBackoff(ctx, p.retry, func(ctx context.Context) (string, error) {
		return p.generateOnce(ctx, prompt, opts)
	})
}

func (p *Provider) generateOnce(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	var messages []chatMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body := chatRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: opts.MaxTokens,
	}
	if opts.Temperature > 0 {
		body.Temperature = &opts.Temperature
	}
	if opts.ExpectJSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &llm.ProviderError{
			Provider: p.name, Code: llm.ErrCodeUnavailable,
			Message: "request failed", Retryable: true, Cause: err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", p.errorFromStatus(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", llm.NewProviderError(p.name, llm.ErrCodeServerError, "response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (p *Provider) errorFromStatus(status int, raw []byte) error {
	var parsed chatResponse
	msg := http.StatusText(status)
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
		msg = parsed.Error.Message
	}

	code := llm.ErrCodeServerError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = llm.ErrCodeAuth
	case status == http.StatusTooManyRequests:
		code = llm.ErrCodeRateLimit
	case status == http.StatusBadRequest:
		code = llm.ErrCodeInvalidRequest
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = llm.ErrCodeTimeout
	}

	perr := llm.NewProviderError(p.name, code, msg)
	perr.StatusCode = status
	return perr
}
