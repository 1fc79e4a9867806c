// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package anthropic provides a provider adapter for Anthropic's Claude
// models over the Messages API.
package anthropic

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
	// DefaultBaseURL is the default Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is the Anthropic API version header value.
	APIVersion = "2023-06-01"

	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-3-5-sonnet-20241022"

	// DefaultMaxTokens is the default response budget.
	DefaultMaxTokens = 4096
)

// HTTPClient is the subset of http.Client the adapter needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the Anthropic adapter.
type Config struct {
	// Name is the provider instance name used for routing; defaults to
	// "anthropic".
	Name string

	// APIKey is the Anthropic API key.
	APIKey string

	// Model overrides the default model.
	Model string

	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string

	// Retry overrides the adapter-local retry policy.
	Retry *llm.RetryConfig
}

// Provider is the Anthropic adapter. Safe for concurrent use.
type Provider struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	client  HTTPClient
	retry   llm.RetryConfig
}

var _ llm.Provider = (*Provider)(nil)

// New creates an Anthropic provider from config.
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
		p.name = "anthropic"
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

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate calls the Messages API with adapter-local bounded retry.
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if !p.IsConfigured() {
		return "", llm.NewProviderError(p.name, llm.ErrCodeNotConfigured, "missing API key")
	}

	return llm.RetryWithBackoff(ctx, p.retry, func(ctx context.Context) (string, error) {
		return p.generateOnce(ctx, prompt, opts)
	})
}

func (p *Provider) generateOnce(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	system := opts.SystemPrompt
	if opts.ExpectJSON {
		if system != "" {
			system += "\n\n"
		}
		system += "Respond with a single valid JSON document and nothing else."
	}

	body := messagesRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	}
	if opts.Temperature > 0 {
		body.Temperature = &opts.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", APIVersion)

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

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", llm.NewProviderError(p.name, llm.ErrCodeServerError, "response contained no text content")
}

func (p *Provider) errorFromStatus(status int, raw []byte) error {
	var parsed messagesResponse
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
