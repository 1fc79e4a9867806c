// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package llm provides the provider abstraction, live health tracking, and
// adaptive routing used by the Strategos advisory pipeline to reach backend
// language-model providers. All generation traffic flows through the Router,
// which fails over between providers based on their tracked health.
package llm

import (
	"fmt"
	"time"
)

// TaskType classifies a generation request so the router can apply
// task-specific provider preferences.
type TaskType string

const (
	// TaskTypeGeneral is the default task classification.
	TaskTypeGeneral TaskType = "general"

	// TaskTypeOptions is option generation for a strategic query.
	TaskTypeOptions TaskType = "options"

	// TaskTypeAnalysis is analytical/summarization work.
	TaskTypeAnalysis TaskType = "analysis"
)

// GenerateOptions carries per-request routing and generation parameters.
type GenerateOptions struct {
	// TaskType classifies the request for task_optimized routing.
	TaskType TaskType `json:"task_type,omitempty"`

	// PreferredProvider, when set and available, is tried first regardless
	// of the routing strategy.
	PreferredProvider string `json:"preferred_provider,omitempty"`

	// ExpectJSON asks the provider for a machine-parseable JSON response.
	ExpectJSON bool `json:"expect_json,omitempty"`

	// SystemPrompt is an optional system message. Not all providers
	// support system prompts.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the response length. 0 means provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. 0 means provider default.
	Temperature float64 `json:"temperature,omitempty"`
}

// GenerateResult is the router's answer to a generation request.
type GenerateResult struct {
	// Text is the generated content.
	Text string `json:"text"`

	// Provider is the name of the provider that produced the text.
	Provider string `json:"provider"`

	// Latency is the duration of the successful provider call.
	Latency time.Duration `json:"latency"`

	// HealthScore is the provider's health score after this call.
	HealthScore float64 `json:"health_score"`
}

// HealthStatus bands a provider's 0-1 health score.
type HealthStatus string

const (
	// HealthStatusHealthy means score >= 0.8.
	HealthStatusHealthy HealthStatus = "healthy"

	// HealthStatusDegraded means score >= 0.5.
	HealthStatusDegraded HealthStatus = "degraded"

	// HealthStatusUnhealthy means score >= 0.2.
	HealthStatusUnhealthy HealthStatus = "unhealthy"

	// HealthStatusCritical means score < 0.2.
	HealthStatusCritical HealthStatus = "critical"
)

// ProviderError represents an error from a backend provider call.
type ProviderError struct {
	// Provider is the name of the provider that returned the error.
	Provider string `json:"provider"`

	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// StatusCode is the HTTP status code, if applicable.
	StatusCode int `json:"status_code,omitempty"`

	// Retryable indicates if the call can be retried against the same
	// provider before the router moves to the next candidate.
	Retryable bool `json:"retryable"`

	// Cause is the underlying error, if any.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Common provider error codes.
const (
	// ErrCodeRateLimit indicates rate limiting.
	ErrCodeRateLimit = "rate_limit"

	// ErrCodeAuth indicates authentication failure.
	ErrCodeAuth = "authentication_error"

	// ErrCodeInvalidRequest indicates a malformed request.
	ErrCodeInvalidRequest = "invalid_request"

	// ErrCodeServerError indicates a provider-side server error.
	ErrCodeServerError = "server_error"

	// ErrCodeTimeout indicates the per-call deadline expired.
	ErrCodeTimeout = "timeout"

	// ErrCodeUnavailable indicates the provider is unreachable.
	ErrCodeUnavailable = "unavailable"

	// ErrCodeNotConfigured indicates missing credentials.
	ErrCodeNotConfigured = "not_configured"
)

// NewProviderError creates a ProviderError with retryability derived from
// the code.
func NewProviderError(provider, code, message string) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Retryable: isRetryableCode(code),
	}
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRateLimit, ErrCodeServerError, ErrCodeTimeout, ErrCodeUnavailable:
		return true
	default:
		return false
	}
}

// ExhaustedError is returned when every candidate provider failed (or the
// candidate set was empty). It carries the last underlying error.
type ExhaustedError struct {
	// Attempted lists the providers tried, in order.
	Attempted []string

	// LastErr is the error from the final attempt, nil when no candidate
	// was available at all.
	LastErr error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	if len(e.Attempted) == 0 {
		return "no providers available"
	}
	return fmt.Sprintf("all %d providers exhausted (tried %v): %v", len(e.Attempted), e.Attempted, e.LastErr)
}

// Unwrap returns the last underlying error.
func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}
