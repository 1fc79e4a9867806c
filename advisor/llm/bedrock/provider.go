// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package bedrock provides a provider adapter for AWS Bedrock managed
// models using the AWS SDK v2 runtime client. Authentication uses AWS
// Signature V4 via the default credential chain, so no API key is stored.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"strategos/core/advisor/llm"
)

const (
	// DefaultRegion is used when no region is configured.
	DefaultRegion = "us-east-1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	// DefaultMaxTokens is the default response budget.
	DefaultMaxTokens = 4096
)

// RuntimeClient is the subset of the Bedrock runtime API the adapter needs.
type RuntimeClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config configures the Bedrock adapter.
type Config struct {
	// Name is the provider instance name; defaults to "bedrock".
	Name string

	// Region is the AWS region hosting the model.
	Region string

	// Model is the Bedrock model identifier.
	Model string
}

// Provider is the Bedrock adapter. Safe for concurrent use.
type Provider struct {
	name   string
	region string
	model  string
	client RuntimeClient
	retry  llm.RetryConfig
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Bedrock provider, loading AWS configuration from the
// default credential chain.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := newUnconnected(cfg)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for Bedrock (region %s): %w", p.region, err)
	}
	p.client = bedrockruntime.NewFromConfig(awsCfg)
	return p, nil
}

// NewWithClient creates a Bedrock provider with an explicit runtime client
// (used in tests).
func NewWithClient(cfg Config, client RuntimeClient) *Provider {
	p := newUnconnected(cfg)
	p.client = client
	return p
}

func newUnconnected(cfg Config) *Provider {
	p := &Provider{
		name:   cfg.Name,
		region: cfg.Region,
		model:  cfg.Model,
		retry:  llm.DefaultRetryConfig(),
	}
	if p.name == "" {
		p.name = "bedrock"
	}
	if p.region == "" {
		p.region = DefaultRegion
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	return p
}

// Name returns the provider instance name.
func (p *Provider) Name() string { return p.name }

// Model returns the configured model identifier.
func (p *Provider) Model() string { return p.model }

// IsConfigured reports whether a runtime client is available. Credentials
// come from IAM, so a constructed client is the configuration signal.
func (p *Provider) IsConfigured() bool { return p.client != nil }

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      *float64        `json:"temperature,omitempty"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Generate invokes the model with adapter-local bounded retry.
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if !p.IsConfigured() {
		return "", llm.NewProviderError(p.name, llm.ErrCodeNotConfigured, "bedrock client not initialized")
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

	body := claudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           system,
		Messages:         []claudeMessage{{Role: "user", Content: prompt}},
	}
	if opts.Temperature > 0 {
		body.Temperature = &opts.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &llm.ProviderError{
			Provider: p.name, Code: llm.ErrCodeUnavailable,
			Message: "invoke failed", Retryable: true, Cause: err,
		}
	}

	var parsed claudeResponse
	if err := json.Unmarshal(output.Body, &parsed); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", llm.NewProviderError(p.name, llm.ErrCodeServerError, "response contained no text content")
}
