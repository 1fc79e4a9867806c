// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategos/core/advisor/llm"
)

type fakeRuntime struct {
	gotInput *bedrockruntime.InvokeModelInput
	response []byte
	err      error
}

func (f *fakeRuntime) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.gotInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.response}, nil
}

func TestGenerateBuildsClaudeRequest(t *testing.T) {
	fake := &fakeRuntime{
		response: []byte(`{"content":[{"type":"text","text":"answer"}],"stop_reason":"end_turn"}`),
	}
	p := NewWithClient(Config{Model: "anthropic.claude-3-5-sonnet-20240620-v1:0"}, fake)

	got, err := p.Generate(context.Background(), "question", llm.GenerateOptions{MaxTokens: 128})
	require.NoError(t, err)
	assert.Equal(t, "answer", got)

	require.NotNil(t, fake.gotInput)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20240620-v1:0", *fake.gotInput.ModelId)

	var req claudeRequest
	require.NoError(t, json.Unmarshal(fake.gotInput.Body, &req))
	assert.Equal(t, "bedrock-2023-05-31", req.AnthropicVersion)
	assert.Equal(t, 128, req.MaxTokens)
	assert.Equal(t, "question", req.Messages[0].Content)
}

func TestGenerateInvokeFailure(t *testing.T) {
	fake := &fakeRuntime{err: errors.New("throttled")}
	p := NewWithClient(Config{}, fake)
	p.retry = llm.RetryConfig{MaxRetries: 0, RetryIf: llm.DefaultRetryable}

	_, err := p.Generate(context.Background(), "question", llm.GenerateOptions{})
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, llm.ErrCodeUnavailable, perr.Code)
}

func TestUnconfiguredWithoutClient(t *testing.T) {
	p := newUnconnected(Config{})
	assert.False(t, p.IsConfigured())
	assert.Equal(t, "bedrock", p.Name())
	assert.Equal(t, DefaultModel, p.Model())
	assert.Equal(t, DefaultRegion, p.region)
}
