// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategos/core/advisor/llm"
	"strategos/core/advisor/memory"
	"strategos/core/advisor/rag"
)

type fakeStructuredGenerator struct {
	payload    string
	err        error
	lastPrompt string
	lastOpts   llm.GenerateOptions
}

func (f *fakeStructuredGenerator) GenerateStructured(_ context.Context, prompt string, v any, opts llm.GenerateOptions) (*llm.GenerateResult, error) {
	f.lastPrompt = prompt
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	if err := json.Unmarshal([]byte(f.payload), v); err != nil {
		return nil, err
	}
	return &llm.GenerateResult{Text: f.payload, Provider: "fake"}, nil
}

func TestRouterOptionGeneratorParsesOptions(t *testing.T) {
	fake := &fakeStructuredGenerator{payload: `[
		{"title": "expand", "description": "enter the market", "risk_level": "low"},
		{"title": "wait", "description": "hold position", "risk_level": "medium", "violations": ["deceptive_marketing"]}
	]`}
	g := NewRouterOptionGenerator(fake)

	options, err := g.Generate(context.Background(), GenerateInput{Query: "should we expand"})
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "expand", options[0].Title)
	assert.Equal(t, RiskMedium, options[1].RiskLevel)
	assert.Equal(t, []string{"deceptive_marketing"}, options[1].Violations)

	assert.Equal(t, llm.TaskTypeOptions, fake.lastOpts.TaskType)
	assert.True(t, fake.lastOpts.ExpectJSON)
}

func TestRouterOptionGeneratorPromptIncludesContext(t *testing.T) {
	fake := &fakeStructuredGenerator{payload: `[]`}
	g := NewRouterOptionGenerator(fake)

	_, err := g.Generate(context.Background(), GenerateInput{
		Query:       "should we expand",
		Memory:      []memory.Snippet{{Content: "prior nordic decision"}},
		Documents:   []rag.Document{{Content: "entry playbook"}},
		Constraints: map[string]string{"budget": "2M", "area": "nordics"},
	})
	require.NoError(t, err)

	assert.Contains(t, fake.lastPrompt, "should we expand")
	assert.Contains(t, fake.lastPrompt, "prior nordic decision")
	assert.Contains(t, fake.lastPrompt, "entry playbook")
	// Constraints render in key order.
	assert.Contains(t, fake.lastPrompt, "- area: nordics\n- budget: 2M")
}

func TestRouterOptionGeneratorPropagatesError(t *testing.T) {
	g := NewRouterOptionGenerator(&fakeStructuredGenerator{err: errors.New("exhausted")})

	_, err := g.Generate(context.Background(), GenerateInput{Query: "q"})
	assert.Error(t, err)
}
