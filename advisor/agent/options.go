// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"strategos/core/advisor/llm"
)

// structuredGenerator is the slice of the router the generator needs.
type structuredGenerator interface {
	GenerateStructured(ctx context.Context, prompt string, v any, opts llm.GenerateOptions) (*llm.GenerateResult, error)
}

// RouterOptionGenerator produces options through the provider router
// with a structured-JSON prompt.
type RouterOptionGenerator struct {
	router structuredGenerator
}

var _ OptionGenerator = (*RouterOptionGenerator)(nil)

// NewRouterOptionGenerator wraps a router.
func NewRouterOptionGenerator(router structuredGenerator) *RouterOptionGenerator {
	return &RouterOptionGenerator{router: router}
}

const optionSystemPrompt = `You are a strategic decision advisor. Given a business query and its
context, produce 3 to 5 candidate options. Respond with a JSON array of
objects with fields: title, description, cost_estimate, time_estimate,
risk_level (low|medium|high), violations (array of policy concerns, empty
when none).`

// Generate prompts the router and parses the returned option list.
func (g *RouterOptionGenerator) Generate(ctx context.Context, input GenerateInput) ([]Option, error) {
	var options []Option
	_, err := g.router.GenerateStructured(ctx, buildOptionPrompt(input), &options, llm.GenerateOptions{
		TaskType:     llm.TaskTypeOptions,
		ExpectJSON:   true,
		SystemPrompt: optionSystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("generating options: %w", err)
	}
	return options, nil
}

// buildOptionPrompt assembles the query with its retrieved context and
// constraints.
func buildOptionPrompt(input GenerateInput) string {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(input.Query)
	b.WriteString("\n")

	if len(input.Memory) > 0 {
		b.WriteString("\nPrior decisions:\n")
		for _, s := range input.Memory {
			b.WriteString("- ")
			b.WriteString(s.Content)
			b.WriteString("\n")
		}
	}
	if len(input.Documents) > 0 {
		b.WriteString("\nReference documents:\n")
		for _, d := range input.Documents {
			b.WriteString("- ")
			b.WriteString(d.Content)
			b.WriteString("\n")
		}
	}
	if len(input.Constraints) > 0 {
		b.WriteString("\nConstraints:\n")
		for _, k := range sortedKeys(input.Constraints) {
			fmt.Fprintf(&b, "- %s: %s\n", k, input.Constraints[k])
		}
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
