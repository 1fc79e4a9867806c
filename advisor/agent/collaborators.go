// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"

	"strategos/core/advisor/memory"
	"strategos/core/advisor/rag"
)

// GenerateInput is everything an option generator may draw on.
type GenerateInput struct {
	Query       string
	Memory      []memory.Snippet
	Documents   []rag.Document
	Constraints map[string]string
	Policy      DecisionPolicy
}

// OptionGenerator produces candidate options for a query. The default
// implementation calls the provider router; tests substitute fakes.
type OptionGenerator interface {
	Generate(ctx context.Context, input GenerateInput) ([]Option, error)
}

// EvaluateInput carries what deterministic evaluation needs.
type EvaluateInput struct {
	Constraints map[string]string
	Policy      DecisionPolicy
}

// Evaluator scores options deterministically. No model call happens
// here; the same inputs must always yield the same scores.
type Evaluator interface {
	Evaluate(options []Option, input EvaluateInput) []Evaluation
}

// RiskModel produces a risk score per category in [0,1].
type RiskModel interface {
	Assess(options []Option, evaluations []Evaluation, appetite RiskAppetite) map[string]float64
}

// Formatter optionally overrides default proposal assembly.
type Formatter interface {
	Format(wc *WorkingContext) *Proposal
}
