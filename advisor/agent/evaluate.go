// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package agent

import "strings"

// DefaultEvaluator scores options without any model call. Scores are a
// pure function of the option and the constraints, so evaluation is
// reproducible across runs.
type DefaultEvaluator struct{}

var _ Evaluator = (*DefaultEvaluator)(nil)

// NewDefaultEvaluator creates the deterministic evaluator.
func NewDefaultEvaluator() *DefaultEvaluator {
	return &DefaultEvaluator{}
}

// riskPenalty maps an option's declared risk to a score adjustment.
var riskPenalty = map[RiskLevel]float64{
	RiskLow:    0.2,
	RiskMedium: 0.0,
	RiskHigh:   -0.2,
}

// Evaluate scores each option in [0,1]. Base 0.5, adjusted for declared
// risk, constraint keyword coverage, and policy-violation markers.
func (e *DefaultEvaluator) Evaluate(options []Option, input EvaluateInput) []Evaluation {
	out := make([]Evaluation, 0, len(options))
	for _, opt := range options {
		score := 0.5
		score += riskPenalty[opt.RiskLevel]
		score += constraintCoverage(opt, input.Constraints) * 0.2
		score -= float64(len(opt.Violations)) * 0.15

		if score > 1 {
			score = 1
		}
		if score < 0 {
			score = 0
		}
		out = append(out, Evaluation{Option: opt, Score: score})
	}
	return out
}

// constraintCoverage is the fraction of constraint values mentioned in
// the option text.
func constraintCoverage(opt Option, constraints map[string]string) float64 {
	if len(constraints) == 0 {
		return 0
	}
	text := strings.ToLower(opt.Title + " " + opt.Description)
	matched := 0
	for _, v := range constraints {
		if v != "" && strings.Contains(text, strings.ToLower(v)) {
			matched++
		}
	}
	return float64(matched) / float64(len(constraints))
}
