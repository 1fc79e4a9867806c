// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateOrdersByDeclaredRisk(t *testing.T) {
	e := NewDefaultEvaluator()

	evals := e.Evaluate([]Option{
		{Title: "high", RiskLevel: RiskHigh},
		{Title: "medium", RiskLevel: RiskMedium},
		{Title: "low", RiskLevel: RiskLow},
	}, EvaluateInput{})

	require.Len(t, evals, 3)
	assert.InDelta(t, 0.3, evals[0].Score, 1e-9)
	assert.InDelta(t, 0.5, evals[1].Score, 1e-9)
	assert.InDelta(t, 0.7, evals[2].Score, 1e-9)
}

func TestEvaluateRewardsConstraintCoverage(t *testing.T) {
	e := NewDefaultEvaluator()

	evals := e.Evaluate([]Option{
		{Title: "nordic entry", Description: "expand within the 2M budget", RiskLevel: RiskMedium},
		{Title: "other", Description: "unrelated plan", RiskLevel: RiskMedium},
	}, EvaluateInput{Constraints: map[string]string{"budget": "2M budget"}})

	assert.Greater(t, evals[0].Score, evals[1].Score)
}

func TestEvaluatePenalizesViolations(t *testing.T) {
	e := NewDefaultEvaluator()

	evals := e.Evaluate([]Option{
		{Title: "clean", RiskLevel: RiskMedium},
		{Title: "marked", RiskLevel: RiskMedium, Violations: []string{"a", "b"}},
	}, EvaluateInput{})

	assert.InDelta(t, 0.5, evals[0].Score, 1e-9)
	assert.InDelta(t, 0.2, evals[1].Score, 1e-9)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := NewDefaultEvaluator()
	opts := []Option{{Title: "a", Description: "expand sales", RiskLevel: RiskLow}}
	in := EvaluateInput{Constraints: map[string]string{"focus": "sales"}}

	first := e.Evaluate(opts, in)
	second := e.Evaluate(opts, in)
	assert.Equal(t, first, second)
}

func TestEvaluateClampsToUnitInterval(t *testing.T) {
	e := NewDefaultEvaluator()

	evals := e.Evaluate([]Option{
		{Title: "terrible", RiskLevel: RiskHigh, Violations: []string{"a", "b", "c"}},
	}, EvaluateInput{})
	assert.Equal(t, 0.0, evals[0].Score)
}
