// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessEmptyOptions(t *testing.T) {
	m := NewDefaultRiskModel()

	risk := m.Assess(nil, nil, RiskAppetiteNeutral)
	require.Len(t, risk, 4)
	for category, score := range risk {
		assert.Zero(t, score, category)
	}
}

func TestAssessKeywordRaisesCategory(t *testing.T) {
	m := NewDefaultRiskModel()

	risk := m.Assess([]Option{
		{Title: "debt-funded acquisition", Description: "raise capital via new debt", RiskLevel: RiskHigh},
	}, nil, RiskAppetiteNeutral)

	// Financial keywords hit with full weight; reputational only at floor.
	assert.InDelta(t, 0.7, risk[RiskCategoryFinancial], 1e-9)
	assert.InDelta(t, 0.21, risk[RiskCategoryReputational], 1e-9)
}

func TestAssessAppetiteScaling(t *testing.T) {
	m := NewDefaultRiskModel()
	opts := []Option{{Title: "capital raise", Description: "new capital", RiskLevel: RiskMedium}}

	neutral := m.Assess(opts, nil, RiskAppetiteNeutral)
	averse := m.Assess(opts, nil, RiskAppetiteAverse)
	seeking := m.Assess(opts, nil, RiskAppetiteSeeking)

	assert.Greater(t, averse[RiskCategoryFinancial], neutral[RiskCategoryFinancial])
	assert.Less(t, seeking[RiskCategoryFinancial], neutral[RiskCategoryFinancial])
}

func TestAssessViolationsRaiseEveryCategory(t *testing.T) {
	m := NewDefaultRiskModel()

	clean := m.Assess([]Option{{Title: "plain", RiskLevel: RiskLow}}, nil, RiskAppetiteNeutral)
	marked := m.Assess([]Option{{Title: "plain", RiskLevel: RiskLow, Violations: []string{"x", "y"}}}, nil, RiskAppetiteNeutral)

	for category := range clean {
		assert.Greater(t, marked[category], clean[category], category)
	}
}

func TestAssessClampsToOne(t *testing.T) {
	m := NewDefaultRiskModel()

	risk := m.Assess([]Option{
		{Title: "capital debt budget", Description: "cash investment", RiskLevel: RiskHigh,
			Violations: []string{"a", "b", "c", "d"}},
	}, nil, RiskAppetiteAverse)
	assert.Equal(t, 1.0, risk[RiskCategoryFinancial])
}
