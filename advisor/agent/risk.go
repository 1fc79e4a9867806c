// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package agent

import "strings"

// Risk categories every assessment reports on.
const (
	RiskCategoryFinancial    = "financial"
	RiskCategoryOperational  = "operational"
	RiskCategoryReputational = "reputational"
	RiskCategoryCompliance   = "compliance"
)

// categoryKeywords maps each category to the signals that raise it.
var categoryKeywords = map[string][]string{
	RiskCategoryFinancial:    {"cost", "investment", "capital", "debt", "cash", "budget"},
	RiskCategoryOperational:  {"hiring", "supply", "logistics", "capacity", "migration", "restructur"},
	RiskCategoryReputational: {"brand", "customer", "public", "press", "layoff"},
	RiskCategoryCompliance:   {"regulat", "legal", "license", "tax", "audit", "gdpr"},
}

// appetiteMultiplier scales raw category scores. An averse deployment
// sees higher risk everywhere; a seeking one discounts it.
var appetiteMultiplier = map[RiskAppetite]float64{
	RiskAppetiteAverse:  1.25,
	RiskAppetiteNeutral: 1.0,
	RiskAppetiteSeeking: 0.8,
}

// DefaultRiskModel derives per-category risk from the options' declared
// risk levels, violation markers, and keyword signals. Deterministic.
type DefaultRiskModel struct{}

var _ RiskModel = (*DefaultRiskModel)(nil)

// NewDefaultRiskModel creates the default model.
func NewDefaultRiskModel() *DefaultRiskModel {
	return &DefaultRiskModel{}
}

// declaredRisk maps an option's risk level to a base contribution.
var declaredRisk = map[RiskLevel]float64{
	RiskLow:    0.1,
	RiskMedium: 0.35,
	RiskHigh:   0.7,
}

// Assess scores each category in [0,1]. With no options every category
// reads zero.
func (m *DefaultRiskModel) Assess(options []Option, _ []Evaluation, appetite RiskAppetite) map[string]float64 {
	scores := map[string]float64{
		RiskCategoryFinancial:    0,
		RiskCategoryOperational:  0,
		RiskCategoryReputational: 0,
		RiskCategoryCompliance:   0,
	}
	if len(options) == 0 {
		return scores
	}

	mult, ok := appetiteMultiplier[appetite]
	if !ok {
		mult = appetiteMultiplier[RiskAppetiteNeutral]
	}

	for category, keywords := range categoryKeywords {
		var worst float64
		for _, opt := range options {
			score := declaredRisk[opt.RiskLevel] * keywordWeight(opt, keywords)
			score += float64(len(opt.Violations)) * 0.2
			if score > worst {
				worst = score
			}
		}
		scaled := worst * mult
		if scaled > 1 {
			scaled = 1
		}
		scores[category] = scaled
	}
	return scores
}

// keywordWeight is 1.0 when the option text mentions any category
// keyword, otherwise a floor weight so declared risk is never ignored.
func keywordWeight(opt Option, keywords []string) float64 {
	text := strings.ToLower(opt.Title + " " + opt.Description)
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return 1.0
		}
	}
	return 0.3
}
