// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFilter(t *testing.T, redLines ...RedLine) *ContentFilter {
	t.Helper()
	f, err := NewContentFilter(redLines)
	require.NoError(t, err)
	return f
}

func TestBlockedCategoriesShortCircuit(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"financial fraud", "we could be laundering money through the subsidiary", "financial_fraud"},
		{"market manipulation", "consider insider trading ahead of the announcement", "market_manipulation"},
		{"pii leakage", "selling customer data to brokers would fund this", "pii_leakage"},
		{"discrimination", "exclude candidates based on age to cut insurance costs", "discrimination"},
	}

	f := newFilter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(tt.content)
			assert.True(t, result.Blocked)
			assert.Equal(t, CategoryBlocked, result.Category)
			require.Len(t, result.Reasons, 1)
			assert.Contains(t, result.Reasons[0], tt.reason)
		})
	}
}

func TestConfiguredRedLineBlocks(t *testing.T) {
	f := newFilter(t, RedLine{Name: "regulatory_evasion"})

	result := f.Check("the fastest path is to circumvent the law on disclosure")
	assert.True(t, result.Blocked)
	assert.Contains(t, result.Reasons[0], "regulatory_evasion")
}

func TestCustomRedLinePattern(t *testing.T) {
	f := newFilter(t, RedLine{Name: "no_crypto", Pattern: `(?i)\bcryptocurrency\b`})

	result := f.Check("accept cryptocurrency payments")
	assert.True(t, result.Blocked)
	assert.Contains(t, result.Reasons[0], "no_crypto")
}

func TestUnknownRedLineWithoutPatternFails(t *testing.T) {
	_, err := NewContentFilter([]RedLine{{Name: "nonexistent_category"}})
	assert.Error(t, err)
}

func TestInvalidRedLinePatternFails(t *testing.T) {
	_, err := NewContentFilter([]RedLine{{Name: "bad", Pattern: "("}})
	assert.Error(t, err)
}

func TestBorderlinePatternsWarnOnly(t *testing.T) {
	f := newFilter(t)

	result := f.Check("respond with predatory pricing and ramp up lobbying in Brussels")
	assert.False(t, result.Blocked)
	assert.Equal(t, CategoryBorderline, result.Category)
	assert.Len(t, result.Warnings, 2)
}

func TestTopicRelevanceWarning(t *testing.T) {
	f := newFilter(t)

	// Long input with no business vocabulary at all.
	offTopic := strings.Repeat("the quick brown fox jumps over a lazy dog again and ", 3)
	result := f.Check(offTopic)
	assert.False(t, result.Blocked)
	assert.Equal(t, CategoryBorderline, result.Category)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "low topic relevance")
}

func TestTopicRelevanceSkippedForShortInput(t *testing.T) {
	f := newFilter(t)

	result := f.Check("hello world")
	assert.Empty(t, result.Warnings)
	assert.Equal(t, CategorySafe, result.Category)
}

func TestTopicRelevanceSatisfiedByBusinessVocabulary(t *testing.T) {
	f := newFilter(t)

	content := "should we expand into the european market given our current revenue growth " +
		"and the pricing pressure from new competitors entering the segment this quarter"
	result := f.Check(content)
	assert.Equal(t, CategorySafe, result.Category)
}

func TestSanitizeRedactsPII(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SSN 123-45-6789 on file", "SSN [REDACTED_SSN] on file"},
		{"card 4111 1111 1111 1111 works", "card [REDACTED_CARD] works"},
		{"mail ceo@example.com today", "mail [REDACTED_EMAIL] today"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in))
	}
}

func TestCheckSanitizesNonBlockedContent(t *testing.T) {
	f := newFilter(t)

	result := f.Check("contact jane@corp.example for the market analysis")
	assert.False(t, result.Blocked)
	assert.Contains(t, result.SanitizedContent, "[REDACTED_EMAIL]")
	assert.NotContains(t, result.SanitizedContent, "jane@corp.example")
}

func TestMatchesRedLine(t *testing.T) {
	f := newFilter(t, RedLine{Name: "worker_exploitation"})

	name, ok := f.MatchesRedLine("run the plant on unpaid overtime")
	assert.True(t, ok)
	assert.Equal(t, "worker_exploitation", name)

	_, ok = f.MatchesRedLine("open a new distribution center")
	assert.False(t, ok)
}
