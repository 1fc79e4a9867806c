// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package safety guards the advisory pipeline: a loop guard that stops
// runaway iteration and a content filter that blocks policy-violating
// content and redacts PII before a proposal leaves the system.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Category classifies a filter result.
type Category string

const (
	// CategorySafe means no blocking or borderline pattern matched.
	CategorySafe Category = "safe"

	// CategoryBorderline means warning-level patterns matched.
	CategoryBorderline Category = "borderline"

	// CategoryBlocked means a blocking pattern matched.
	CategoryBlocked Category = "blocked"
)

// Result is the outcome of a content filter pass.
type Result struct {
	Category         Category `json:"category"`
	Blocked          bool     `json:"blocked"`
	Reasons          []string `json:"reasons,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	SanitizedContent string   `json:"sanitized_content"`
}

// RedLine is a configured ethical red line. Pattern is optional; when
// empty, a builtin pattern for the named category is used.
type RedLine struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// blockedPattern is a hardcoded always-blocking category.
type blockedPattern struct {
	category string
	pattern  *regexp.Regexp
}

// Hardcoded blocking categories. These apply regardless of the configured
// decision policy.
var blockedPatterns = []blockedPattern{
	{"financial_fraud", regexp.MustCompile(`(?i)\b(launder(ing)?\s+money|money\s+launder|falsify(ing)?\s+(accounts|records|books)|embezzle|ponzi|pyramid\s+scheme|cook(ing)?\s+the\s+books)\b`)},
	{"market_manipulation", regexp.MustCompile(`(?i)\b(insider\s+trading|pump\s+and\s+dump|front[\s-]?running|spoofing\s+orders|manipulat\w*\s+(the\s+)?(market|stock|price))\b`)},
	{"pii_leakage", regexp.MustCompile(`(?i)\b(sell(ing)?\s+(customer|user|client)\s+data|leak(ing)?\s+(personal|customer|user)\s+(data|information)|share\s+pii)\b`)},
	{"discrimination", regexp.MustCompile(`(?i)\b(discriminat\w+\s+(against|based\s+on)|exclude\s+(candidates|applicants|employees)\s+(by|based\s+on)\s+(race|gender|age|religion|nationality))\b`)},
}

// Builtin red-line detection patterns keyed by policy name. A decision
// policy references these by name; unknown names need an explicit pattern.
var builtinRedLines = map[string]*regexp.Regexp{
	"layoffs_without_review":  regexp.MustCompile(`(?i)\b(mass\s+layoffs?|terminate\s+\d+%|fire\s+(everyone|all\s+staff)|workforce\s+reduction\s+without)\b`),
	"regulatory_evasion":      regexp.MustCompile(`(?i)\b(evade\s+regulat\w+|circumvent\s+(the\s+)?(law|rules|compliance)|avoid\s+(reporting|disclosure)\s+requirements|hide\s+from\s+(the\s+)?regulator)\b`),
	"environmental_harm":      regexp.MustCompile(`(?i)\b(dump(ing)?\s+(waste|chemicals)|bypass\s+environmental|ignore\s+emissions?\s+(limits|standards))\b`),
	"worker_exploitation":     regexp.MustCompile(`(?i)\b(unpaid\s+overtime|below\s+minimum\s+wage|child\s+labou?r|sweatshop)\b`),
	"deceptive_marketing":     regexp.MustCompile(`(?i)\b(false\s+advertis\w+|mislead(ing)?\s+(customers|consumers)|fake\s+reviews?|bait\s+and\s+switch)\b`),
}

// borderlinePattern is a warning-only category.
type borderlinePattern struct {
	category string
	pattern  *regexp.Regexp
}

var borderlinePatterns = []borderlinePattern{
	{"aggressive_pricing", regexp.MustCompile(`(?i)\b(predatory\s+pricing|undercut\s+aggressively|price\s+war|dumping\s+prices)\b`)},
	{"confidentiality", regexp.MustCompile(`(?i)\b(confidential|non[\s-]?disclosure|nda|trade\s+secret)\b`)},
	{"lobbying", regexp.MustCompile(`(?i)\b(lobby(ing)?|political\s+donation|influence\s+(regulators|legislation))\b`)},
	{"competitive_intelligence", regexp.MustCompile(`(?i)\b(competitor'?s?\s+(internal|confidential|proprietary)|poach(ing)?\s+(employees|staff)|reverse[\s-]?engineer)\b`)},
}

// PII redaction patterns, in application order.
var piiRedactions = []struct {
	token   string
	pattern *regexp.Regexp
}{
	{"[REDACTED_CARD]", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{"[REDACTED_SSN]", regexp.MustCompile(`\b\d{3}[- ]?\d{2}[- ]?\d{4}\b`)},
	{"[REDACTED_EMAIL]", regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)},
}

// businessVocabulary is the recognized token set for the topic-relevance
// heuristic.
var businessVocabulary = map[string]bool{
	"market": true, "revenue": true, "cost": true, "costs": true, "strategy": true,
	"strategic": true, "growth": true, "customer": true, "customers": true,
	"product": true, "products": true, "pricing": true, "price": true,
	"competition": true, "competitor": true, "competitors": true, "expansion": true,
	"investment": true, "invest": true, "budget": true, "profit": true,
	"margin": true, "margins": true, "sales": true, "marketing": true,
	"launch": true, "acquisition": true, "merger": true, "partnership": true,
	"risk": true, "risks": true, "hiring": true, "team": true, "operations": true,
	"supply": true, "demand": true, "retention": true, "churn": true,
	"segment": true, "brand": true, "quarter": true, "forecast": true,
	"capital": true, "funding": true, "valuation": true, "roi": true,
	"kpi": true, "pipeline": true, "enterprise": true, "saas": true,
	"business": true, "company": true, "plan": true, "decision": true,
}

const (
	// relevanceMinTokens is the input length below which the topic check
	// is skipped.
	relevanceMinTokens = 20

	// relevanceThreshold is the minimum business-vocabulary ratio.
	relevanceThreshold = 0.02
)

// ContentFilter runs the fixed-order policy checks over pipeline content.
type ContentFilter struct {
	redLines []redLineMatcher
}

type redLineMatcher struct {
	name    string
	pattern *regexp.Regexp
}

// NewContentFilter builds a filter for the configured red lines. A red
// line naming an unknown builtin with no explicit pattern is an error so
// that misconfigured policies fail at startup rather than silently not
// filtering.
func NewContentFilter(redLines []RedLine) (*ContentFilter, error) {
	f := &ContentFilter{}
	for _, rl := range redLines {
		if rl.Pattern != "" {
			re, err := regexp.Compile(rl.Pattern)
			if err != nil {
				return nil, fmt.Errorf("red line %q: invalid pattern: %w", rl.Name, err)
			}
			f.redLines = append(f.redLines, redLineMatcher{name: rl.Name, pattern: re})
			continue
		}
		re, ok := builtinRedLines[rl.Name]
		if !ok {
			return nil, fmt.Errorf("red line %q has no builtin pattern and none was configured", rl.Name)
		}
		f.redLines = append(f.redLines, redLineMatcher{name: rl.Name, pattern: re})
	}
	return f, nil
}

// MatchesRedLine reports whether content trips any configured red line,
// returning the first matching red line's name. Used by the pipeline to
// drop individual options.
func (f *ContentFilter) MatchesRedLine(content string) (string, bool) {
	for _, rl := range f.redLines {
		if rl.pattern.MatchString(content) {
			return rl.name, true
		}
	}
	return "", false
}

// Check runs the fixed-order checks: blocked patterns, red lines,
// borderline patterns, topic relevance, then PII sanitization. Blocking
// checks short-circuit; warnings accumulate.
func (f *ContentFilter) Check(content string) Result {
	result := Result{Category: CategorySafe, SanitizedContent: content}

	for _, bp := range blockedPatterns {
		if bp.pattern.MatchString(content) {
			result.Category = CategoryBlocked
			result.Blocked = true
			result.Reasons = append(result.Reasons, "blocked pattern: "+bp.category)
			return result
		}
	}

	if name, ok := f.MatchesRedLine(content); ok {
		result.Category = CategoryBlocked
		result.Blocked = true
		result.Reasons = append(result.Reasons, "ethical red line: "+name)
		return result
	}

	for _, bp := range borderlinePatterns {
		if bp.pattern.MatchString(content) {
			result.Warnings = append(result.Warnings, "borderline pattern: "+bp.category)
		}
	}

	if warning, ok := topicRelevanceWarning(content); ok {
		result.Warnings = append(result.Warnings, warning)
	}

	if len(result.Warnings) > 0 {
		result.Category = CategoryBorderline
	}

	result.SanitizedContent = Sanitize(content)
	return result
}

// topicRelevanceWarning flags inputs with almost no business vocabulary.
func topicRelevanceWarning(content string) (string, bool) {
	tokens := strings.Fields(strings.ToLower(content))
	if len(tokens) <= relevanceMinTokens {
		return "", false
	}

	recognized := 0
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,;:!?()\"'")
		if businessVocabulary[tok] {
			recognized++
		}
	}

	ratio := float64(recognized) / float64(len(tokens))
	if ratio < relevanceThreshold {
		return fmt.Sprintf("low topic relevance: %.1f%% business vocabulary", ratio*100), true
	}
	return "", false
}

// Sanitize redacts PII patterns via replacement tokens. Card redaction
// runs before SSN so a 16-digit number is not partially matched as an SSN.
func Sanitize(content string) string {
	out := content
	for _, r := range piiRedactions {
		out = r.pattern.ReplaceAllString(out, r.token)
	}
	return out
}
