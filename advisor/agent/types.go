// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package agent runs the advisory pipeline: a five-stage state machine
// that turns a free-text strategic query into a vetted proposal with
// ranked alternatives, a risk assessment, and a confidence score.
package agent

import (
	"time"

	"strategos/core/advisor/memory"
	"strategos/core/advisor/rag"
	"strategos/core/advisor/safety"
)

// Stage is a pipeline state. Transitions are strictly forward; ERROR is
// reachable from any stage.
type Stage string

const (
	StagePerceive Stage = "PERCEIVE"
	StageThink    Stage = "THINK"
	StagePlan     Stage = "PLAN"
	StagePropose  Stage = "PROPOSE"
	StageReflect  Stage = "REFLECT"
	StageComplete Stage = "COMPLETE"
	StageError    Stage = "ERROR"
)

// RiskLevel is an option's coarse self-declared risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Option is a candidate strategic action. Immutable once generated.
type Option struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CostEstimate string    `json:"cost_estimate,omitempty"`
	TimeEstimate string    `json:"time_estimate,omitempty"`
	RiskLevel    RiskLevel `json:"risk_level"`
	Violations   []string  `json:"violations,omitempty"`
}

// Evaluation is a deterministic score attached to an option.
type Evaluation struct {
	Option Option  `json:"option"`
	Score  float64 `json:"score"`
	Notes  string  `json:"notes,omitempty"`
}

// Proposal is the pipeline's final product. The body is immutable once
// returned from the PROPOSE stage; the approval workflow references it
// by context id only.
type Proposal struct {
	Recommendation        *Option            `json:"recommendation,omitempty"`
	Alternatives          []Option           `json:"alternatives,omitempty"`
	RiskAssessment        map[string]float64 `json:"risk_assessment"`
	Confidence            float64            `json:"confidence"`
	RequiresHumanApproval bool               `json:"requires_human_approval"`
	ApprovalReason        string             `json:"approval_reason,omitempty"`
	MissingData           []string           `json:"missing_data,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
}

// RiskAppetite tunes how aggressively the risk model scores.
type RiskAppetite string

const (
	RiskAppetiteAverse  RiskAppetite = "averse"
	RiskAppetiteNeutral RiskAppetite = "neutral"
	RiskAppetiteSeeking RiskAppetite = "seeking"
)

// DecisionPolicy is the configured policy a deployment runs under.
type DecisionPolicy struct {
	ConfidenceThreshold float64
	RiskAppetite        RiskAppetite
	RedLines            []safety.RedLine
	MaxIterations       int
}

// EmptyRetrievalBehavior selects the PERCEIVE branch on empty context.
type EmptyRetrievalBehavior string

const (
	// OnEmptyFlag records a missing-data flag and continues.
	OnEmptyFlag EmptyRetrievalBehavior = "flag"
	// OnEmptyFail aborts the query with an insufficient-data error.
	OnEmptyFail EmptyRetrievalBehavior = "fail"
)

// ContextPolicy bounds retrieval during PERCEIVE.
type ContextPolicy struct {
	MemoryLimit      int
	MinRelevance     float64
	MaxTokens        int
	MinSimilarity    float64
	MaxDocuments     int
	MinQueryTokens   int
	OnEmptyRetrieval EmptyRetrievalBehavior
}

// WorkingContext is the per-query mutable state threaded through the
// stages. One per Process call; never shared between queries.
type WorkingContext struct {
	ID          string
	Query       string
	Constraints map[string]string

	MemorySnippets []memory.Snippet
	Documents      []rag.Document
	Options        []Option
	Evaluations    []Evaluation
	Risk           map[string]float64

	Iterations  int
	MissingData []string
	Stage       Stage
	Errors      []string
	Proposal    *Proposal

	StartedAt time.Time
}

// flag records a missing-data flag once.
func (c *WorkingContext) flag(name string) {
	for _, f := range c.MissingData {
		if f == name {
			return
		}
	}
	c.MissingData = append(c.MissingData, name)
}

// Missing-data flag names.
const (
	flagNoMemory        = "no_memory_context"
	flagNoDocuments     = "no_reference_documents"
	flagShortQuery      = "query_below_minimum_length"
	flagOptionsFiltered = "all_options_filtered"
)

// Outcome is what Process returns to the API boundary.
type Outcome struct {
	ID       string    `json:"id"`
	Proposal *Proposal `json:"proposal"`
}
