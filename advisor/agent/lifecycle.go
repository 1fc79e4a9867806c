// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"strategos/core/advisor/audit"
	"strategos/core/advisor/memory"
	"strategos/core/advisor/rag"
	"strategos/core/advisor/safety"
	"strategos/core/shared/logger"
)

// Defaults applied when the policy leaves fields zero.
const (
	defaultMaxIterations       = 10
	defaultConfidenceThreshold = 0.7
	defaultMinQueryTokens      = 3

	// riskApprovalCeiling gates proposals on any single risk category.
	riskApprovalCeiling = 0.7
)

// Deps wires the lifecycle's collaborators. Memory, Retriever,
// Generator, and Trail are required; the rest default.
type Deps struct {
	Memory    memory.Store
	Retriever rag.Retriever
	Generator OptionGenerator
	Evaluator Evaluator
	RiskModel RiskModel
	Formatter Formatter
	Trail     audit.Trail
	Logger    *logger.Logger

	Policy        DecisionPolicy
	ContextPolicy ContextPolicy
}

// Lifecycle executes the five-stage pipeline for one query at a time.
// It holds no per-query state; concurrent Process calls each get their
// own WorkingContext.
type Lifecycle struct {
	deps  Deps
	guard *safety.Guard
	now   func() time.Time
}

// NewLifecycle validates deps, applies defaults, and compiles the
// safety guard from the decision policy.
func NewLifecycle(deps Deps) (*Lifecycle, error) {
	if deps.Memory == nil || deps.Retriever == nil || deps.Generator == nil || deps.Trail == nil {
		return nil, fmt.Errorf("lifecycle requires memory, retriever, generator, and audit trail")
	}
	if deps.Evaluator == nil {
		deps.Evaluator = NewDefaultEvaluator()
	}
	if deps.RiskModel == nil {
		deps.RiskModel = NewDefaultRiskModel()
	}
	if deps.Logger == nil {
		deps.Logger = logger.New("agent-lifecycle")
	}
	if deps.Policy.MaxIterations <= 0 {
		deps.Policy.MaxIterations = defaultMaxIterations
	}
	if deps.Policy.ConfidenceThreshold <= 0 {
		deps.Policy.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if deps.Policy.RiskAppetite == "" {
		deps.Policy.RiskAppetite = RiskAppetiteNeutral
	}
	if deps.ContextPolicy.MinQueryTokens <= 0 {
		deps.ContextPolicy.MinQueryTokens = defaultMinQueryTokens
	}
	if deps.ContextPolicy.OnEmptyRetrieval == "" {
		deps.ContextPolicy.OnEmptyRetrieval = OnEmptyFlag
	}

	guard, err := safety.NewGuard(deps.Policy.MaxIterations, deps.Policy.RedLines)
	if err != nil {
		return nil, fmt.Errorf("compiling safety guard: %w", err)
	}
	return &Lifecycle{deps: deps, guard: guard, now: time.Now}, nil
}

// Process runs a query through all five stages. Fatal stage errors move
// the context to ERROR, are recorded on the audit trail, and are
// returned to the caller. The REFLECT stage's own persistence failure
// is non-fatal.
func (l *Lifecycle) Process(ctx context.Context, query string, constraints map[string]string) (*Outcome, error) {
	wc := &WorkingContext{
		ID:          uuid.NewString(),
		Query:       query,
		Constraints: constraints,
		Stage:       StagePerceive,
		StartedAt:   l.now().UTC(),
	}

	l.record(ctx, audit.Event{
		ContextID: wc.ID,
		Type:      audit.EventQueryReceived,
		Data:      map[string]interface{}{"query_tokens": len(strings.Fields(query))},
	})
	l.deps.Logger.Info(wc.ID, "query received", map[string]interface{}{"stage": string(wc.Stage)})

	stages := []struct {
		stage Stage
		run   func(context.Context, *WorkingContext) error
	}{
		{StagePerceive, l.perceive},
		{StageThink, l.think},
		{StagePlan, l.plan},
		{StagePropose, l.propose},
		{StageReflect, l.reflect},
	}
	for _, s := range stages {
		wc.Stage = s.stage
		if err := s.run(ctx, wc); err != nil {
			return nil, l.fail(ctx, wc, err)
		}
	}

	wc.Stage = StageComplete
	return &Outcome{ID: wc.ID, Proposal: wc.Proposal}, nil
}

// fail moves the context to ERROR, records the failure, and returns the
// original error.
func (l *Lifecycle) fail(ctx context.Context, wc *WorkingContext, err error) error {
	failedStage := wc.Stage
	wc.Stage = StageError
	wc.Errors = append(wc.Errors, err.Error())

	eventType := audit.EventStageError
	var safetyErr *SafetyViolationError
	if errors.As(err, &safetyErr) {
		eventType = audit.EventSafetyBlocked
	}
	l.record(ctx, audit.Event{
		ContextID: wc.ID,
		Type:      eventType,
		Data: map[string]interface{}{
			"stage": string(failedStage),
			"error": err.Error(),
		},
	})
	l.deps.Logger.ErrorWith(wc.ID, "stage failed", err, map[string]interface{}{
		"stage": string(failedStage),
	})
	return err
}

// perceive gathers memory and reference context under the context
// policy's budgets and validates the query is substantive.
func (l *Lifecycle) perceive(ctx context.Context, wc *WorkingContext) error {
	cp := l.deps.ContextPolicy

	if len(strings.Fields(wc.Query)) < cp.MinQueryTokens {
		if cp.OnEmptyRetrieval == OnEmptyFail {
			return &InsufficientDataError{Reason: "query below minimum length"}
		}
		wc.flag(flagShortQuery)
	}

	snippets, err := l.deps.Memory.Retrieve(ctx, wc.Query, memory.RetrieveOptions{
		Limit:        cp.MemoryLimit,
		MinRelevance: cp.MinRelevance,
	})
	if err != nil {
		return fmt.Errorf("memory retrieval: %w", err)
	}
	wc.MemorySnippets = snippets

	docs, err := l.deps.Retriever.Retrieve(ctx, wc.Query, rag.QueryOptions{
		MaxTokens:     cp.MaxTokens,
		MinSimilarity: cp.MinSimilarity,
		MaxDocuments:  cp.MaxDocuments,
	})
	if err != nil {
		return fmt.Errorf("document retrieval: %w", err)
	}
	wc.Documents = docs

	if len(snippets) == 0 && len(docs) == 0 && cp.OnEmptyRetrieval == OnEmptyFail {
		return &InsufficientDataError{Reason: "no memory or reference context retrieved"}
	}
	if len(snippets) == 0 {
		wc.flag(flagNoMemory)
	}
	if len(docs) == 0 {
		wc.flag(flagNoDocuments)
	}
	return nil
}

// think generates candidate options and filters red-line violations.
// Losing every option to filtering degrades confidence instead of
// failing the query.
func (l *Lifecycle) think(ctx context.Context, wc *WorkingContext) error {
	wc.Iterations++
	if wc.Iterations > l.deps.Policy.MaxIterations {
		return &LoopDetectedError{Iterations: wc.Iterations, Max: l.deps.Policy.MaxIterations}
	}

	options, err := l.deps.Generator.Generate(ctx, GenerateInput{
		Query:       wc.Query,
		Memory:      wc.MemorySnippets,
		Documents:   wc.Documents,
		Constraints: wc.Constraints,
		Policy:      l.deps.Policy,
	})
	if err != nil {
		return err
	}

	var survivors []Option
	for _, opt := range options {
		if l.violatesRedLine(opt) {
			l.deps.Logger.Warn(wc.ID, "option filtered by red line", map[string]interface{}{
				"option": opt.Title,
			})
			continue
		}
		survivors = append(survivors, opt)
	}
	if len(options) > 0 && len(survivors) == 0 {
		wc.flag(flagOptionsFiltered)
	}
	wc.Options = survivors
	return nil
}

// violatesRedLine checks an option's text and its explicit violation
// markers against the configured red lines.
func (l *Lifecycle) violatesRedLine(opt Option) bool {
	if _, ok := l.guard.Filter().MatchesRedLine(opt.Title + " " + opt.Description); ok {
		return true
	}
	for _, marker := range opt.Violations {
		for _, rl := range l.deps.Policy.RedLines {
			if strings.EqualFold(marker, rl.Name) {
				return true
			}
		}
	}
	return false
}

// plan runs deterministic evaluation, the risk model, and the safety
// guard. A blocked guard result is fatal.
func (l *Lifecycle) plan(_ context.Context, wc *WorkingContext) error {
	wc.Evaluations = l.deps.Evaluator.Evaluate(wc.Options, EvaluateInput{
		Constraints: wc.Constraints,
		Policy:      l.deps.Policy,
	})
	wc.Risk = l.deps.RiskModel.Assess(wc.Options, wc.Evaluations, l.deps.Policy.RiskAppetite)

	result := l.guard.Evaluate(wc.Iterations, accumulatedContent(wc))
	if result.Blocked {
		return &SafetyViolationError{Reasons: result.Reasons}
	}
	return nil
}

// accumulatedContent is what the guard inspects: the query plus every
// surviving option's text.
func accumulatedContent(wc *WorkingContext) string {
	var b strings.Builder
	b.WriteString(wc.Query)
	for _, opt := range wc.Options {
		b.WriteString("\n")
		b.WriteString(opt.Title)
		b.WriteString(": ")
		b.WriteString(opt.Description)
	}
	return b.String()
}

// propose ranks options and assembles the proposal. Zero surviving
// options still yields a proposal, with no recommendation.
func (l *Lifecycle) propose(_ context.Context, wc *WorkingContext) error {
	if l.deps.Formatter != nil {
		wc.Proposal = l.deps.Formatter.Format(wc)
		return nil
	}

	evals := append([]Evaluation(nil), wc.Evaluations...)
	sort.SliceStable(evals, func(i, j int) bool {
		return evals[i].Score > evals[j].Score
	})

	confidence := l.confidence(wc)
	proposal := &Proposal{
		RiskAssessment: wc.Risk,
		Confidence:     confidence,
		MissingData:    append([]string(nil), wc.MissingData...),
		CreatedAt:      l.now().UTC(),
	}
	if len(evals) > 0 {
		top := evals[0].Option
		proposal.Recommendation = &top
		for _, e := range evals[1:] {
			proposal.Alternatives = append(proposal.Alternatives, e.Option)
		}
	}

	switch {
	case confidence < l.deps.Policy.ConfidenceThreshold:
		proposal.RequiresHumanApproval = true
		proposal.ApprovalReason = fmt.Sprintf("confidence %.2f below threshold %.2f",
			confidence, l.deps.Policy.ConfidenceThreshold)
	default:
		for _, category := range sortedRiskCategories(wc.Risk) {
			if wc.Risk[category] > riskApprovalCeiling {
				proposal.RequiresHumanApproval = true
				proposal.ApprovalReason = fmt.Sprintf("%s risk %.2f exceeds ceiling %.2f",
					category, wc.Risk[category], riskApprovalCeiling)
				break
			}
		}
	}

	wc.Proposal = proposal
	return nil
}

// confidence starts at 1.0 and degrades for missing data, empty
// retrieval, and thin option sets. Clamped to [0,1].
func (l *Lifecycle) confidence(wc *WorkingContext) float64 {
	c := 1.0
	c -= 0.1 * float64(len(wc.MissingData))
	if len(wc.MemorySnippets) == 0 && len(wc.Documents) == 0 {
		c -= 0.2
	}
	if len(wc.Options) < 2 {
		c -= 0.15
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

func sortedRiskCategories(risk map[string]float64) []string {
	categories := make([]string, 0, len(risk))
	for c := range risk {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// reflect persists the interaction to memory best-effort and emits the
// proposal audit event. The proposal is already final; nothing here may
// fail the query.
func (l *Lifecycle) reflect(ctx context.Context, wc *WorkingContext) error {
	entry := memory.Entry{Content: reflectionContent(wc)}
	if _, err := l.deps.Memory.Store(ctx, entry); err != nil {
		l.deps.Logger.ErrorWith(wc.ID, "memory store failed", err, nil)
	}

	data := map[string]interface{}{
		"confidence":         wc.Proposal.Confidence,
		"requires_approval":  wc.Proposal.RequiresHumanApproval,
		"surviving_options":  len(wc.Options),
		"missing_data_flags": len(wc.MissingData),
	}
	if wc.Proposal.Recommendation != nil {
		data["recommendation"] = wc.Proposal.Recommendation.Title
	}
	l.record(ctx, audit.Event{
		ContextID: wc.ID,
		Type:      audit.EventProposalCreated,
		Data:      data,
	})
	return nil
}

// reflectionContent summarizes a completed query for future retrieval.
func reflectionContent(wc *WorkingContext) string {
	if wc.Proposal.Recommendation == nil {
		return fmt.Sprintf("query %q produced no actionable recommendation", wc.Query)
	}
	return fmt.Sprintf("query %q recommended %q (confidence %.2f)",
		wc.Query, wc.Proposal.Recommendation.Title, wc.Proposal.Confidence)
}

// record writes to the audit trail best-effort.
func (l *Lifecycle) record(ctx context.Context, event audit.Event) {
	if err := l.deps.Trail.Record(ctx, event); err != nil {
		l.deps.Logger.ErrorWith(event.ContextID, "audit record failed", err, nil)
	}
}
