// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package safety

import (
	"fmt"
)

// LoopError indicates a context exceeded its iteration budget.
type LoopError struct {
	Iterations int
	Budget     int
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	return fmt.Sprintf("iteration budget exceeded: %d iterations with budget %d", e.Iterations, e.Budget)
}

// LoopGuard rejects contexts that exceeded their iteration budget. The
// pipeline performs the same check in its own loop; the guard re-checks so
// a collaborator driving the pipeline from outside cannot bypass it.
type LoopGuard struct {
	budget int
}

// NewLoopGuard creates a guard with the given iteration budget.
func NewLoopGuard(budget int) *LoopGuard {
	return &LoopGuard{budget: budget}
}

// Check returns a LoopError when iterations exceed the budget.
func (g *LoopGuard) Check(iterations int) error {
	if iterations > g.budget {
		return &LoopError{Iterations: iterations, Budget: g.budget}
	}
	return nil
}

// Guard combines the loop guard and content filter. The pipeline invokes
// it once per query during planning; a blocked result is fatal to the
// query.
type Guard struct {
	loop   *LoopGuard
	filter *ContentFilter
}

// NewGuard creates a Guard. redLines come from the decision policy.
func NewGuard(iterationBudget int, redLines []RedLine) (*Guard, error) {
	filter, err := NewContentFilter(redLines)
	if err != nil {
		return nil, err
	}
	return &Guard{
		loop:   NewLoopGuard(iterationBudget),
		filter: filter,
	}, nil
}

// Filter exposes the content filter for per-option red-line checks.
func (g *Guard) Filter() *ContentFilter {
	return g.filter
}

// Evaluate runs both checks over the accumulated context content. A loop
// violation is reported as a blocked result so callers have one failure
// path.
func (g *Guard) Evaluate(iterations int, content string) Result {
	if err := g.loop.Check(iterations); err != nil {
		return Result{
			Category:         CategoryBlocked,
			Blocked:          true,
			Reasons:          []string{err.Error()},
			SanitizedContent: content,
		}
	}
	return g.filter.Check(content)
}
