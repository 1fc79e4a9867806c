// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package agent

import "fmt"

// InsufficientDataError aborts a query during PERCEIVE when the context
// policy demands hard failure on empty retrieval or an unsubstantive
// query.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s", e.Reason)
}

// LoopDetectedError aborts a query whose iteration counter exceeded the
// configured maximum.
type LoopDetectedError struct {
	Iterations int
	Max        int
}

func (e *LoopDetectedError) Error() string {
	return fmt.Sprintf("loop detected: iteration %d exceeds maximum %d", e.Iterations, e.Max)
}

// SafetyViolationError aborts a query the safety guard blocked.
type SafetyViolationError struct {
	Reasons []string
}

func (e *SafetyViolationError) Error() string {
	return fmt.Sprintf("safety violation: %v", e.Reasons)
}
