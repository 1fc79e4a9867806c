// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"sort"
	"sync/atomic"
)

// RoutingStrategy defines how the router orders candidate providers.
type RoutingStrategy string

const (
	// RoutingStrategyBestAvailable orders candidates by health score,
	// descending (default).
	RoutingStrategyBestAvailable RoutingStrategy = "best_available"

	// RoutingStrategyRoundRobin rotates the starting candidate one
	// position per call.
	RoutingStrategyRoundRobin RoutingStrategy = "round_robin"

	// RoutingStrategyTaskOptimized places providers from a static
	// per-task preference list first, others after ordered by health.
	RoutingStrategyTaskOptimized RoutingStrategy = "task_optimized"

	// RoutingStrategyCostOptimized uses a static cost-ascending order.
	RoutingStrategyCostOptimized RoutingStrategy = "cost_optimized"
)

// ValidRoutingStrategies contains all valid routing strategy values.
var ValidRoutingStrategies = []RoutingStrategy{
	RoutingStrategyBestAvailable,
	RoutingStrategyRoundRobin,
	RoutingStrategyTaskOptimized,
	RoutingStrategyCostOptimized,
}

// IsValidRoutingStrategy checks if a string is a valid routing strategy.
func IsValidRoutingStrategy(s string) bool {
	for _, valid := range ValidRoutingStrategies {
		if RoutingStrategy(s) == valid {
			return true
		}
	}
	return false
}

// ProviderSelector orders candidate providers according to the configured
// routing strategy. It is safe for concurrent use.
type ProviderSelector struct {
	strategy RoutingStrategy

	// taskPreferences maps a task type to a static ordered preference
	// list for task_optimized routing.
	taskPreferences map[TaskType][]string

	// costOrder is the static cost-ascending provider order for
	// cost_optimized routing.
	costOrder []string

	// roundRobinCursor advances one position per round_robin call.
	roundRobinCursor uint64
}

// NewProviderSelector creates a selector with the given strategy.
func NewProviderSelector(strategy RoutingStrategy, taskPreferences map[TaskType][]string, costOrder []string) *ProviderSelector {
	if taskPreferences == nil {
		taskPreferences = make(map[TaskType][]string)
	}
	return &ProviderSelector{
		strategy:        strategy,
		taskPreferences: taskPreferences,
		costOrder:       costOrder,
	}
}

// Strategy returns the configured routing strategy.
func (s *ProviderSelector) Strategy() RoutingStrategy {
	return s.strategy
}

// Order returns the candidate providers in the order the router should try
// them. candidates must already be filtered to configured, available
// providers. scores maps provider name to current health score.
func (s *ProviderSelector) Order(candidates []string, scores map[string]float64, taskType TaskType) []string {
	if len(candidates) == 0 {
		return nil
	}

	switch s.strategy {
	case RoutingStrategyRoundRobin:
		return s.orderRoundRobin(candidates)
	case RoutingStrategyTaskOptimized:
		return s.orderTaskOptimized(candidates, scores, taskType)
	case RoutingStrategyCostOptimized:
		return s.orderCostOptimized(candidates)
	default:
		return orderByHealth(candidates, scores)
	}
}

// orderByHealth sorts candidates by health score descending, name ascending
// on ties for determinism.
func orderByHealth(candidates []string, scores map[string]float64) []string {
	ordered := append([]string(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := scores[ordered[i]], scores[ordered[j]]
		if si != sj {
			return si > sj
		}
		return ordered[i] < ordered[j]
	})
	return ordered
}

// orderRoundRobin rotates the (name-sorted) candidate list one starting
// position per call, so successive calls spread load evenly.
func (s *ProviderSelector) orderRoundRobin(candidates []string) []string {
	base := append([]string(nil), candidates...)
	sort.Strings(base)

	offset := int((atomic.AddUint64(&s.roundRobinCursor, 1) - 1) % uint64(len(base)))
	ordered := make([]string, 0, len(base))
	ordered = append(ordered, base[offset:]...)
	ordered = append(ordered, base[:offset]...)
	return ordered
}

// orderTaskOptimized puts the preference-listed providers first in listed
// order, then the remainder ordered by health.
func (s *ProviderSelector) orderTaskOptimized(candidates []string, scores map[string]float64, taskType TaskType) []string {
	prefs := s.taskPreferences[taskType]
	inCandidates := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		inCandidates[c] = true
	}

	ordered := make([]string, 0, len(candidates))
	placed := make(map[string]bool, len(candidates))
	for _, p := range prefs {
		if inCandidates[p] && !placed[p] {
			ordered = append(ordered, p)
			placed[p] = true
		}
	}

	rest := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !placed[c] {
			rest = append(rest, c)
		}
	}
	return append(ordered, orderByHealth(rest, scores)...)
}

// orderCostOptimized follows the static cost-ascending list; providers not
// on the list are appended in name order.
func (s *ProviderSelector) orderCostOptimized(candidates []string) []string {
	inCandidates := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		inCandidates[c] = true
	}

	ordered := make([]string, 0, len(candidates))
	placed := make(map[string]bool, len(candidates))
	for _, p := range s.costOrder {
		if inCandidates[p] && !placed[p] {
			ordered = append(ordered, p)
			placed[p] = true
		}
	}

	rest := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !placed[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}
