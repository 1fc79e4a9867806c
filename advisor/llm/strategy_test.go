// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidRoutingStrategy(t *testing.T) {
	tests := []struct {
		strategy string
		want     bool
	}{
		{"best_available", true},
		{"round_robin", true},
		{"task_optimized", true},
		{"cost_optimized", true},
		{"", false},
		{"weighted", false},
		{"BEST_AVAILABLE", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidRoutingStrategy(tt.strategy), tt.strategy)
	}
}

func TestBestAvailableOrdersByScoreDesc(t *testing.T) {
	s := NewProviderSelector(RoutingStrategyBestAvailable, nil, nil)

	scores := map[string]float64{"a": 0.9, "b": 0.4, "c": 0.7}
	got := s.Order([]string{"a", "b", "c"}, scores, TaskTypeGeneral)

	assert.Equal(t, []string{"a", "c", "b"}, got)
}

func TestBestAvailableTiesBreakByName(t *testing.T) {
	s := NewProviderSelector(RoutingStrategyBestAvailable, nil, nil)

	scores := map[string]float64{"zeta": 0.8, "alpha": 0.8}
	got := s.Order([]string{"zeta", "alpha"}, scores, TaskTypeGeneral)

	assert.Equal(t, []string{"alpha", "zeta"}, got)
}

func TestRoundRobinRotatesStartingOrder(t *testing.T) {
	s := NewProviderSelector(RoutingStrategyRoundRobin, nil, nil)
	candidates := []string{"x", "y", "z"}

	assert.Equal(t, []string{"x", "y", "z"}, s.Order(candidates, nil, TaskTypeGeneral))
	assert.Equal(t, []string{"y", "z", "x"}, s.Order(candidates, nil, TaskTypeGeneral))
	assert.Equal(t, []string{"z", "x", "y"}, s.Order(candidates, nil, TaskTypeGeneral))
	assert.Equal(t, []string{"x", "y", "z"}, s.Order(candidates, nil, TaskTypeGeneral))
}

func TestTaskOptimizedPrefersListedProviders(t *testing.T) {
	prefs := map[TaskType][]string{
		TaskTypeOptions: {"anthropic", "openai"},
	}
	s := NewProviderSelector(RoutingStrategyTaskOptimized, prefs, nil)

	scores := map[string]float64{"anthropic": 0.3, "openai": 0.9, "bedrock": 0.8, "local": 0.95}
	got := s.Order([]string{"anthropic", "bedrock", "local", "openai"}, scores, TaskTypeOptions)

	// Preference list first in listed order, remainder by health.
	assert.Equal(t, []string{"anthropic", "openai", "local", "bedrock"}, got)
}

func TestTaskOptimizedUnknownTaskFallsBackToHealth(t *testing.T) {
	s := NewProviderSelector(RoutingStrategyTaskOptimized, nil, nil)

	scores := map[string]float64{"a": 0.2, "b": 0.9}
	got := s.Order([]string{"a", "b"}, scores, TaskTypeAnalysis)

	assert.Equal(t, []string{"b", "a"}, got)
}

func TestCostOptimizedFollowsStaticOrder(t *testing.T) {
	s := NewProviderSelector(RoutingStrategyCostOptimized, nil, []string{"local", "bedrock", "openai", "anthropic"})

	got := s.Order([]string{"anthropic", "openai", "bedrock"}, nil, TaskTypeGeneral)
	assert.Equal(t, []string{"bedrock", "openai", "anthropic"}, got)
}

func TestCostOptimizedAppendsUnlistedByName(t *testing.T) {
	s := NewProviderSelector(RoutingStrategyCostOptimized, nil, []string{"cheap"})

	got := s.Order([]string{"zeta", "cheap", "alpha"}, nil, TaskTypeGeneral)
	assert.Equal(t, []string{"cheap", "alpha", "zeta"}, got)
}

func TestOrderEmptyCandidates(t *testing.T) {
	s := NewProviderSelector(RoutingStrategyBestAvailable, nil, nil)
	assert.Nil(t, s.Order(nil, nil, TaskTypeGeneral))
}
