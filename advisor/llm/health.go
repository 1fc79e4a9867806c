// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"sort"
	"sync"
	"time"
)

const (
	// windowMaxEntries bounds the rolling outcome window per provider.
	windowMaxEntries = 100

	// windowMaxAge drops outcomes older than one hour.
	windowMaxAge = time.Hour

	// latencyThreshold is the latency at which the latency component of
	// the health score bottoms out.
	latencyThreshold = 5000 * time.Millisecond

	// unavailableFailureCount is the consecutive-failure count at which a
	// provider is taken out of rotation regardless of score.
	unavailableFailureCount = 5

	// unavailableScore is the score below which a provider is taken out
	// of rotation.
	unavailableScore = 0.2
)

// Score component weights: success rate, latency, consecutive failures.
const (
	weightSuccessRate = 0.4
	weightLatency     = 0.3
	weightConsecutive = 0.3
)

// outcome is a single request result in a provider's rolling window.
type outcome struct {
	at      time.Time
	success bool
	latency time.Duration
	errMsg  string
}

// providerRecord holds the live health state for one provider. It is owned
// exclusively by the HealthTracker and guarded by its own mutex so that
// concurrent queries racing through the same provider serialize their
// updates without contending on other providers.
type providerRecord struct {
	mu                  sync.Mutex
	name                string
	window              []outcome
	consecutiveFailures int
	score               float64
	lastUpdated         time.Time
}

// ProviderHealth is a read-only snapshot of one provider's health.
type ProviderHealth struct {
	Name                string        `json:"name"`
	Score               float64       `json:"score"`
	Status              HealthStatus  `json:"status"`
	Available           bool          `json:"available"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	WindowSize          int           `json:"window_size"`
	AvgLatency          time.Duration `json:"avg_latency"`
	LastError           string        `json:"last_error,omitempty"`
	LastUpdated         time.Time     `json:"last_updated"`
}

// HealthTracker maintains a rolling window of request outcomes per provider
// and derives a 0-1 health score plus an availability flag. Health is a live
// signal only; it is never persisted across restarts.
type HealthTracker struct {
	mu      sync.RWMutex
	records map[string]*providerRecord
}

// NewHealthTracker creates an empty health tracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		records: make(map[string]*providerRecord),
	}
}

// record returns the record for a provider, creating it on first use.
func (t *HealthTracker) record(provider string) *providerRecord {
	t.mu.RLock()
	rec, ok := t.records[provider]
	t.mu.RUnlock()
	if ok {
		return rec
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok = t.records[provider]; ok {
		return rec
	}
	rec = &providerRecord{name: provider, score: 1.0}
	t.records[provider] = rec
	return rec
}

// RecordSuccess records a successful call and its latency.
func (t *HealthTracker) RecordSuccess(provider string, latency time.Duration) {
	rec := t.record(provider)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.window = append(rec.window, outcome{at: time.Now(), success: true, latency: latency})
	rec.consecutiveFailures = 0
	rec.recalculate()
}

// RecordFailure records a failed call.
func (t *HealthTracker) RecordFailure(provider string, err error) {
	rec := t.record(provider)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	o := outcome{at: time.Now()}
	if err != nil {
		o.errMsg = err.Error()
	}
	rec.window = append(rec.window, o)
	rec.consecutiveFailures++
	rec.recalculate()
}

// recalculate prunes the window and recomputes the weighted score.
// Callers must hold rec.mu.
func (rec *providerRecord) recalculate() {
	rec.prune()
	rec.lastUpdated = time.Now()

	if len(rec.window) == 0 {
		// Optimistic default so a fresh provider gets tried.
		rec.score = 1.0
		return
	}

	successes := 0
	var latencySum time.Duration
	latencySamples := 0
	for _, o := range rec.window {
		if o.success {
			successes++
			latencySum += o.latency
			latencySamples++
		}
	}

	successRate := float64(successes) / float64(len(rec.window))

	avgLatency := 0.0
	if latencySamples > 0 {
		avgLatency = float64(latencySum.Milliseconds()) / float64(latencySamples)
	}
	latencyRatio := avgLatency / float64(latencyThreshold.Milliseconds())
	if latencyRatio > 1 {
		latencyRatio = 1
	}

	consecutivePenalty := 1 - float64(rec.consecutiveFailures)*0.2
	if consecutivePenalty < 0 {
		consecutivePenalty = 0
	}

	rec.score = weightSuccessRate*successRate +
		weightLatency*(1-latencyRatio) +
		weightConsecutive*consecutivePenalty
}

// prune enforces the count and age bounds, whichever is stricter.
// Callers must hold rec.mu.
func (rec *providerRecord) prune() {
	cutoff := time.Now().Add(-windowMaxAge)
	start := 0
	for start < len(rec.window) && rec.window[start].at.Before(cutoff) {
		start++
	}
	if start > 0 {
		rec.window = append([]outcome(nil), rec.window[start:]...)
	}
	if excess := len(rec.window) - windowMaxEntries; excess > 0 {
		rec.window = append([]outcome(nil), rec.window[excess:]...)
	}
}

// Score returns the provider's current health score in [0,1]. A provider
// with no recorded requests scores 1.0.
func (t *HealthTracker) Score(provider string) float64 {
	rec := t.record(provider)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.score
}

// Status returns the banded status for a provider.
func (t *HealthTracker) Status(provider string) HealthStatus {
	return statusForScore(t.Score(provider))
}

func statusForScore(score float64) HealthStatus {
	switch {
	case score >= 0.8:
		return HealthStatusHealthy
	case score >= 0.5:
		return HealthStatusDegraded
	case score >= 0.2:
		return HealthStatusUnhealthy
	default:
		return HealthStatusCritical
	}
}

// IsAvailable reports whether the provider should receive traffic.
// Availability drops once five consecutive failures accumulate or the score
// falls below 0.2.
func (t *HealthTracker) IsAvailable(provider string) bool {
	rec := t.record(provider)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.consecutiveFailures < unavailableFailureCount && rec.score >= unavailableScore
}

// Snapshot returns a consistent snapshot of one provider's health.
func (t *HealthTracker) Snapshot(provider string) ProviderHealth {
	rec := t.record(provider)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshotLocked()
}

// snapshotLocked builds a ProviderHealth. Callers must hold rec.mu.
func (rec *providerRecord) snapshotLocked() ProviderHealth {
	var latencySum time.Duration
	latencySamples := 0
	lastError := ""
	for _, o := range rec.window {
		if o.success {
			latencySum += o.latency
			latencySamples++
		} else if o.errMsg != "" {
			lastError = o.errMsg
		}
	}
	avg := time.Duration(0)
	if latencySamples > 0 {
		avg = latencySum / time.Duration(latencySamples)
	}

	return ProviderHealth{
		Name:                rec.name,
		Score:               rec.score,
		Status:              statusForScore(rec.score),
		Available:           rec.consecutiveFailures < unavailableFailureCount && rec.score >= unavailableScore,
		ConsecutiveFailures: rec.consecutiveFailures,
		WindowSize:          len(rec.window),
		AvgLatency:          avg,
		LastError:           lastError,
		LastUpdated:         rec.lastUpdated,
	}
}

// GetAll returns a snapshot of every tracked provider ordered by score
// descending. Ties keep name order for determinism.
func (t *HealthTracker) GetAll() []ProviderHealth {
	t.mu.RLock()
	recs := make([]*providerRecord, 0, len(t.records))
	for _, rec := range t.records {
		recs = append(recs, rec)
	}
	t.mu.RUnlock()

	all := make([]ProviderHealth, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		all = append(all, rec.snapshotLocked())
		rec.mu.Unlock()
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Name < all[j].Name
	})
	return all
}

// Reset discards a provider's window and restores the optimistic default.
func (t *HealthTracker) Reset(provider string) {
	rec := t.record(provider)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.window = nil
	rec.consecutiveFailures = 0
	rec.score = 1.0
	rec.lastUpdated = time.Now()
}

// MarkRecovered clears the consecutive-failure counter so the provider
// re-enters rotation, without discarding its outcome history.
func (t *HealthTracker) MarkRecovered(provider string) {
	rec := t.record(provider)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.consecutiveFailures = 0
	rec.recalculate()
}

// Forget removes a provider from the tracker entirely. Used when a provider
// is unregistered from the router.
func (t *HealthTracker) Forget(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, provider)
}
