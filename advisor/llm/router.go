// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"strategos/core/shared/logger"
)

// DefaultCallTimeout bounds a single provider call when no per-provider
// timeout is configured.
const DefaultCallTimeout = 30 * time.Second

// Router dispatches generation requests across interchangeable providers.
// It orders candidates per the routing strategy, tries them sequentially,
// and feeds every outcome back into the HealthTracker. Callers see a single
// logical generate operation; failover is invisible unless every candidate
// fails.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	timeouts  map[string]time.Duration

	health      *HealthTracker
	selector    *ProviderSelector
	metrics     *routerMetrics
	logger      *logger.Logger
	callTimeout time.Duration
}

// RouterOption configures the Router.
type RouterOption func(*Router)

// WithHealthTracker sets the health tracker. If not set, a fresh tracker is
// created. The tracker is written to only by this router.
func WithHealthTracker(t *HealthTracker) RouterOption {
	return func(r *Router) {
		r.health = t
	}
}

// WithSelector sets the provider selector.
func WithSelector(s *ProviderSelector) RouterOption {
	return func(r *Router) {
		r.selector = s
	}
}

// WithRouterLogger sets the logger.
func WithRouterLogger(l *logger.Logger) RouterOption {
	return func(r *Router) {
		r.logger = l
	}
}

// WithCallTimeout sets the default per-call timeout.
func WithCallTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		r.callTimeout = d
	}
}

// WithMetricsRegisterer registers router metrics against reg instead of the
// default Prometheus registerer.
func WithMetricsRegisterer(reg prometheus.Registerer) RouterOption {
	return func(r *Router) {
		r.metrics = newRouterMetrics(reg)
	}
}

// NewRouter creates a Router with the given options.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		providers:   make(map[string]Provider),
		timeouts:    make(map[string]time.Duration),
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.health == nil {
		r.health = NewHealthTracker()
	}
	if r.selector == nil {
		r.selector = NewProviderSelector(RoutingStrategyBestAvailable, nil, nil)
	}
	if r.logger == nil {
		r.logger = logger.New("llm-router")
	}
	if r.metrics == nil {
		r.metrics = newRouterMetrics(prometheus.DefaultRegisterer)
	}

	return r
}

// AddProvider registers a provider adapter under its own name.
func (r *Router) AddProvider(p Provider) error {
	return r.AddProviderWithTimeout(p, 0)
}

// AddProviderWithTimeout registers a provider with a per-call timeout
// override. A zero timeout uses the router default.
func (r *Router) AddProviderWithTimeout(p Provider, timeout time.Duration) error {
	if p == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("provider name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	if timeout > 0 {
		r.timeouts[name] = timeout
	}
	r.logger.Info("", "registered provider", map[string]interface{}{
		"provider": name,
		"model":    p.Model(),
	})
	return nil
}

// RemoveProvider unregisters a provider and drops its health state.
func (r *Router) RemoveProvider(name string) error {
	r.mu.Lock()
	if _, exists := r.providers[name]; !exists {
		r.mu.Unlock()
		return fmt.Errorf("provider %q not found", name)
	}
	delete(r.providers, name)
	delete(r.timeouts, name)
	r.mu.Unlock()

	r.health.Forget(name)
	return nil
}

// Health returns the router's health tracker for read-only inspection.
func (r *Router) Health() *HealthTracker {
	return r.health
}

// candidates returns the configured, currently available providers.
func (r *Router) candidates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name, p := range r.providers {
		if p.IsConfigured() && r.health.IsAvailable(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// orderCandidates applies the preferred-provider override and the routing
// strategy to the candidate set.
func (r *Router) orderCandidates(opts GenerateOptions) []string {
	cands := r.candidates()
	if len(cands) == 0 {
		return nil
	}

	scores := make(map[string]float64, len(cands))
	for _, name := range cands {
		scores[name] = r.health.Score(name)
	}

	if opts.PreferredProvider != "" {
		for i, name := range cands {
			if name == opts.PreferredProvider {
				rest := make([]string, 0, len(cands)-1)
				rest = append(rest, cands[:i]...)
				rest = append(rest, cands[i+1:]...)
				ordered := append([]string{name}, r.selector.Order(rest, scores, opts.TaskType)...)
				return ordered
			}
		}
	}

	return r.selector.Order(cands, scores, opts.TaskType)
}

// timeoutFor returns the per-call timeout for a provider.
func (r *Router) timeoutFor(name string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.timeouts[name]; ok {
		return t
	}
	return r.callTimeout
}

// Generate routes a generation request through the candidate providers in
// strategy order, returning the first success. Every attempt, success or
// failure, updates the health tracker; no other component writes to it.
func (r *Router) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	ordered := r.orderCandidates(opts)
	if len(ordered) == 0 {
		r.metrics.exhausted.Inc()
		return nil, &ExhaustedError{}
	}

	var lastErr error
	attempted := make([]string, 0, len(ordered))

	for i, name := range ordered {
		r.mu.RLock()
		p, ok := r.providers[name]
		r.mu.RUnlock()
		if !ok {
			// Removed concurrently; skip without penalty.
			continue
		}

		attempted = append(attempted, name)
		if i > 0 {
			r.metrics.failovers.Inc()
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeoutFor(name))
		start := time.Now()
		text, err := p.Generate(callCtx, prompt, opts)
		latency := time.Since(start)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = &ProviderError{
					Provider:  name,
					Code:      ErrCodeTimeout,
					Message:   fmt.Sprintf("call exceeded %v deadline", r.timeoutFor(name)),
					Retryable: true,
					Cause:     err,
				}
			}
			lastErr = err
			r.health.RecordFailure(name, err)
			r.metrics.attempts.WithLabelValues(name, "failure").Inc()
			r.logger.Warn("", "provider call failed, advancing to next candidate", map[string]interface{}{
				"provider": name,
				"error":    err.Error(),
			})
			continue
		}

		r.health.RecordSuccess(name, latency)
		r.metrics.attempts.WithLabelValues(name, "success").Inc()
		r.metrics.latency.WithLabelValues(name).Observe(latency.Seconds())

		return &GenerateResult{
			Text:        text,
			Provider:    name,
			Latency:     latency,
			HealthScore: r.health.Score(name),
		}, nil
	}

	r.metrics.exhausted.Inc()
	return nil, &ExhaustedError{Attempted: attempted, LastErr: lastErr}
}

// GenerateStructured routes a request with ExpectJSON set and unmarshals
// the response into v. A response that is not valid JSON (after stripping a
// markdown code fence, which some providers insist on) is a parse error.
func (r *Router) GenerateStructured(ctx context.Context, prompt string, v any, opts GenerateOptions) (*GenerateResult, error) {
	opts.ExpectJSON = true

	result, err := r.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	payload := StripJSONFences(result.Text)
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return result, fmt.Errorf("provider %s returned unparseable JSON: %w", result.Provider, err)
	}
	return result, nil
}

// StripJSONFences removes a surrounding markdown code fence from a model
// response, if present.
func StripJSONFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// ProviderStatus describes one provider for operational reporting.
type ProviderStatus struct {
	Name       string         `json:"name"`
	Model      string         `json:"model"`
	Configured bool           `json:"configured"`
	Health     ProviderHealth `json:"health"`
}

// Status returns a read-only snapshot of every registered provider, ordered
// by name.
func (r *Router) Status() []ProviderStatus {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for name, p := range r.providers {
		providers[name] = p
	}
	r.mu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		p := providers[name]
		statuses = append(statuses, ProviderStatus{
			Name:       name,
			Model:      p.Model(),
			Configured: p.IsConfigured(),
			Health:     r.health.Snapshot(name),
		})
	}
	return statuses
}
