// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// routerMetrics exposes router behavior to Prometheus.
type routerMetrics struct {
	attempts  *prometheus.CounterVec
	failovers prometheus.Counter
	exhausted prometheus.Counter
	latency   *prometheus.HistogramVec
}

// newRouterMetrics registers router metrics against the given registerer.
// Passing a fresh registry in tests avoids duplicate-registration panics.
func newRouterMetrics(reg prometheus.Registerer) *routerMetrics {
	m := &routerMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategos_router_attempts_total",
			Help: "Provider call attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strategos_router_failovers_total",
			Help: "Number of times the router advanced past a failed provider.",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strategos_router_exhausted_total",
			Help: "Requests that failed after every candidate provider was tried.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strategos_router_latency_seconds",
			Help:    "Latency of successful provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"provider"}),
	}

	if reg != nil {
		reg.MustRegister(m.attempts, m.failovers, m.exhausted, m.latency)
	}
	return m
}
