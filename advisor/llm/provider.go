// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
)

// Provider is the interface every backend language-model adapter implements.
// Implementations must be safe for concurrent use: multiple in-flight
// queries share one adapter instance.
type Provider interface {
	// Name returns the unique identifier for this provider instance.
	// It is used for routing, health tracking, and logging.
	Name() string

	// Model returns the model identifier this adapter targets.
	Model() string

	// IsConfigured reports whether the adapter has the credentials it
	// needs. Unconfigured providers are excluded from routing.
	IsConfigured() bool

	// Generate produces text for the given prompt. The context carries
	// the per-call deadline; adapters must abandon the call when it
	// expires. Adapter-local bounded retry with backoff is permitted
	// before returning an error.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
