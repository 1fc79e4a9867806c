// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package audit provides the append-only audit trail that records every
// consequential transition in the advisory pipeline and approval workflow.
// Events are never mutated or deleted.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates auditable events.
type EventType string

const (
	// EventQueryReceived marks the start of query processing.
	EventQueryReceived EventType = "query_received"

	// EventProposalCreated marks a completed proposal.
	EventProposalCreated EventType = "proposal_created"

	// EventApprovalSubmitted marks a proposal entering the approval gate.
	EventApprovalSubmitted EventType = "approval_submitted"

	// EventApprovalGranted marks a human approval.
	EventApprovalGranted EventType = "approval_granted"

	// EventApprovalDenied marks a human rejection.
	EventApprovalDenied EventType = "approval_denied"

	// EventApprovalExpired marks a request that lapsed unreviewed.
	EventApprovalExpired EventType = "approval_expired"

	// EventStageError marks a fatal pipeline stage failure.
	EventStageError EventType = "stage_error"

	// EventSafetyBlocked marks a query stopped by the safety guard.
	EventSafetyBlocked EventType = "safety_blocked"
)

// maxPayloadBytes caps the serialized size of an event's data payload.
const maxPayloadBytes = 8192

// Event is a single append-only audit record.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	ContextID string                 `json:"context_id"`
	Type      EventType              `json:"type"`
	Actor     string                 `json:"actor,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Trail is the append-only audit sink. Implementations must be safe for
// concurrent use.
type Trail interface {
	// Record appends an event. A missing id or timestamp is filled in.
	Record(ctx context.Context, event Event) error

	// List returns the events for a context id in append order.
	List(ctx context.Context, contextID string) ([]Event, error)
}

// normalize fills defaults and enforces the payload cap.
func normalize(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Data = capPayload(event.Data)
	return event
}

// capPayload replaces oversized payloads with a truncation marker so one
// runaway payload cannot bloat the trail.
func capPayload(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil || len(raw) <= maxPayloadBytes {
		return data
	}
	return map[string]interface{}{
		"truncated":      true,
		"original_bytes": len(raw),
	}
}

// MemoryTrail is an in-process trail. Suitable for tests and single-node
// deployments; production uses the Postgres trail.
type MemoryTrail struct {
	mu     sync.RWMutex
	events []Event
}

var _ Trail = (*MemoryTrail)(nil)

// NewMemoryTrail creates an empty in-memory trail.
func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{}
}

// Record appends an event.
func (t *MemoryTrail) Record(_ context.Context, event Event) error {
	event = normalize(event)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
	return nil
}

// List returns the events for a context id in append order.
func (t *MemoryTrail) List(_ context.Context, contextID string) ([]Event, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Event
	for _, e := range t.events {
		if e.ContextID == contextID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every recorded event in append order.
func (t *MemoryTrail) All() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Event(nil), t.events...)
}
