// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"strategos/core/advisor/audit"
	"strategos/core/shared/logger"
)

// Workflow coordinates the approval gate: submission, human resolution,
// lazy expiry, and the audit events each transition emits.
type Workflow struct {
	store      Store
	trail      audit.Trail
	logger     *logger.Logger
	expiration time.Duration
	now        func() time.Time
}

// WorkflowOption customizes a Workflow.
type WorkflowOption func(*Workflow)

// WithExpiration overrides the default 24h expiration window.
func WithExpiration(d time.Duration) WorkflowOption {
	return func(w *Workflow) { w.expiration = d }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) WorkflowOption {
	return func(w *Workflow) { w.now = now }
}

// WithWorkflowLogger overrides the default logger.
func WithWorkflowLogger(l *logger.Logger) WorkflowOption {
	return func(w *Workflow) { w.logger = l }
}

// NewWorkflow creates a workflow over the given store and audit trail.
func NewWorkflow(store Store, trail audit.Trail, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		store:      store,
		trail:      trail,
		logger:     logger.New("approval-workflow"),
		expiration: DefaultExpiration,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Submit creates a pending request for the proposal. The expiration
// window starts at submission.
func (w *Workflow) Submit(ctx context.Context, contextID string, proposal json.RawMessage, priority Priority) (*Request, error) {
	if priority == "" {
		priority = PriorityNormal
	}

	now := w.now().UTC()
	req := &Request{
		ID:        uuid.NewString(),
		ContextID: contextID,
		Proposal:  proposal,
		Priority:  priority,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(w.expiration),
	}
	if err := w.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("creating approval request: %w", err)
	}

	w.record(ctx, audit.Event{
		ContextID: contextID,
		Type:      audit.EventApprovalSubmitted,
		Data: map[string]interface{}{
			"approval_id": req.ID,
			"priority":    string(priority),
			"expires_at":  req.ExpiresAt.Format(time.RFC3339),
		},
	})
	w.logger.Info(req.ID, "approval request submitted", map[string]interface{}{
		"context_id": contextID,
		"priority":   string(priority),
	})
	return req, nil
}

// Approve resolves a pending request. Fails with ErrStateConflict when
// the request is resolved or expired.
func (w *Workflow) Approve(ctx context.Context, id, approver, notes string) (*Request, error) {
	req, err := w.transition(ctx, id, StatusApproved, approver, notes)
	if err != nil {
		return req, err
	}
	w.record(ctx, audit.Event{
		ContextID: req.ContextID,
		Type:      audit.EventApprovalGranted,
		Actor:     approver,
		Data: map[string]interface{}{
			"approval_id": id,
			"notes":       notes,
		},
	})
	return req, nil
}

// Reject resolves a pending request negatively. Same state rules as
// Approve.
func (w *Workflow) Reject(ctx context.Context, id, approver, reason string) (*Request, error) {
	req, err := w.transition(ctx, id, StatusRejected, approver, reason)
	if err != nil {
		return req, err
	}
	w.record(ctx, audit.Event{
		ContextID: req.ContextID,
		Type:      audit.EventApprovalDenied,
		Actor:     approver,
		Data: map[string]interface{}{
			"approval_id": id,
			"reason":      reason,
		},
	})
	return req, nil
}

// transition applies the single allowed pending→terminal move. Expiry is
// reconciled first: a lapsed request flips to expired in storage and the
// mutating call is rejected.
func (w *Workflow) transition(ctx context.Context, id string, target Status, approver, annotation string) (*Request, error) {
	now := w.now().UTC()
	expired := false

	req, err := w.store.Update(ctx, id, func(r *Request) error {
		if r.Status == StatusPending && now.After(r.ExpiresAt) {
			r.Status = StatusExpired
			expired = true
			return fmt.Errorf("%w: request expired at %s", ErrStateConflict, r.ExpiresAt.Format(time.RFC3339))
		}
		if r.Status != StatusPending {
			return fmt.Errorf("%w: request is %s", ErrStateConflict, r.Status)
		}

		r.Status = target
		r.Approver = approver
		r.ResolvedAt = &now
		if target == StatusApproved {
			r.Notes = annotation
		} else {
			r.Reason = annotation
		}
		return nil
	})
	if expired && req != nil {
		w.record(ctx, audit.Event{
			ContextID: req.ContextID,
			Type:      audit.EventApprovalExpired,
			Data:      map[string]interface{}{"approval_id": id},
		})
	}
	return req, err
}

// Get returns the request with lazy expiry applied to the view. Storage
// is not rewritten on read.
func (w *Workflow) Get(ctx context.Context, id string) (*Request, error) {
	req, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Status = req.effectiveStatus(w.now().UTC())
	return req, nil
}

// GetPending returns unexpired pending requests, oldest first.
func (w *Workflow) GetPending(ctx context.Context) ([]*Request, error) {
	all, err := w.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := w.now().UTC()
	var out []*Request
	for _, req := range all {
		if req.effectiveStatus(now) == StatusPending {
			out = append(out, req)
		}
	}
	sortByCreation(out)
	return out, nil
}

// GetStats counts requests by effective status. Lazily-expired requests
// count as expired even while storage still reads pending.
func (w *Workflow) GetStats(ctx context.Context) (Stats, error) {
	all, err := w.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	now := w.now().UTC()
	var stats Stats
	for _, req := range all {
		switch req.effectiveStatus(now) {
		case StatusPending:
			stats.Pending++
		case StatusApproved:
			stats.Approved++
		case StatusRejected:
			stats.Rejected++
		case StatusExpired:
			stats.Expired++
		}
		stats.Total++
	}
	return stats, nil
}

// record writes to the audit trail best-effort. A failed audit write is
// logged, not surfaced; the transition already happened.
func (w *Workflow) record(ctx context.Context, event audit.Event) {
	if w.trail == nil {
		return
	}
	if err := w.trail.Record(ctx, event); err != nil {
		w.logger.ErrorWith(event.ContextID, "audit record failed", err, nil)
	}
}
