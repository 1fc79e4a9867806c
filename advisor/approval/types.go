// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package approval implements the human approval gate for proposals that
// cannot ship on confidence alone. Requests expire lazily: expiry is
// computed at read time, never by a background sweep.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is the lifecycle state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Priority orders pending requests for reviewers.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// DefaultExpiration is the window a request stays actionable.
const DefaultExpiration = 24 * time.Hour

var (
	// ErrNotFound indicates no request exists for the id.
	ErrNotFound = errors.New("approval request not found")

	// ErrStateConflict indicates the request is not in a state that
	// permits the attempted transition. Callers should re-query.
	ErrStateConflict = errors.New("approval state conflict")
)

// Request is one gating record. Proposal is carried opaquely; the
// workflow never interprets it.
type Request struct {
	ID         string          `json:"id"`
	ContextID  string          `json:"context_id"`
	Proposal   json.RawMessage `json:"proposal,omitempty"`
	Priority   Priority        `json:"priority"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	Approver   string          `json:"approver,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// effectiveStatus reports the status as of now, applying lazy expiry
// without touching storage.
func (r *Request) effectiveStatus(now time.Time) Status {
	if r.Status == StatusPending && now.After(r.ExpiresAt) {
		return StatusExpired
	}
	return r.Status
}

// Stats counts requests by effective status.
type Stats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Expired  int `json:"expired"`
	Total    int `json:"total"`
}

// Store persists approval requests. Update must apply mutate atomically
// with respect to other Update calls on the same id: of two concurrent
// conflicting transitions, exactly one may succeed.
type Store interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context) ([]*Request, error)
	Update(ctx context.Context, id string, mutate func(*Request) error) (*Request, error)
}
