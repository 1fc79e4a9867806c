// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps requests in process memory behind one mutex. The
// mutex spans the whole Update call, which gives the per-id exclusivity
// the Store contract requires.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*Request
	order    []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]*Request)}
}

// Create stores a new request.
func (s *MemoryStore) Create(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *req
	s.requests[req.ID] = &cp
	s.order = append(s.order, req.ID)
	return nil
}

// Get returns a copy of the request or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

// List returns copies of all requests in creation order.
func (s *MemoryStore) List(_ context.Context) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Request, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.requests[id]
		out = append(out, &cp)
	}
	return out, nil
}

// Update applies mutate under the store lock and persists the result
// when mutate succeeds. The mutated request is returned either way so
// callers can inspect reconciled state.
func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*Request) error) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *req
	if err := mutate(&cp); err != nil {
		// Persist reconciliation side effects (lazy expiry) even when
		// the transition itself is rejected.
		s.requests[id] = &cp
		result := cp
		return &result, err
	}
	s.requests[id] = &cp
	result := cp
	return &result, nil
}

// sortByCreation orders requests oldest first, stable on id.
func sortByCreation(reqs []*Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
