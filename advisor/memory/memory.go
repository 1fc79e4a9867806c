// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package memory stores and retrieves prior decision context. Retrieval
// is keyword-overlap scored; this is deliberately simple — the pipeline
// only needs "what did we decide about similar questions", not semantic
// search.
package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Snippet is one retrieved piece of prior context.
type Snippet struct {
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
}

// Entry is a record to persist after a completed query.
type Entry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RetrieveOptions bounds a retrieval.
type RetrieveOptions struct {
	Limit        int
	MinRelevance float64
}

// Store is the memory collaborator contract.
type Store interface {
	// Retrieve returns snippets relevant to the query, most relevant
	// first.
	Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]Snippet, error)

	// Store persists an entry and returns its id.
	Store(ctx context.Context, entry Entry) (string, error)
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases and splits on non-alphanumerics.
func tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// overlapScore is |query tokens found in content| / |distinct query tokens|.
func overlapScore(queryTokens []string, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	contentSet := make(map[string]struct{})
	for _, tok := range tokenize(content) {
		contentSet[tok] = struct{}{}
	}

	seen := make(map[string]struct{})
	matched := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := contentSet[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

// rank scores entries against the query and applies the retrieval
// bounds.
func rank(entries []Entry, query string, opts RetrieveOptions) []Snippet {
	queryTokens := tokenize(query)

	var out []Snippet
	for _, e := range entries {
		score := overlapScore(queryTokens, e.Content)
		if score < opts.MinRelevance || score == 0 {
			continue
		}
		out = append(out, Snippet{Content: e.Content, Relevance: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// InMemoryStore keeps entries in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Retrieve returns relevant snippets, most relevant first.
func (s *InMemoryStore) Retrieve(_ context.Context, query string, opts RetrieveOptions) ([]Snippet, error) {
	s.mu.RLock()
	entries := append([]Entry(nil), s.entries...)
	s.mu.RUnlock()

	return rank(entries, query, opts), nil
}

// Store persists an entry.
func (s *InMemoryStore) Store(_ context.Context, entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return entry.ID, nil
}
