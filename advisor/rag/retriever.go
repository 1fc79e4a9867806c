// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package rag retrieves reference documents for a query under explicit
// token, similarity, and count budgets. Ingestion and indexing are out
// of scope; the corpus is supplied ready-made.
package rag

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// Document is one retrieved reference document.
type Document struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// QueryOptions bounds a retrieval. Zero values mean no bound for
// MaxTokens and MaxDocuments and no floor for MinSimilarity.
type QueryOptions struct {
	MaxTokens     int
	MinSimilarity float64
	MaxDocuments  int
}

// Retriever is the reference-document collaborator contract.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts QueryOptions) ([]Document, error)
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// similarity is the fraction of distinct query tokens present in the
// document.
func similarity(queryTokens []string, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	docSet := make(map[string]struct{})
	for _, tok := range tokenize(content) {
		docSet[tok] = struct{}{}
	}

	seen := make(map[string]struct{})
	matched := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := docSet[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

// StaticRetriever serves a fixed corpus. Used both in production (policy
// and playbook documents shipped with the deployment) and in tests.
type StaticRetriever struct {
	corpus []string
}

var _ Retriever = (*StaticRetriever)(nil)

// NewStaticRetriever creates a retriever over the given documents.
func NewStaticRetriever(corpus []string) *StaticRetriever {
	return &StaticRetriever{corpus: append([]string(nil), corpus...)}
}

// Retrieve returns matching documents, highest score first, stopping at
// whichever budget is exhausted first.
func (r *StaticRetriever) Retrieve(_ context.Context, query string, opts QueryOptions) ([]Document, error) {
	queryTokens := tokenize(query)

	var scored []Document
	for _, doc := range r.corpus {
		score := similarity(queryTokens, doc)
		if score == 0 || score < opts.MinSimilarity {
			continue
		}
		scored = append(scored, Document{Content: doc, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	var (
		out        []Document
		usedTokens int
	)
	for _, doc := range scored {
		if opts.MaxDocuments > 0 && len(out) >= opts.MaxDocuments {
			break
		}
		docTokens := len(tokenize(doc.Content))
		if opts.MaxTokens > 0 && usedTokens+docTokens > opts.MaxTokens {
			break
		}
		usedTokens += docTokens
		out = append(out, doc)
	}
	return out, nil
}
