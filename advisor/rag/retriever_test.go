// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCorpus = []string{
	"pricing policy: discounts above twenty percent require finance approval",
	"market entry playbook covering regulatory review and local partnerships",
	"expense reporting guidelines for travel",
}

func TestRetrieveOrdersByScore(t *testing.T) {
	r := NewStaticRetriever(testCorpus)

	docs, err := r.Retrieve(context.Background(), "market entry regulatory review", QueryOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Contains(t, docs[0].Content, "market entry playbook")
	for i := 1; i < len(docs); i++ {
		assert.GreaterOrEqual(t, docs[i-1].Score, docs[i].Score)
	}
}

func TestRetrieveHonorsMinSimilarity(t *testing.T) {
	r := NewStaticRetriever(testCorpus)

	docs, err := r.Retrieve(context.Background(), "market entry regulatory review", QueryOptions{MinSimilarity: 0.9})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "market entry playbook")
}

func TestRetrieveHonorsMaxDocuments(t *testing.T) {
	r := NewStaticRetriever([]string{
		"review alpha", "review beta", "review gamma",
	})

	docs, err := r.Retrieve(context.Background(), "review", QueryOptions{MaxDocuments: 2})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestRetrieveHonorsTokenBudget(t *testing.T) {
	long := "review " + strings.Repeat("filler ", 50)
	r := NewStaticRetriever([]string{"review short", long})

	docs, err := r.Retrieve(context.Background(), "review", QueryOptions{MaxTokens: 10})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "review short", docs[0].Content)
}

func TestRetrieveNoMatches(t *testing.T) {
	r := NewStaticRetriever(testCorpus)

	docs, err := r.Retrieve(context.Background(), "quantum chromodynamics", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := NewStaticRetriever(testCorpus)

	docs, err := r.Retrieve(context.Background(), "", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}
