// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s Store, contents ...string) {
	t.Helper()
	for _, c := range contents {
		_, err := s.Store(context.Background(), Entry{Content: c})
		require.NoError(t, err)
	}
}

func TestRetrieveRanksByOverlap(t *testing.T) {
	s := NewInMemoryStore()
	seed(t, s,
		"expansion into the german market stalled on pricing",
		"quarterly revenue review notes",
		"german market entry approved with revised pricing model",
	)

	snippets, err := s.Retrieve(context.Background(), "german market pricing", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.GreaterOrEqual(t, snippets[0].Relevance, snippets[1].Relevance)
	assert.Contains(t, snippets[0].Content, "german market")
}

func TestRetrieveHonorsLimit(t *testing.T) {
	s := NewInMemoryStore()
	seed(t, s,
		"market analysis one",
		"market analysis two",
		"market analysis three",
	)

	snippets, err := s.Retrieve(context.Background(), "market analysis", RetrieveOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, snippets, 2)
}

func TestRetrieveHonorsMinRelevance(t *testing.T) {
	s := NewInMemoryStore()
	seed(t, s,
		"pricing strategy for the enterprise segment",
		"pricing",
	)

	snippets, err := s.Retrieve(context.Background(), "pricing strategy enterprise segment", RetrieveOptions{MinRelevance: 0.9})
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "pricing strategy for the enterprise segment", snippets[0].Content)
}

func TestRetrieveNoMatches(t *testing.T) {
	s := NewInMemoryStore()
	seed(t, s, "logistics contract renewal")

	snippets, err := s.Retrieve(context.Background(), "zebra habitats", RetrieveOptions{})
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestStoreAssignsIDAndTimestamp(t *testing.T) {
	s := NewInMemoryStore()

	id, err := s.Store(context.Background(), Entry{Content: "anything"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestOverlapScore(t *testing.T) {
	q := tokenize("german market pricing")

	assert.Equal(t, 1.0, overlapScore(q, "the german market pricing memo"))
	assert.InDelta(t, 2.0/3.0, overlapScore(q, "german market entry"), 1e-9)
	assert.Equal(t, 0.0, overlapScore(q, "unrelated"))
	assert.Equal(t, 0.0, overlapScore(nil, "anything"))
}

func TestOverlapScoreDeduplicatesQueryTokens(t *testing.T) {
	q := tokenize("market market market pricing")
	assert.InDelta(t, 0.5, overlapScore(q, "the market memo"), 1e-9)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := NewRedisStore(client)

	seed(t, s,
		"supply chain diversification for the apac region",
		"holiday party planning",
	)

	snippets, err := s.Retrieve(context.Background(), "apac supply chain", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0].Content, "supply chain")
}

func TestRedisStoreCapsEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := NewRedisStore(client)
	ctx := context.Background()

	for i := 0; i < maxStoredEntries+10; i++ {
		_, err := s.Store(ctx, Entry{Content: "filler entry"})
		require.NoError(t, err)
	}

	n, err := client.LLen(ctx, redisEntriesKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(maxStoredEntries), n)
}
