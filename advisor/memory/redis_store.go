// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	redisEntriesKey = "memory:entries"

	// maxStoredEntries caps the recency list so memory does not grow
	// without bound across deployments.
	maxStoredEntries = 500
)

// RedisStore keeps entries in a Redis recency list, newest first.
// Retrieval scores the whole list; the entry cap keeps that tractable.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Retrieve returns relevant snippets, most relevant first.
func (s *RedisStore) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]Snippet, error) {
	raw, err := s.client.LRange(ctx, redisEntriesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading memory entries: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("unmarshaling memory entry: %w", err)
		}
		entries = append(entries, e)
	}
	return rank(entries, query, opts), nil
}

// Store persists an entry and trims the list to the cap.
func (s *RedisStore) Store(ctx context.Context, entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshaling memory entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, redisEntriesKey, raw)
	pipe.LTrim(ctx, redisEntriesKey, 0, maxStoredEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("storing memory entry: %w", err)
	}
	return entry.ID, nil
}
