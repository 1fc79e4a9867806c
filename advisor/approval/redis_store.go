// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	redisRequestKeyPrefix = "approval:req:"
	redisIndexKey         = "approval:ids"

	// txRetries bounds optimistic retries when a WATCH conflict aborts
	// the transaction.
	txRetries = 5
)

// RedisStore persists requests in Redis. Per-id exclusivity comes from
// WATCH/MULTI: a concurrent write to the same request key aborts the
// transaction and the losing caller retries against fresh state.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func requestKey(id string) string {
	return redisRequestKeyPrefix + id
}

// Create stores a new request and appends its id to the index.
func (s *RedisStore) Create(ctx context.Context, req *Request) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling approval request: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, requestKey(req.ID), raw, 0)
	pipe.RPush(ctx, redisIndexKey, req.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing approval request: %w", err)
	}
	return nil
}

// Get returns the request or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*Request, error) {
	raw, err := s.client.Get(ctx, requestKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading approval request: %w", err)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("unmarshaling approval request: %w", err)
	}
	return &req, nil
}

// List returns all requests in creation order.
func (s *RedisStore) List(ctx context.Context) ([]*Request, error) {
	ids, err := s.client.LRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing approval ids: %w", err)
	}

	out := make([]*Request, 0, len(ids))
	for _, id := range ids {
		req, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// Update applies mutate under optimistic concurrency. The request state
// after mutate is persisted even when mutate rejects the transition, so
// lazy expiry reconciliation reaches storage.
func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*Request) error) (*Request, error) {
	key := requestKey(id)

	var (
		result *Request
		mutErr error
	)
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("unmarshaling approval request: %w", err)
		}

		mutErr = mutate(&req)

		updated, err := json.Marshal(&req)
		if err != nil {
			return fmt.Errorf("marshaling approval request: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &req
		return nil
	}

	for attempt := 0; attempt < txRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, mutErr
	}
	return nil, fmt.Errorf("updating approval request %s: too many conflicts", id)
}
