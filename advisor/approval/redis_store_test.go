// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategos/core/advisor/audit"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestRedisStoreCreateAndGet(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	req := &Request{
		ID:        "r-1",
		ContextID: "ctx-1",
		Proposal:  json.RawMessage(`{"recommendation":"hold"}`),
		Priority:  PriorityHigh,
		Status:    StatusPending,
	}
	require.NoError(t, store.Create(ctx, req))

	got, err := store.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "ctx-1", got.ContextID)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, StatusPending, got.Status)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store := newRedisStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreListPreservesOrder(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, &Request{ID: id, Status: StatusPending}))
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "c", all[2].ID)
}

func TestRedisStoreUpdatePersistsMutation(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Request{ID: "r-1", Status: StatusPending}))

	updated, err := store.Update(ctx, "r-1", func(r *Request) error {
		r.Status = StatusApproved
		r.Approver = "alex@corp"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, updated.Status)

	got, err := store.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, "alex@corp", got.Approver)
}

func TestRedisStoreUpdateMissing(t *testing.T) {
	store := newRedisStore(t)

	_, err := store.Update(context.Background(), "nope", func(r *Request) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentApprovalsOnlyOneWins(t *testing.T) {
	store := newRedisStore(t)
	w := NewWorkflow(store, audit.NewMemoryTrail())
	ctx := context.Background()

	req, err := w.Submit(ctx, "ctx-1", nil, PriorityNormal)
	require.NoError(t, err)

	approvers := []string{"first@corp", "second@corp"}
	errs := make([]error, len(approvers))
	var wg sync.WaitGroup
	for i, approver := range approvers {
		wg.Add(1)
		go func(i int, approver string) {
			defer wg.Done()
			_, errs[i] = w.Approve(ctx, req.ID, approver, "")
		}(i, approver)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrStateConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	got, err := w.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Contains(t, approvers, got.Approver)
}
