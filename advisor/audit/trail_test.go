// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTrailRecordFillsDefaults(t *testing.T) {
	trail := NewMemoryTrail()

	err := trail.Record(context.Background(), Event{
		ContextID: "ctx-1",
		Type:      EventQueryReceived,
	})
	require.NoError(t, err)

	events, err := trail.List(context.Background(), "ctx-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestMemoryTrailListFiltersByContext(t *testing.T) {
	trail := NewMemoryTrail()
	ctx := context.Background()

	require.NoError(t, trail.Record(ctx, Event{ContextID: "a", Type: EventQueryReceived}))
	require.NoError(t, trail.Record(ctx, Event{ContextID: "b", Type: EventQueryReceived}))
	require.NoError(t, trail.Record(ctx, Event{ContextID: "a", Type: EventProposalCreated}))

	events, err := trail.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventQueryReceived, events[0].Type)
	assert.Equal(t, EventProposalCreated, events[1].Type)
}

func TestMemoryTrailPreservesAppendOrder(t *testing.T) {
	trail := NewMemoryTrail()
	ctx := context.Background()

	types := []EventType{
		EventQueryReceived,
		EventProposalCreated,
		EventApprovalSubmitted,
		EventApprovalGranted,
	}
	for _, et := range types {
		require.NoError(t, trail.Record(ctx, Event{ContextID: "ctx", Type: et}))
	}

	events, err := trail.List(ctx, "ctx")
	require.NoError(t, err)
	require.Len(t, events, len(types))
	for i, et := range types {
		assert.Equal(t, et, events[i].Type)
	}
}

func TestCapPayloadTruncatesOversizedData(t *testing.T) {
	data := map[string]interface{}{
		"blob": strings.Repeat("x", maxPayloadBytes+1),
	}

	capped := capPayload(data)
	assert.Equal(t, true, capped["truncated"])
	assert.NotContains(t, capped, "blob")
}

func TestCapPayloadKeepsSmallData(t *testing.T) {
	data := map[string]interface{}{"stage": "plan"}
	assert.Equal(t, data, capPayload(data))
	assert.Nil(t, capPayload(nil))
}

func TestMemoryTrailConcurrentRecord(t *testing.T) {
	trail := NewMemoryTrail()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = trail.Record(ctx, Event{ContextID: "shared", Type: EventStageError})
		}()
	}
	wg.Wait()

	assert.Len(t, trail.All(), 20)
}

func TestNormalizeKeepsExplicitFields(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := normalize(Event{ID: "fixed-id", Timestamp: ts, ContextID: "ctx"})

	assert.Equal(t, "fixed-id", event.ID)
	assert.Equal(t, ts, event.Timestamp)
}
