package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindscape-ai/core/internal/ports"
)

func TestAppendRequiresWorkspaceID(t *testing.T) {
	s := New(0)
	err := s.Append(context.Background(), ports.Event{Kind: "test"})
	require.Error(t, err)
}

func TestAppendAssignsIDAndTimestampWhenUnset(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-1", Kind: "test"}))

	got, err := s.Range(ctx, "ws-1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotEmpty(t, got[0].ID)
	require.False(t, got[0].OccurredAt.IsZero())
}

func TestRangeFiltersBySinceAndLimit(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-1", Kind: "a", OccurredAt: base.Add(-time.Hour)}))
	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-1", Kind: "b", OccurredAt: base}))
	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-1", Kind: "c", OccurredAt: base.Add(time.Hour)}))

	since, err := s.Range(ctx, "ws-1", base, 0)
	require.NoError(t, err)
	require.Len(t, since, 2, "events strictly before `since` are excluded")

	limited, err := s.Range(ctx, "ws-1", time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRingBufferBoundsRetainedEventsPerWorkspace(t *testing.T) {
	s := New(2)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-1", Kind: "a"}))
	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-1", Kind: "b"}))
	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-1", Kind: "c"}))

	got, err := s.Range(ctx, "ws-1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "b", got[0].Kind, "oldest event must be evicted once the ring is full")
	require.Equal(t, "c", got[1].Kind)
}

func TestSubscribeReceivesSubsequentAppendsNotPriorOnes(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-1", Kind: "before"}))

	ch, cancel, err := s.Subscribe(ctx, "ws-1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-1", Kind: "after"}))

	select {
	case e := <-ch:
		require.Equal(t, "after", e.Kind)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the event in time")
	}
}

func TestSubscribeIsIsolatedPerWorkspace(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	ch, cancel, err := s.Subscribe(ctx, "ws-1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, s.Append(ctx, ports.Event{WorkspaceID: "ws-2", Kind: "other"}))

	select {
	case e := <-ch:
		t.Fatalf("unexpected event from another workspace: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
