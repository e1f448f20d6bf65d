package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindscape-ai/core/internal/runtime"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	session := &runtime.ExecutionSession{ExecutionID: "exec-1", WorkspaceID: "ws-1", Status: runtime.StateRunning}
	require.NoError(t, store.Create(ctx, session))

	got, err := store.Get(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, "exec-1", got.ExecutionID)
	require.Equal(t, "ws-1", got.WorkspaceID)
	require.Equal(t, runtime.StateRunning, got.Status)
}

func TestGetUnknownExecutionReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRejectsTerminalSession(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Create(ctx, &runtime.ExecutionSession{ExecutionID: "exec-1", Status: runtime.StateCompleted}))

	err := store.Update(ctx, &runtime.ExecutionSession{ExecutionID: "exec-1", Status: runtime.StateRunning})
	require.ErrorIs(t, err, runtime.ErrTerminal)
}

func TestUpdatePersistsStepProgress(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Create(ctx, &runtime.ExecutionSession{ExecutionID: "exec-1", Status: runtime.StateRunning}))

	updated := &runtime.ExecutionSession{
		ExecutionID:      "exec-1",
		Status:           runtime.StateRunning,
		CurrentStepIndex: 2,
		CostAccrued:      1.5,
	}
	require.NoError(t, store.Update(ctx, updated))

	got, err := store.Get(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, 2, got.CurrentStepIndex)
	require.Equal(t, 1.5, got.CostAccrued)
}

func TestListByWorkspaceFiltersByWorkspace(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Create(ctx, &runtime.ExecutionSession{ExecutionID: "a", WorkspaceID: "ws-1"}))
	require.NoError(t, store.Create(ctx, &runtime.ExecutionSession{ExecutionID: "b", WorkspaceID: "ws-2"}))
	require.NoError(t, store.Create(ctx, &runtime.ExecutionSession{ExecutionID: "c", WorkspaceID: "ws-1"}))

	sessions, err := store.ListByWorkspace(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
}
