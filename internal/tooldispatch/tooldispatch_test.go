package tooldispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	eventlogmem "github.com/mindscape-ai/core/internal/eventlog/inmem"
	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/telemetry"
)

type fixedConnStore struct {
	conn *Connection
	err  error
}

func (f fixedConnStore) Get(context.Context, string, string) (*Connection, error) {
	return f.conn, f.err
}

type stubAdapter struct {
	result ports.ToolInvocationResult
	err    error
	calls  int
}

func (a *stubAdapter) Invoke(context.Context, *Connection, string, map[string]any, ports.ToolInvocationRequest) (ports.ToolInvocationResult, error) {
	a.calls++
	return a.result, a.err
}

func newTestDispatcher(conn *Connection, adapter Adapter) (*Dispatcher, *eventlogmem.Store) {
	events := eventlogmem.New(16)
	d := New(fixedConnStore{conn: conn}, events, telemetry.NewNoopLogger())
	if adapter != nil {
		d.RegisterAdapter(conn.ConnectionType, adapter)
	}
	return d, events
}

func TestInvokeWriteActionOnReadonlyConnectionIsDeniedWithoutDispatch(t *testing.T) {
	conn := &Connection{ID: "conn-1", ConnectionType: ConnectionLocal, DefaultReadonly: true}
	adapter := &stubAdapter{result: ports.ToolInvocationResult{Success: true}}
	d, _ := newTestDispatcher(conn, adapter)

	_, err := d.Invoke(context.Background(), ports.ToolInvocationRequest{
		WorkspaceID:    "ws-1",
		ConnectionCode: "conn-1",
		Action:         "create_event",
	})
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Zero(t, adapter.calls, "a denied write must never reach the adapter")
}

func TestInvokeReadActionOnReadonlyConnectionDispatches(t *testing.T) {
	conn := &Connection{ID: "conn-1", ConnectionType: ConnectionLocal, DefaultReadonly: true}
	adapter := &stubAdapter{result: ports.ToolInvocationResult{Success: true}}
	d, _ := newTestDispatcher(conn, adapter)

	result, err := d.Invoke(context.Background(), ports.ToolInvocationRequest{
		WorkspaceID:    "ws-1",
		ConnectionCode: "conn-1",
		Action:         "list_events",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, adapter.calls)
}

func TestInvokeWriteActionOnWritableConnectionDispatches(t *testing.T) {
	conn := &Connection{ID: "conn-1", ConnectionType: ConnectionLocal, DefaultReadonly: false}
	adapter := &stubAdapter{result: ports.ToolInvocationResult{Success: true}}
	d, _ := newTestDispatcher(conn, adapter)

	result, err := d.Invoke(context.Background(), ports.ToolInvocationRequest{
		WorkspaceID:    "ws-1",
		ConnectionCode: "conn-1",
		Action:         "create_event",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, adapter.calls)
}

func TestInvokeRepeatedIdempotencyKeyReplaysCachedResultWithoutReinvokingAdapter(t *testing.T) {
	conn := &Connection{ID: "conn-1", ConnectionType: ConnectionLocal}
	adapter := &stubAdapter{result: ports.ToolInvocationResult{Success: true, Result: map[string]any{"id": "1"}}}
	d, _ := newTestDispatcher(conn, adapter)

	req := ports.ToolInvocationRequest{WorkspaceID: "ws-1", ConnectionCode: "conn-1", Action: "create_event", IdempotencyKey: "key-1"}
	first, err := d.Invoke(context.Background(), req)
	require.NoError(t, err)
	second, err := d.Invoke(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, adapter.calls, "a repeated idempotency key must not re-invoke the adapter")
}

func TestInvokeNoAdapterRegisteredForConnectionTypeFails(t *testing.T) {
	conn := &Connection{ID: "conn-1", ConnectionType: ConnectionMCP}
	d, _ := newTestDispatcher(conn, nil)

	_, err := d.Invoke(context.Background(), ports.ToolInvocationRequest{WorkspaceID: "ws-1", ConnectionCode: "conn-1", Action: "search"})
	require.Error(t, err)
}
