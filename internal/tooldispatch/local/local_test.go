package local

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/tooldispatch"
)

func TestInvokeNoHandlerRegisteredFails(t *testing.T) {
	a := New()
	conn := &tooldispatch.Connection{ToolType: "files"}
	_, err := a.Invoke(context.Background(), conn, "read", nil, ports.ToolInvocationRequest{})
	require.Error(t, err)
}

func TestInvokeRoutesToRegisteredHandlerByToolTypeAndAction(t *testing.T) {
	a := New()
	var gotParams map[string]any
	a.Register("files", "read", func(_ context.Context, params map[string]any) (map[string]any, error) {
		gotParams = params
		return map[string]any{"content": "hello"}, nil
	})
	a.Register("files", "write", func(context.Context, map[string]any) (map[string]any, error) {
		t.Fatal("write handler must not be invoked for a read action")
		return nil, nil
	})

	conn := &tooldispatch.Connection{ToolType: "files"}
	result, err := a.Invoke(context.Background(), conn, "read", map[string]any{"path": "a.txt"}, ports.ToolInvocationRequest{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "hello", result.Result["content"])
	require.Equal(t, "a.txt", gotParams["path"])
}

func TestInvokeHandlerErrorReturnsFailedResultNotError(t *testing.T) {
	a := New()
	a.Register("files", "read", func(context.Context, map[string]any) (map[string]any, error) {
		return nil, errors.New("disk exploded")
	})

	conn := &tooldispatch.Connection{ToolType: "files"}
	result, err := a.Invoke(context.Background(), conn, "read", nil, ports.ToolInvocationRequest{})
	require.NoError(t, err, "a handler error becomes a failed result, not a Go error")
	require.False(t, result.Success)
	require.Equal(t, "tool_error", result.Error.Code)
	require.Equal(t, "disk exploded", result.Error.Message)
}
