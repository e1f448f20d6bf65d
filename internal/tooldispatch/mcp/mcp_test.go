package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/tooldispatch"
)

type fixedResolver struct {
	caller Caller
	suite  string
	err    error
}

func (f fixedResolver) Resolve(*tooldispatch.Connection) (Caller, string, error) {
	return f.caller, f.suite, f.err
}

type scriptedCaller struct {
	resp   CallResponse
	err    error
	gotReq CallRequest
}

func (c *scriptedCaller) CallTool(_ context.Context, req CallRequest) (CallResponse, error) {
	c.gotReq = req
	return c.resp, c.err
}

func TestInvokeCallsResolvedCallerWithSuiteAndPayload(t *testing.T) {
	caller := &scriptedCaller{resp: CallResponse{Result: json.RawMessage(`{"ok":true}`)}}
	a := New(fixedResolver{caller: caller, suite: "project-suite"})

	conn := &tooldispatch.Connection{ID: "conn-1"}
	result, err := a.Invoke(context.Background(), conn, "search", map[string]any{"q": "weekly report"}, ports.ToolInvocationRequest{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, true, result.Result["ok"])
	require.Equal(t, "project-suite", caller.gotReq.Suite)
	require.Equal(t, "search", caller.gotReq.Tool)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(caller.gotReq.Payload, &payload))
	require.Equal(t, "weekly report", payload["q"])
}

func TestInvokeInvalidParamsErrorBecomesMalformedResult(t *testing.T) {
	caller := &scriptedCaller{err: &Error{Code: CodeInvalidParams, Message: "missing field q"}}
	a := New(fixedResolver{caller: caller})

	conn := &tooldispatch.Connection{ID: "conn-1"}
	result, err := a.Invoke(context.Background(), conn, "search", nil, ports.ToolInvocationRequest{})
	require.NoError(t, err, "an invalid-params RPC error becomes a failed result, not a Go error")
	require.False(t, result.Success)
	require.Equal(t, "tool_call_malformed", result.Error.Code)
	require.Equal(t, "missing field q", result.Error.Message)
}

func TestInvokeOtherRPCErrorPropagatesAsGoError(t *testing.T) {
	caller := &scriptedCaller{err: &Error{Code: CodeInternalError, Message: "server exploded"}}
	a := New(fixedResolver{caller: caller})

	conn := &tooldispatch.Connection{ID: "conn-1"}
	_, err := a.Invoke(context.Background(), conn, "search", nil, ports.ToolInvocationRequest{})
	require.Error(t, err)
}
