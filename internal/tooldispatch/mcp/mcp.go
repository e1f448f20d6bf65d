// Package mcp implements tooldispatch.Adapter for ConnectionMCP
// connections, grounded on the teacher's runtime/mcp Caller (CallTool
// over JSON-RPC, transport-agnostic) and runtime/mcp/retry's
// RetryableError repair-prompt convention for invalid-params responses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/tooldispatch"
)

// JSON-RPC canonical error codes, per the MCP spec.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Caller invokes an MCP tool over whatever transport the concrete client
// uses (stdio, HTTP+SSE); implementations live outside this package.
type Caller interface {
	CallTool(ctx context.Context, req CallRequest) (CallResponse, error)
}

// CallRequest describes one MCP tools/call invocation.
type CallRequest struct {
	Suite   string
	Tool    string
	Payload json.RawMessage
}

// CallResponse is the MCP tool result.
type CallResponse struct {
	Result     json.RawMessage
	Structured json.RawMessage
}

// Error is a JSON-RPC error returned by the MCP server.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// CallerResolver resolves the MCP Caller (and suite name) for a
// Connection, since distinct MCP servers may back distinct tool_types.
type CallerResolver interface {
	Resolve(conn *tooldispatch.Connection) (caller Caller, suite string, err error)
}

// Adapter routes MCP tool_call invocations through a resolved Caller.
type Adapter struct {
	resolver CallerResolver
}

// New constructs an MCP Adapter.
func New(resolver CallerResolver) *Adapter {
	return &Adapter{resolver: resolver}
}

// Invoke implements tooldispatch.Adapter. action is passed as the
// MCP-local tool name; params are marshaled as the call's JSON payload.
func (a *Adapter) Invoke(ctx context.Context, conn *tooldispatch.Connection, action string, params map[string]any, _ ports.ToolInvocationRequest) (ports.ToolInvocationResult, error) {
	caller, suite, err := a.resolver.Resolve(conn)
	if err != nil {
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/mcp: resolve caller: %w", err)
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/mcp: encode params: %w", err)
	}

	resp, err := caller.CallTool(ctx, CallRequest{Suite: suite, Tool: action, Payload: payload})
	if err != nil {
		var rpcErr *Error
		if isInvalidParams(err, &rpcErr) {
			return ports.ToolInvocationResult{
				Success: false,
				Error: &ports.ToolInvocationError{
					Code:    "tool_call_malformed",
					Message: rpcErr.Message,
				},
			}, nil
		}
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/mcp: call tool: %w", err)
	}

	var result map[string]any
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/mcp: decode result: %w", err)
		}
	}
	return ports.ToolInvocationResult{Success: true, Result: result}, nil
}

func isInvalidParams(err error, target **Error) bool {
	rpcErr, ok := err.(*Error)
	if !ok || rpcErr.Code != CodeInvalidParams {
		return false
	}
	*target = rpcErr
	return true
}
