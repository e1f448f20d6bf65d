// Package local implements tooldispatch.Adapter for ConnectionLocal
// connections: in-process Go functions registered by tool_type.action,
// generalizing the teacher's runtime/toolregistry/executor in-process
// dispatch without its Pulse-stream output plumbing (no child-agent
// delta streaming is needed for a single tool call).
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/tooldispatch"
)

// Handler executes one local tool action.
type Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

// Adapter routes to registered Handlers keyed by "tool_type.action".
type Adapter struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New constructs an empty local Adapter.
func New() *Adapter {
	return &Adapter{handlers: make(map[string]Handler)}
}

// Register binds a Handler to toolType.action.
func (a *Adapter) Register(toolType, action string, h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[key(toolType, action)] = h
}

// Invoke implements tooldispatch.Adapter.
func (a *Adapter) Invoke(ctx context.Context, conn *tooldispatch.Connection, action string, params map[string]any, _ ports.ToolInvocationRequest) (ports.ToolInvocationResult, error) {
	a.mu.RLock()
	h, ok := a.handlers[key(conn.ToolType, action)]
	a.mu.RUnlock()
	if !ok {
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/local: no handler registered for %s.%s", conn.ToolType, action)
	}

	result, err := h(ctx, params)
	if err != nil {
		return ports.ToolInvocationResult{
			Success: false,
			Error:   &ports.ToolInvocationError{Code: "tool_error", Message: err.Error()},
		}, nil
	}
	return ports.ToolInvocationResult{Success: true, Result: result}, nil
}

func key(toolType, action string) string { return toolType + "." + action }
