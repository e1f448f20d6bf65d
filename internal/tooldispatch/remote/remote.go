// Package remote implements tooldispatch.Adapter for ConnectionRemote
// connections: bearer-authenticated HTTP calls to
// {base}/v1/tools/{tool_type}.{action}, grounded on the teacher's
// runtime/a2a/httpclient JSON-over-HTTP client shape (request
// construction, header injection, typed response decode) adapted from
// its JSON-RPC envelope to the §6 {success, result|error, timestamp}
// envelope.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/tooldispatch"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.http = c }
}

// Adapter posts typed tool requests to a remote cluster's REST surface.
type Adapter struct {
	http *http.Client
}

// New constructs a remote Adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{http: &http.Client{Timeout: 60 * time.Second}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type wireRequest struct {
	Params  map[string]any `json:"params"`
	Context wireContext    `json:"context"`
}

type wireContext struct {
	WorkspaceID string `json:"workspace_id"`
	ExecutionID string `json:"execution_id"`
}

type wireResponse struct {
	Success   bool                       `json:"success"`
	Result    map[string]any             `json:"result,omitempty"`
	Error     *ports.ToolInvocationError `json:"error,omitempty"`
	Timestamp string                     `json:"timestamp"`
}

// Invoke implements tooldispatch.Adapter, posting to exactly
// {base_url}/v1/tools/{tool_type}.{action} per §6's remote tool wire
// protocol, bit-exact for compatibility.
func (a *Adapter) Invoke(ctx context.Context, conn *tooldispatch.Connection, action string, params map[string]any, req ports.ToolInvocationRequest) (ports.ToolInvocationResult, error) {
	if conn.RemoteClusterURL == "" {
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/remote: connection %q has no remote_cluster_url", conn.ID)
	}

	url := fmt.Sprintf("%s/v1/tools/%s.%s", conn.RemoteClusterURL, conn.ToolType, action)
	body, err := json.Marshal(wireRequest{
		Params: params,
		Context: wireContext{
			WorkspaceID: req.WorkspaceID,
			ExecutionID: req.ExecutionID,
		},
	})
	if err != nil {
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/remote: encode request: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/remote: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+remoteToken(conn))

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/remote: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/remote: unexpected status %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return ports.ToolInvocationResult{}, fmt.Errorf("tooldispatch/remote: decode response: %w", err)
	}

	return ports.ToolInvocationResult{
		Success: wire.Success,
		Result:  wire.Result,
		Error:   wire.Error,
	}, nil
}

func remoteToken(conn *tooldispatch.Connection) string {
	if conn.RemoteConfig == nil {
		return ""
	}
	if tok, ok := conn.RemoteConfig["api_token"].(string); ok {
		return tok
	}
	return ""
}
