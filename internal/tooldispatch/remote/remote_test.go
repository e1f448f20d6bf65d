package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/tooldispatch"
)

func TestInvokePostsToExactToolTypeActionURL(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wireResponse{Success: true, Result: map[string]any{"ok": true}})
	}))
	defer srv.Close()

	a := New()
	conn := &tooldispatch.Connection{
		ID:               "conn-1",
		ToolType:         "calendar",
		RemoteClusterURL: srv.URL,
		RemoteConfig:     map[string]any{"api_token": "secret-token"},
	}

	result, err := a.Invoke(context.Background(), conn, "create_event", map[string]any{"title": "standup"}, ports.ToolInvocationRequest{WorkspaceID: "ws-1", ExecutionID: "exec-1"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "/v1/tools/calendar.create_event", gotPath, "on-wire URL must be exactly {base}/v1/tools/{tool_type}.{action}")
	require.Equal(t, "Bearer secret-token", gotAuth)
}

func TestInvokeMissingRemoteClusterURLFails(t *testing.T) {
	a := New()
	conn := &tooldispatch.Connection{ID: "conn-1", ToolType: "calendar"}
	_, err := a.Invoke(context.Background(), conn, "create_event", nil, ports.ToolInvocationRequest{})
	require.Error(t, err)
}

func TestInvokeNonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New()
	conn := &tooldispatch.Connection{ID: "conn-1", ToolType: "calendar", RemoteClusterURL: srv.URL}
	_, err := a.Invoke(context.Background(), conn, "create_event", nil, ports.ToolInvocationRequest{})
	require.Error(t, err)
}

func TestInvokeSurfacesWireErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wireResponse{
			Success: false,
			Error:   &ports.ToolInvocationError{Code: "tool_call_malformed", Message: "bad input"},
		})
	}))
	defer srv.Close()

	a := New()
	conn := &tooldispatch.Connection{ID: "conn-1", ToolType: "calendar", RemoteClusterURL: srv.URL}
	result, err := a.Invoke(context.Background(), conn, "create_event", nil, ports.ToolInvocationRequest{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "tool_call_malformed", result.Error.Code)
}
