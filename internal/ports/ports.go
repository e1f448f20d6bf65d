// Package ports declares the capability interfaces the core depends on:
// Identity, CancelToken, LLM, Embedding, VectorStore, Tool,
// PlaybookExecutor, ArtifactStore, and EventLog. Concrete adapters (local
// single-user, remote multi-tenant) live outside this package and are wired
// at the composition root; core components never import an adapter
// directly, only the port.
package ports

import (
	"context"
	"time"

	"github.com/mindscape-ai/core/internal/execctx"
	"github.com/mindscape-ai/core/internal/model"
)

type (
	// Identity resolves a caller token into an ExecutionContext. The local
	// adapter resolves a fixed single-user identity; the remote adapter
	// resolves against a multi-tenant session store.
	Identity interface {
		Resolve(ctx context.Context, token string) (execctx.Context, error)
	}

	// CancelToken is consulted at every suspension point inside a running
	// step. It is backed by a context.Context at the adapter boundary but
	// kept as its own type so the runtime can hold it independent of any
	// one call's context lifetime.
	CancelToken interface {
		Done() <-chan struct{}
		Err() error
	}

	// LLM is the chat capability used by every LLM-backed component
	// (Intent Extractor, Intent Steward, Execution Decision Pipeline,
	// Playbook Runtime llm_call steps). handle identifies a capability
	// profile resolved by the Capability Router, not a raw model name.
	LLM interface {
		Chat(ctx context.Context, handle string, req *model.Request, cancel CancelToken) (*model.Response, error)
	}

	// Embedding produces vector embeddings for a batch of texts.
	Embedding interface {
		Embed(ctx context.Context, texts []string) ([][]float32, error)
	}

	// VectorStore upserts and searches embeddings, scoped per workspace.
	VectorStore interface {
		Upsert(ctx context.Context, workspaceID string, id string, vector []float32, metadata map[string]any) error
		Search(ctx context.Context, workspaceID string, vector []float32, topK int) ([]VectorMatch, error)
		Delete(ctx context.Context, workspaceID string, id string) error
	}

	// VectorMatch is one VectorStore.Search result.
	VectorMatch struct {
		ID       string
		Score    float32
		Metadata map[string]any
	}

	// Tool dispatches a single tool invocation through whichever connection
	// type (local, remote-HTTP, MCP) the ToolConnection declares. §4.8.
	Tool interface {
		Invoke(ctx context.Context, req ToolInvocationRequest) (ToolInvocationResult, error)
	}

	// ToolInvocationRequest carries everything Tool Dispatch needs to route
	// and correlate one call.
	ToolInvocationRequest struct {
		WorkspaceID    string
		ExecutionID    string
		ConnectionCode string
		Action         string
		Params         map[string]any
		IdempotencyKey string
		Timeout        time.Duration
	}

	// ToolInvocationResult is the normalized outcome of a tool call,
	// regardless of connection type.
	ToolInvocationResult struct {
		Success bool
		Result  map[string]any
		Error   *ToolInvocationError
	}

	// ToolInvocationError carries the wire-protocol error shape from §6.
	ToolInvocationError struct {
		Code    string
		Message string
		Details map[string]any
	}

	// PlaybookExecutor runs/pauses/resumes/cancels a playbook execution and
	// reports status. This is the port the CLI's run-playbook subcommand
	// and any external caller use; the Playbook Runtime is the concrete
	// implementation.
	PlaybookExecutor interface {
		Run(ctx context.Context, req RunRequest) (string, error)
		Pause(ctx context.Context, executionID string) error
		Resume(ctx context.Context, executionID string) error
		Cancel(ctx context.Context, executionID string) error
		Status(ctx context.Context, executionID string) (ExecutionStatus, error)
	}

	// RunRequest starts a new playbook execution.
	RunRequest struct {
		WorkspaceID string
		Code        string
		Version     string
		Inputs      map[string]any
		ActorID     string
	}

	// ExecutionStatus is a point-in-time snapshot of an execution.
	ExecutionStatus struct {
		ExecutionID string
		State       string
		CostSpent   float64
		UpdatedAt   time.Time
		FailureKind string
	}

	// ArtifactStore writes, registers, and lists sandboxed artifacts. §4.7.
	ArtifactStore interface {
		Write(ctx context.Context, workspaceID, executionID, name string, content []byte) (string, error)
		Register(ctx context.Context, workspaceID, executionID, stagingPath, finalName string) (string, error)
		List(ctx context.Context, workspaceID, executionID string) ([]ArtifactRecord, error)
	}

	// ArtifactRecord describes one registered artifact.
	ArtifactRecord struct {
		ID          string
		Name        string
		Path        string
		SizeBytes   int64
		ContentHash string
		CreatedAt   time.Time
	}

	// EventLog appends and range-queries the append-only workspace timeline.
	// §4.10.
	EventLog interface {
		Append(ctx context.Context, event Event) error
		Range(ctx context.Context, workspaceID string, since time.Time, limit int) ([]Event, error)
		Subscribe(ctx context.Context, workspaceID string) (<-chan Event, func(), error)
	}

	// Event is one append-only Event Log entry.
	Event struct {
		ID          string
		WorkspaceID string
		ExecutionID string
		Kind        string
		Message     string
		Details     map[string]any
		OccurredAt  time.Time
	}
)
