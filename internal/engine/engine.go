// Package engine defines the durable workflow engine abstraction used by
// the Playbook Runtime, kept in the same shape as the teacher's
// runtime/agent/engine package so Temporal and in-memory backends remain
// swappable without touching the runtime's step-execution logic. §4.6.
package engine

import (
	"context"
	"time"

	"github.com/mindscape-ai/core/internal/telemetry"
)

type (
	// Engine abstracts workflow registration and execution so adapters
	// (Temporal, in-memory) can be swapped without touching the Playbook
	// Runtime.
	Engine interface {
		// RegisterWorkflow registers a workflow definition with the engine.
		// Called once at composition-root startup before any run starts.
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error

		// RegisterActivity registers an activity definition with the engine.
		RegisterActivity(ctx context.Context, def ActivityDefinition) error

		// StartWorkflow initiates a new execution session and returns a
		// handle for interacting with it. req.ID must be unique for the
		// engine instance (it is the ExecutionSession's execution_id).
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
	}

	// WorkflowDefinition binds a workflow handler (one per playbook step
	// graph shape) to a logical name and default queue.
	WorkflowDefinition struct {
		Name      string
		TaskQueue string
		Handler   WorkflowFunc
	}

	// WorkflowFunc is the Playbook Runtime's session entry point. It must
	// be deterministic: the same inputs and activity results must always
	// produce the same execution sequence.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes engine operations to the running session
	// within the deterministic execution environment. Implementations
	// must ensure deterministic replay; the session must never perform
	// direct I/O, random generation, or wall-clock reads outside Now().
	//
	// WorkflowContext is bound to a single execution and must not be
	// shared across goroutines.
	WorkflowContext interface {
		Context() context.Context
		WorkflowID() string
		RunID() string

		// ExecuteActivity schedules a step-kind activity (llm_call,
		// tool_call, decision, sub_playbook, artifact_emit) and blocks for its
		// result.
		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error
		// ExecuteActivityAsync schedules an activity without blocking,
		// returning a Future resolved later via Get.
		ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)

		// SignalChannel returns the channel for pause/resume/cancel
		// signals delivered to a running session.
		SignalChannel(name string) SignalChannel

		Logger() telemetry.Logger
		Metrics() telemetry.Metrics
		Tracer() telemetry.Tracer

		// Now returns the current time in a deterministic, replay-safe way.
		Now() time.Time
	}

	// Future represents a pending activity result from
	// ExecuteActivityAsync, used when the Playbook Runtime fans out
	// independent steps (parallel DAG branches).
	Future interface {
		Get(ctx context.Context, result any) error
		IsReady() bool
	}

	// ActivityDefinition registers an activity handler.
	ActivityDefinition struct {
		Name    string
		Handler ActivityFunc
		Options ActivityOptions
	}

	// ActivityFunc handles a step-kind activity invocation. Unlike
	// workflows, activities may perform side effects (model calls, tool
	// calls, artifact writes).
	ActivityFunc func(ctx context.Context, input any) (any, error)

	// ActivityOptions configures retry/timeout behavior for an activity.
	ActivityOptions struct {
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowStartRequest describes how to launch an ExecutionSession.
	WorkflowStartRequest struct {
		ID               string
		Workflow         string
		TaskQueue        string
		Input            any
		Memo             map[string]any
		SearchAttributes map[string]any
		RetryPolicy      RetryPolicy
	}

	// ActivityRequest contains the info needed to schedule an activity
	// from a running session.
	ActivityRequest struct {
		Name        string
		Input       any
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowHandle lets callers interact with a running execution
	// session: wait for completion, signal pause/resume, or cancel.
	WorkflowHandle interface {
		Wait(ctx context.Context, result any) error
		Signal(ctx context.Context, name string, payload any) error
		Cancel(ctx context.Context) error
	}

	// RetryPolicy defines retry semantics shared by workflows and
	// activities. Zero-valued fields mean the engine uses its defaults.
	RetryPolicy struct {
		MaxAttempts        int
		InitialInterval    time.Duration
		BackoffCoefficient float64
	}

	// SignalChannel exposes signal delivery (pause/resume/cancel/human
	// input) in an engine-agnostic way.
	SignalChannel interface {
		Receive(ctx context.Context, dest any) error
		ReceiveAsync(dest any) bool
	}
)

// Signal names recognized by the Playbook Runtime's session loop.
const (
	SignalPause  = "pause"
	SignalResume = "resume"
	SignalCancel = "cancel"
)
