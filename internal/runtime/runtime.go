package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindscape-ai/core/internal/capability"
	"github.com/mindscape-ai/core/internal/engine"
	"github.com/mindscape-ai/core/internal/execctx"
	"github.com/mindscape-ai/core/internal/playbook"
	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/telemetry"
)

// WorkflowName is the logical engine.WorkflowDefinition name under which
// the Playbook Runtime registers its session executor.
const WorkflowName = "playbook_session"

// Default timeouts/caps per §5, used when a playbook or caller does not
// override them.
const (
	DefaultStepTimeout     = 120 * time.Second
	DefaultSessionWallTime = 30 * time.Minute
	DefaultToolTimeout     = 60 * time.Second
)

// Config bundles a session's cost governance caps (§4.6 "Cost
// governance"): a per-profile cap and an absolute cap, either of which
// being exceeded fails the session with cost_cap_exceeded.
type Config struct {
	PerProfileCap map[capability.Profile]float64
	AbsoluteCap   float64
}

// Runtime drives ResolvedPlaybook step graphs to completion through an
// engine.Engine, implementing ports.PlaybookExecutor. It generalizes the
// teacher's Runtime (runtime/agent/runtime/runtime.go) from a
// planner/tool-call agent loop to a typed step-graph executor.
type Runtime struct {
	Engine     engine.Engine
	Loader     *playbook.Loader
	Router     *capability.Router
	Tools      ports.Tool
	Artifacts  ports.ArtifactStore
	Events     ports.EventLog
	Store      Store
	Config     Config
	Logger     telemetry.Logger
	TaskQueue  string
}

// New constructs a Runtime and registers its workflow/activities with
// eng. Call Start with a context before the first Run.
func New(eng engine.Engine, loader *playbook.Loader, router *capability.Router, tools ports.Tool, artifacts ports.ArtifactStore, events ports.EventLog, store Store, cfg Config, logger telemetry.Logger, taskQueue string) *Runtime {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Runtime{
		Engine:    eng,
		Loader:    loader,
		Router:    router,
		Tools:     tools,
		Artifacts: artifacts,
		Events:    events,
		Store:     store,
		Config:    cfg,
		Logger:    logger,
		TaskQueue: taskQueue,
	}
}

// Start registers the session workflow and its step-kind activities with
// the engine. Must be called once before the first Run.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.Engine.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:      WorkflowName,
		TaskQueue: r.TaskQueue,
		Handler:   r.sessionWorkflow,
	}); err != nil {
		return fmt.Errorf("runtime: register workflow: %w", err)
	}

	activities := map[string]engine.ActivityFunc{
		string(StepLLMCall):      r.executeLLMCall,
		string(StepToolCall):     r.executeToolCall,
		string(StepDecision):     r.executeDecision,
		string(StepSubPlaybook):  r.executeSubPlaybook,
		string(StepArtifactEmit): r.executeArtifactEmit,
	}
	for name, fn := range activities {
		if err := r.Engine.RegisterActivity(ctx, engine.ActivityDefinition{
			Name:    name,
			Handler: fn,
			Options: engine.ActivityOptions{Queue: r.TaskQueue, Timeout: DefaultStepTimeout},
		}); err != nil {
			return fmt.Errorf("runtime: register activity %q: %w", name, err)
		}
	}
	return nil
}

// sessionInput is the WorkflowStartRequest.Input payload for a session
// execution, constructed by Run.
type sessionInput struct {
	ExecutionID string
	Session     *ExecutionSession
	Resolved    *playbook.ResolvedPlaybook
	ActorCtx    execctx.Context
}

// Run implements ports.PlaybookExecutor, loading req.Code via the
// Loader, constructing a pending ExecutionSession, persisting it, and
// starting the durable engine workflow.
func (r *Runtime) Run(ctx context.Context, req ports.RunRequest) (string, error) {
	resolved, err := r.Loader.Load(ctx, playbook.LoadRequest{
		WorkspaceID: req.WorkspaceID,
		Code:        req.Code,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrKindPlaybookUnusable, err)
	}

	executionID := uuid.NewString()
	steps := make([]StepRecord, len(resolved.Steps))
	for i, s := range resolved.Steps {
		steps[i] = StepRecord{
			StepID:          s.ID,
			Kind:            StepKind(s.Kind),
			State:           StepPending,
			ContinueOnError: s.ContinueOnError,
		}
	}

	session := &ExecutionSession{
		ExecutionID:  executionID,
		WorkspaceID:  req.WorkspaceID,
		PlaybookCode: resolved.Template.Code,
		VariantID:    resolved.VariantID,
		Status:       StatePending,
		Steps:        steps,
		StartedAt:    time.Now().UTC(),
		ActorID:      req.ActorID,
	}
	if err := r.Store.Create(ctx, session); err != nil {
		return "", fmt.Errorf("runtime: persist session: %w", err)
	}

	actorCtx := execctx.New(req.ActorID, req.WorkspaceID, uuid.NewString(), execctx.ModeLocal)

	_, err = r.Engine.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:        executionID,
		Workflow:  WorkflowName,
		TaskQueue: r.TaskQueue,
		Input: sessionInput{
			ExecutionID: executionID,
			Session:     session,
			Resolved:    resolved,
			ActorCtx:    actorCtx,
		},
	})
	if err != nil {
		return "", fmt.Errorf("runtime: start workflow: %w", err)
	}
	r.logEvent(ctx, req.WorkspaceID, executionID, "session_started", map[string]any{"playbook_code": req.Code})
	return executionID, nil
}

// Pause implements ports.PlaybookExecutor.
func (r *Runtime) Pause(ctx context.Context, executionID string) error {
	return r.signal(ctx, executionID, engine.SignalPause)
}

// Resume implements ports.PlaybookExecutor.
func (r *Runtime) Resume(ctx context.Context, executionID string) error {
	return r.signal(ctx, executionID, engine.SignalResume)
}

// Cancel implements ports.PlaybookExecutor.
func (r *Runtime) Cancel(ctx context.Context, executionID string) error {
	return r.signal(ctx, executionID, engine.SignalCancel)
}

func (r *Runtime) signal(ctx context.Context, executionID, name string) error {
	handle, err := r.handleFor(ctx, executionID)
	if err != nil {
		return err
	}
	return handle.Signal(ctx, name, struct{}{})
}

// handleFor is a placeholder resolution point: engines that support
// signaling by ID (e.g. the Temporal adapter's SignalByID) are expected
// to be wrapped by a thin WorkflowHandle adapter at composition root
// wiring time when a live handle is not held in-process.
func (r *Runtime) handleFor(_ context.Context, executionID string) (engine.WorkflowHandle, error) {
	return nil, fmt.Errorf("runtime: no in-process handle for execution %q; signal through the engine's ID-based API", executionID)
}

// Status implements ports.PlaybookExecutor by reading the persisted
// ExecutionSession; all reads derive from the Store, never from
// in-process workflow state, per §4.10's "no component infers state by
// peeking at others' internal memory".
func (r *Runtime) Status(ctx context.Context, executionID string) (ports.ExecutionStatus, error) {
	session, err := r.Store.Get(ctx, executionID)
	if err != nil {
		return ports.ExecutionStatus{}, err
	}
	return ports.ExecutionStatus{
		ExecutionID: session.ExecutionID,
		State:       string(session.Status),
		CostSpent:   session.CostAccrued,
		UpdatedAt:   time.Now().UTC(),
		FailureKind: session.FailureKind,
	}, nil
}

func (r *Runtime) logEvent(ctx context.Context, workspaceID, executionID, kind string, details map[string]any) {
	if r.Events == nil {
		return
	}
	_ = r.Events.Append(ctx, ports.Event{
		WorkspaceID: workspaceID,
		ExecutionID: executionID,
		Kind:        kind,
		Message:     kind,
		Details:     details,
		OccurredAt:  time.Now().UTC(),
	})
}
