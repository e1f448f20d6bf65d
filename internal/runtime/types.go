// Package runtime implements the Playbook Runtime: the session/step
// executor that drives a ResolvedPlaybook's step graph to completion
// through the engine.Engine abstraction. It generalizes the teacher's
// runtime/agent/runtime workflow loop (workflow_loop.go, workflow_turn.go,
// workflow_state.go, session_lifecycle.go) from a single-agent
// planner/tool-call turn loop to a typed step-graph executor, and its
// engine.Engine/engine.WorkflowContext split (engine/engine.go, with
// Temporal and in-memory adapters) is kept unchanged in shape. §4.6.
package runtime

import (
	"time"
)

// State is an ExecutionSession's lifecycle state.
type State string

const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateAwaitingTool State = "awaiting_tool"
	StatePaused       State = "paused"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether s is a sink state; once reached, no further
// mutation to status/current_step_index is permitted.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// StepKind is a step graph node's execution kind.
type StepKind string

const (
	StepLLMCall      StepKind = "llm_call"
	StepToolCall     StepKind = "tool_call"
	StepDecision     StepKind = "decision"
	StepSubPlaybook  StepKind = "sub_playbook"
	StepArtifactEmit StepKind = "artifact_emit"
)

// StepState is a single StepRecord's execution state.
type StepState string

const (
	StepPending     StepState = "pending"
	StepRunning     StepState = "running"
	StepWaitingTool StepState = "waiting_tool"
	StepSucceeded   StepState = "succeeded"
	StepFailed      StepState = "failed"
	StepSkipped     StepState = "skipped"
)

// ExecutionSession is one run of a playbook. Append-only aside from
// Status, CurrentStepIndex, and CostAccrued; once Status.Terminal(), no
// further mutation is permitted.
type ExecutionSession struct {
	ExecutionID      string
	WorkspaceID      string
	ProjectID        string
	PlaybookCode     string
	VariantID        string
	TurnID           string // supplements the spec's session fields, grounded on run.Context.TurnID
	Status           State
	CurrentStepIndex int
	Steps            []StepRecord
	ArtifactIDs      []string
	CostAccrued      float64
	StartedAt        time.Time
	CompletedAt      *time.Time
	PausedReason     string
	FailureKind      string
	ActorID          string
}

// StepRecord is one step graph node's execution record.
type StepRecord struct {
	StepID            string
	Kind              StepKind
	CapabilityProfile string
	InputsIR          map[string]any
	OutputsIR         map[string]any
	ToolCalls         []ToolCallRecord
	Errors            []string
	State             StepState
	Attempt           int
	IdempotencyKey    string
	ContinueOnError   bool
	StartedAt         time.Time
	CompletedAt       *time.Time
}

// ToolCallRecord is one dispatched tool call's outcome within a step.
type ToolCallRecord struct {
	ConnectionCode string
	Action         string
	Args           map[string]any
	Success        bool
	Result         map[string]any
	ErrorCode      string
}

// Error kinds per §7, used as sentinel-style string codes attached to
// ExecutionSession/StepRecord failures and surfaced as typed errors, never
// raw provider strings.
const (
	ErrKindProviderUnavailable    = "provider_unavailable"
	ErrKindSchemaViolation        = "schema_violation"
	ErrKindToolCallMalformed      = "tool_call_malformed"
	ErrKindPermissionDenied       = "permission_denied"
	ErrKindStepTimeout            = "step_timeout"
	ErrKindCostCapExceeded        = "cost_cap_exceeded"
	ErrKindSandboxDenied          = "sandbox_denied"
	ErrKindCancelled              = "cancelled"
	ErrKindSignalExtractionFailed = "signal_extraction_failed"
	ErrKindPlaybookUnusable       = "playbook_unusable"
	ErrKindPersistenceConflict    = "persistence_conflict"
)
