package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/mindscape-ai/core/internal/capability"
	"github.com/mindscape-ai/core/internal/engine"
	"github.com/mindscape-ai/core/internal/execctx"
	"github.com/mindscape-ai/core/internal/model"
	"github.com/mindscape-ai/core/internal/playbook"
	"github.com/mindscape-ai/core/internal/ports"
)

// stepActivityInput is the payload scheduled for every step-kind
// activity, generalizing the teacher's tool-call/model-call activity
// inputs (runtime/agent/runtime/execute_tool_calls_*.go) into one typed
// envelope shared by all five StepKinds.
type stepActivityInput struct {
	ExecutionID string
	WorkspaceID string
	SessionID   string
	Step        playbook.Step
	ActorCtx    execctx.Context
}

// stepActivityOutput is the normalized result every step-kind activity
// returns to the session workflow.
type stepActivityOutput struct {
	OutputsIR map[string]any
	ToolCalls []ToolCallRecord
	CostUnits float64
	ErrorKind string
	ErrorMsg  string
}

// sessionWorkflow is the engine.WorkflowFunc registered under
// WorkflowName. It walks the resolved playbook's step graph in
// dependency-ordered frontiers, fanning independent steps out in
// parallel within a frontier (§4.6 "step graph/frontier/parallel
// fan-out"), persisting each step's outcome before advancing, and
// honoring pause/resume/cancel signals between frontiers.
func (r *Runtime) sessionWorkflow(wfCtx engine.WorkflowContext, input any) (any, error) {
	in, ok := input.(sessionInput)
	if !ok {
		return nil, fmt.Errorf("runtime: unexpected workflow input type %T", input)
	}
	session := in.Session
	ctx := wfCtx.Context()

	session.Status = StateRunning
	r.saveSession(ctx, session)

	frontiers := computeFrontiers(in.Resolved.Steps)

	for _, frontier := range frontiers {
		if cancelled, reason := r.checkCancel(wfCtx); cancelled {
			return r.finalize(ctx, session, StateCancelled, ErrKindCancelled, reason)
		}
		r.awaitResume(wfCtx)

		type scheduled struct {
			idx    int
			future engine.Future
		}
		var pending []scheduled
		for _, idx := range frontier {
			step := in.Resolved.Steps[idx]
			rec := &session.Steps[idx]
			rec.State = StepRunning
			rec.StartedAt = time.Now().UTC()
			rec.IdempotencyKey = idempotencyKey(session.ExecutionID, step.ID, step.Inputs)
			rec.Attempt++

			future, err := wfCtx.ExecuteActivityAsync(ctx, engine.ActivityRequest{
				Name:    step.Kind,
				Timeout: DefaultStepTimeout,
				Input: stepActivityInput{
					ExecutionID: session.ExecutionID,
					WorkspaceID: session.WorkspaceID,
					SessionID:   session.ExecutionID,
					Step:        step,
					ActorCtx:    in.ActorCtx,
				},
			})
			if err != nil {
				return r.finalize(ctx, session, StateFailed, ErrKindProviderUnavailable, err.Error())
			}
			pending = append(pending, scheduled{idx: idx, future: future})
		}

		for _, sch := range pending {
			step := in.Resolved.Steps[sch.idx]
			rec := &session.Steps[sch.idx]

			var out stepActivityOutput
			err := sch.future.Get(ctx, &out)
			now := time.Now().UTC()
			rec.CompletedAt = &now

			if err != nil {
				rec.State = StepFailed
				rec.Errors = append(rec.Errors, err.Error())
				if !step.ContinueOnError {
					r.saveSession(ctx, session)
					return r.finalize(ctx, session, StateFailed, ErrKindStepTimeout, err.Error())
				}
				rec.State = StepSkipped
				r.saveSession(ctx, session)
				continue
			}

			if out.ErrorKind != "" {
				rec.State = StepFailed
				rec.Errors = append(rec.Errors, out.ErrorMsg)
				if !step.ContinueOnError {
					r.saveSession(ctx, session)
					return r.finalize(ctx, session, StateFailed, out.ErrorKind, out.ErrorMsg)
				}
				rec.State = StepSkipped
				r.saveSession(ctx, session)
				continue
			}

			if err := checkCostCap(r.Config, capability.Profile(step.CapabilityProfile), session.CostAccrued, out.CostUnits); err != nil {
				rec.State = StepFailed
				rec.Errors = append(rec.Errors, err.Error())
				r.saveSession(ctx, session)
				return r.finalize(ctx, session, StateFailed, ErrKindCostCapExceeded, err.Error())
			}

			session.CostAccrued += out.CostUnits
			rec.OutputsIR = out.OutputsIR
			rec.ToolCalls = out.ToolCalls
			rec.State = StepSucceeded
			session.CurrentStepIndex = sch.idx
			r.saveSession(ctx, session)
		}
	}

	return r.finalize(ctx, session, StateCompleted, "", "")
}

// checkCancel drains a non-blocking cancel signal.
func (r *Runtime) checkCancel(wfCtx engine.WorkflowContext) (bool, string) {
	var payload struct{}
	if wfCtx.SignalChannel(engine.SignalCancel).ReceiveAsync(&payload) {
		return true, "cancelled by signal"
	}
	return false, ""
}

// awaitResume blocks on the pause/resume channel when a pause signal has
// been delivered, per §5's pause/resume suspension-point contract: a
// paused session parks between frontiers and resumes only on an explicit
// resume signal.
func (r *Runtime) awaitResume(wfCtx engine.WorkflowContext) {
	var payload struct{}
	if !wfCtx.SignalChannel(engine.SignalPause).ReceiveAsync(&payload) {
		return
	}
	_ = wfCtx.SignalChannel(engine.SignalResume).Receive(wfCtx.Context(), &payload)
}

func (r *Runtime) saveSession(ctx context.Context, session *ExecutionSession) {
	_ = r.Store.Update(ctx, session)
}

func (r *Runtime) finalize(ctx context.Context, session *ExecutionSession, state State, failureKind, failureMsg string) (any, error) {
	now := time.Now().UTC()
	session.Status = state
	session.CompletedAt = &now
	session.FailureKind = failureKind
	r.saveSession(ctx, session)

	kind := "session_completed"
	if state != StateCompleted {
		kind = "session_failed"
	}
	r.logEvent(ctx, session.WorkspaceID, session.ExecutionID, kind, map[string]any{
		"state":        string(state),
		"failure_kind": failureKind,
	})

	if state != StateCompleted {
		return nil, fmt.Errorf("runtime: session %s: %s: %s", session.ExecutionID, failureKind, failureMsg)
	}
	return session, nil
}

// computeFrontiers groups step indices into dependency-ordered levels: a
// step appears in the first frontier where every entry in DependsOn has
// already appeared in an earlier frontier. Steps within one frontier have
// no dependency relationship and are scheduled concurrently.
func computeFrontiers(steps []playbook.Step) [][]int {
	indexByID := make(map[string]int, len(steps))
	for i, s := range steps {
		indexByID[s.ID] = i
	}
	level := make([]int, len(steps))
	for i := range level {
		level[i] = -1
	}

	var resolve func(i int, visiting map[int]bool) int
	resolve = func(i int, visiting map[int]bool) int {
		if level[i] >= 0 {
			return level[i]
		}
		if visiting[i] {
			level[i] = 0
			return 0
		}
		visiting[i] = true
		max := -1
		for _, dep := range steps[i].DependsOn {
			depIdx, ok := indexByID[dep]
			if !ok {
				continue
			}
			if l := resolve(depIdx, visiting); l > max {
				max = l
			}
		}
		level[i] = max + 1
		delete(visiting, i)
		return level[i]
	}

	maxLevel := 0
	for i := range steps {
		l := resolve(i, map[int]bool{})
		if l > maxLevel {
			maxLevel = l
		}
	}

	frontiers := make([][]int, maxLevel+1)
	for i, l := range level {
		frontiers[l] = append(frontiers[l], i)
	}
	return frontiers
}

// executeLLMCall implements the llm_call activity: resolve the step's
// capability profile through the Router and issue one Chat call.
func (r *Runtime) executeLLMCall(ctx context.Context, input any) (any, error) {
	in := input.(stepActivityInput)
	profile := capability.Profile(in.Step.CapabilityProfile)

	llm, err := r.Router.Resolve(ctx, profile, in.ActorCtx, in.SessionID)
	if err != nil {
		return stepActivityOutput{ErrorKind: errKindForResolve(err), ErrorMsg: err.Error()}, nil
	}

	prompt, _ := in.Step.Inputs["prompt"].(string)
	req := &model.Request{
		RunID:    in.ExecutionID,
		Messages: []*model.Message{{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: prompt}}}},
	}
	if schema, ok := in.Step.Inputs["schema"]; ok {
		req.Schema = schema
	}

	resp, err := llm.Chat(ctx, string(profile), req, nil)
	if err != nil {
		return stepActivityOutput{ErrorKind: ErrKindProviderUnavailable, ErrorMsg: err.Error()}, nil
	}

	var text string
	for _, msg := range resp.Content {
		for _, p := range msg.Parts {
			if tp, ok := p.(model.TextPart); ok {
				text += tp.Text
			}
		}
	}
	return stepActivityOutput{
		OutputsIR: map[string]any{"text": text, "stop_reason": resp.StopReason},
		CostUnits: tokenCostUnits(resp),
	}, nil
}

// executeToolCall implements the tool_call activity, dispatching through
// the shared ports.Tool port so local/remote/MCP routing and danger
// gating apply uniformly regardless of step kind.
func (r *Runtime) executeToolCall(ctx context.Context, input any) (any, error) {
	in := input.(stepActivityInput)
	action, _ := in.Step.Inputs["action"].(string)
	connCode, _ := in.Step.Inputs["connection_code"].(string)
	params, _ := in.Step.Inputs["params"].(map[string]any)

	result, err := r.Tools.Invoke(ctx, ports.ToolInvocationRequest{
		WorkspaceID:    in.WorkspaceID,
		ExecutionID:    in.ExecutionID,
		ConnectionCode: connCode,
		Action:         action,
		Params:         params,
		IdempotencyKey: idempotencyKey(in.SessionID, in.Step.ID, params),
		Timeout:        DefaultToolTimeout,
	})
	if err != nil {
		return stepActivityOutput{ErrorKind: ErrKindToolCallMalformed, ErrorMsg: err.Error()}, nil
	}

	call := ToolCallRecord{ConnectionCode: connCode, Action: action, Args: params, Success: result.Success}
	if result.Error != nil {
		call.ErrorCode = result.Error.Code
		return stepActivityOutput{ToolCalls: []ToolCallRecord{call}, ErrorKind: result.Error.Code, ErrorMsg: result.Error.Message}, nil
	}
	call.Result = result.Result
	return stepActivityOutput{OutputsIR: result.Result, ToolCalls: []ToolCallRecord{call}}, nil
}

// executeDecision implements the decision activity: a small structured
// LLM call that selects among a step's declared branches, mirroring the
// typed-schema call pattern used by the Execution Decision Pipeline.
func (r *Runtime) executeDecision(ctx context.Context, input any) (any, error) {
	in := input.(stepActivityInput)
	profile := capability.Profile(in.Step.CapabilityProfile)

	llm, err := r.Router.Resolve(ctx, profile, in.ActorCtx, in.SessionID)
	if err != nil {
		return stepActivityOutput{ErrorKind: errKindForResolve(err), ErrorMsg: err.Error()}, nil
	}

	prompt, _ := in.Step.Inputs["prompt"].(string)
	req := &model.Request{
		RunID:    in.ExecutionID,
		Messages: []*model.Message{{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: prompt}}}},
		Schema:   in.Step.Inputs["schema"],
	}
	resp, err := llm.Chat(ctx, string(profile), req, nil)
	if err != nil {
		return stepActivityOutput{ErrorKind: ErrKindProviderUnavailable, ErrorMsg: err.Error()}, nil
	}

	var text string
	for _, msg := range resp.Content {
		for _, p := range msg.Parts {
			if tp, ok := p.(model.TextPart); ok {
				text += tp.Text
			}
		}
	}
	return stepActivityOutput{
		OutputsIR: map[string]any{"decision": text},
		CostUnits: tokenCostUnits(resp),
	}, nil
}

// executeSubPlaybook implements the sub_playbook activity by loading and
// running the referenced playbook's steps inline, synchronously, inside
// this activity rather than as a nested durable workflow: the engine
// abstraction deliberately has no child-workflow primitive, so
// sub-playbooks are a recursive call into the same step-frontier
// execution the parent session uses.
func (r *Runtime) executeSubPlaybook(ctx context.Context, input any) (any, error) {
	in := input.(stepActivityInput)
	code, _ := in.Step.Inputs["playbook_code"].(string)

	resolved, err := r.Loader.Load(ctx, playbook.LoadRequest{
		WorkspaceID: in.WorkspaceID,
		Code:        code,
	})
	if err != nil {
		return stepActivityOutput{ErrorKind: ErrKindPlaybookUnusable, ErrorMsg: err.Error()}, nil
	}

	frontiers := computeFrontiers(resolved.Steps)
	outputs := make(map[string]any, len(resolved.Steps))
	var totalCost float64
	for _, frontier := range frontiers {
		for _, idx := range frontier {
			step := resolved.Steps[idx]
			out, err := r.executeStepInline(ctx, in, step)
			if err != nil {
				if step.ContinueOnError {
					continue
				}
				return stepActivityOutput{ErrorKind: ErrKindPlaybookUnusable, ErrorMsg: err.Error()}, nil
			}
			if out.ErrorKind != "" && !step.ContinueOnError {
				return stepActivityOutput{ErrorKind: out.ErrorKind, ErrorMsg: out.ErrorMsg}, nil
			}
			totalCost += out.CostUnits
			outputs[step.ID] = out.OutputsIR
		}
	}
	return stepActivityOutput{OutputsIR: map[string]any{"sub_playbook": code, "steps": outputs}, CostUnits: totalCost}, nil
}

// executeStepInline dispatches a single sub-playbook step to its
// step-kind activity function directly, without going through the
// engine's durable scheduling, since sub_playbook execution is not
// itself a suspension point.
func (r *Runtime) executeStepInline(ctx context.Context, parent stepActivityInput, step playbook.Step) (stepActivityOutput, error) {
	nested := stepActivityInput{
		ExecutionID: parent.ExecutionID,
		WorkspaceID: parent.WorkspaceID,
		SessionID:   parent.SessionID,
		Step:        step,
		ActorCtx:    parent.ActorCtx,
	}
	var (
		result any
		err    error
	)
	switch step.Kind {
	case string(StepLLMCall):
		result, err = r.executeLLMCall(ctx, nested)
	case string(StepToolCall):
		result, err = r.executeToolCall(ctx, nested)
	case string(StepDecision):
		result, err = r.executeDecision(ctx, nested)
	case string(StepArtifactEmit):
		result, err = r.executeArtifactEmit(ctx, nested)
	default:
		return stepActivityOutput{}, fmt.Errorf("runtime: unsupported nested step kind %q", step.Kind)
	}
	if err != nil {
		return stepActivityOutput{}, err
	}
	return result.(stepActivityOutput), nil
}

// executeArtifactEmit implements the artifact_emit activity: stage then
// register one artifact through the sandboxed ArtifactStore, per §4.7's
// atomic two-phase write.
func (r *Runtime) executeArtifactEmit(ctx context.Context, input any) (any, error) {
	in := input.(stepActivityInput)
	name, _ := in.Step.Inputs["name"].(string)
	content, _ := in.Step.Inputs["content"].(string)

	stagingPath, err := r.Artifacts.Write(ctx, in.WorkspaceID, in.ExecutionID, name, []byte(content))
	if err != nil {
		return stepActivityOutput{ErrorKind: ErrKindSandboxDenied, ErrorMsg: err.Error()}, nil
	}
	artifactID, err := r.Artifacts.Register(ctx, in.WorkspaceID, in.ExecutionID, stagingPath, name)
	if err != nil {
		return stepActivityOutput{ErrorKind: ErrKindSandboxDenied, ErrorMsg: err.Error()}, nil
	}
	return stepActivityOutput{OutputsIR: map[string]any{"artifact_id": artifactID, "name": name}}, nil
}

func errKindForResolve(err error) string {
	if err == capability.ErrCostCapExceeded {
		return ErrKindCostCapExceeded
	}
	return ErrKindProviderUnavailable
}
