package engine

import "context"

// wfCtxKey is the private context key used to stash a WorkflowContext inside
// a Go context passed to activities, so activity handlers can retrieve the
// originating session context when needed.
type wfCtxKey struct{}

// WithWorkflowContext returns a child context carrying wf. Engine adapters
// use this when invoking activity handlers so downstream code can recover
// the session's WorkflowContext.
func WithWorkflowContext(ctx context.Context, wf WorkflowContext) context.Context {
	return context.WithValue(ctx, wfCtxKey{}, wf)
}

// WorkflowContextFromContext extracts a WorkflowContext from ctx, or nil if
// ctx does not carry one.
func WorkflowContextFromContext(ctx context.Context) WorkflowContext {
	if v := ctx.Value(wfCtxKey{}); v != nil {
		if wf, ok := v.(WorkflowContext); ok {
			return wf
		}
	}
	return nil
}
