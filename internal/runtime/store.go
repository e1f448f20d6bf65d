package runtime

import (
	"context"
	"errors"
)

// Store persists ExecutionSessions across process restarts so paused
// sessions can resume with prior steps' outputs_ir intact (§8 scenario 5).
// Concrete adapters live under internal/store (inmem, mongo, sqlite).
type Store interface {
	Create(ctx context.Context, session *ExecutionSession) error
	// Update replaces the stored session with session as a whole,
	// including every StepRecord. Implementations must reject updates
	// once the stored session's Status.Terminal().
	Update(ctx context.Context, session *ExecutionSession) error
	Get(ctx context.Context, executionID string) (*ExecutionSession, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*ExecutionSession, error)
}

// ErrTerminal is returned by Store.Update when the session has already
// reached a terminal state, per the universal invariant that terminal
// sessions reject further status/index writes.
var ErrTerminal = errors.New("runtime: session is in a terminal state")
