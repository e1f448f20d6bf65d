// Package inmem provides an in-process runtime.Store for the local
// single-user adapter's default path and for tests, mirroring the
// map-plus-mutex shape of internal/eventlog/inmem and internal/workspace/inmem.
package inmem

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mindscape-ai/core/internal/runtime"
)

// ErrNotFound indicates no session exists for the requested execution ID.
var ErrNotFound = errors.New("store/inmem: execution session not found")

// Store is a process-local runtime.Store. Sessions are deep-copied in and
// out via JSON round-trip so callers can freely mutate the
// *ExecutionSession they got back from Get without corrupting the store's
// copy of record.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*runtime.ExecutionSession
}

// New constructs an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*runtime.ExecutionSession)}
}

// Create implements runtime.Store.
func (s *Store) Create(_ context.Context, session *runtime.ExecutionSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ExecutionID] = clone(session)
	return nil
}

// Update implements runtime.Store, rejecting mutation once the stored
// session has reached a terminal state.
func (s *Store) Update(_ context.Context, session *runtime.ExecutionSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[session.ExecutionID]
	if ok && existing.Status.Terminal() {
		return runtime.ErrTerminal
	}
	s.sessions[session.ExecutionID] = clone(session)
	return nil
}

// Get implements runtime.Store.
func (s *Store) Get(_ context.Context, executionID string) (*runtime.ExecutionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[executionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(session), nil
}

// ListByWorkspace implements runtime.Store.
func (s *Store) ListByWorkspace(_ context.Context, workspaceID string) ([]*runtime.ExecutionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*runtime.ExecutionSession
	for _, session := range s.sessions {
		if session.WorkspaceID == workspaceID {
			out = append(out, clone(session))
		}
	}
	return out, nil
}

func clone(session *runtime.ExecutionSession) *runtime.ExecutionSession {
	raw, _ := json.Marshal(session)
	var cp runtime.ExecutionSession
	_ = json.Unmarshal(raw, &cp)
	return &cp
}
