// Package inmem provides a process-local workspace.Store for the local
// single-user adapter and for tests.
package inmem

import (
	"context"
	"sync"

	"github.com/mindscape-ai/core/internal/workspace"
)

// Store is a mutex-guarded in-memory workspace.Store.
type Store struct {
	mu         sync.RWMutex
	workspaces map[string]*workspace.Workspace
	projects   map[string]map[string]*workspace.Project // workspaceID -> projectID -> Project
}

// New constructs an empty in-memory Store.
func New() *Store {
	return &Store{
		workspaces: make(map[string]*workspace.Workspace),
		projects:   make(map[string]map[string]*workspace.Project),
	}
}

func (s *Store) CreateWorkspace(ctx context.Context, w *workspace.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.workspaces[w.ID] = &cp
	return nil
}

func (s *Store) GetWorkspace(ctx context.Context, id string) (*workspace.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, workspace.ErrWorkspaceNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *Store) UpdateWorkspace(ctx context.Context, w *workspace.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[w.ID]; !ok {
		return workspace.ErrWorkspaceNotFound
	}
	cp := *w
	s.workspaces[w.ID] = &cp
	return nil
}

func (s *Store) CreateProject(ctx context.Context, p *workspace.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[p.WorkspaceID]; !ok {
		return workspace.ErrWorkspaceNotFound
	}
	byID, ok := s.projects[p.WorkspaceID]
	if !ok {
		byID = make(map[string]*workspace.Project)
		s.projects[p.WorkspaceID] = byID
	}
	cp := *p
	byID[p.ID] = &cp
	return nil
}

func (s *Store) GetProject(ctx context.Context, workspaceID, projectID string) (*workspace.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID, ok := s.projects[workspaceID]
	if !ok {
		return nil, workspace.ErrProjectNotFound
	}
	p, ok := byID[projectID]
	if !ok {
		return nil, workspace.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProjects(ctx context.Context, workspaceID string) ([]*workspace.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.projects[workspaceID]
	out := make([]*workspace.Project, 0, len(byID))
	for _, p := range byID {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *workspace.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.projects[p.WorkspaceID]
	if !ok {
		return workspace.ErrProjectNotFound
	}
	if _, ok := byID[p.ID]; !ok {
		return workspace.ErrProjectNotFound
	}
	cp := *p
	byID[p.ID] = &cp
	return nil
}
