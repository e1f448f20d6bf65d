// Package workspace models the Workspace and Project containers that own
// every other piece of persisted state (§3 Ownership rules). Workspace and
// Project are plain data types; persistence lives behind the Store
// interfaces so the local (sqlite) and remote (mongo) adapters can each
// supply their own implementation.
package workspace

import (
	"context"
	"errors"
	"time"
)

// LaunchStatus is a Workspace's lifecycle stage.
type LaunchStatus string

const (
	LaunchStatusPending LaunchStatus = "pending"
	LaunchStatusReady   LaunchStatus = "ready"
	LaunchStatusActive  LaunchStatus = "active"
)

// ProjectState is a Project's lifecycle stage.
type ProjectState string

const (
	ProjectStateOpen     ProjectState = "open"
	ProjectStateClosed   ProjectState = "closed"
	ProjectStateArchived ProjectState = "archived"
)

// Workspace is the long-lived container owning Projects, Intents, and
// Executions.
type Workspace struct {
	ID                string
	Title             string
	Owner             string
	PrimaryProjectID  string
	LaunchStatus      LaunchStatus
	StorageBasePath   string
	PlaybookOverrides map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Project is a delivery container within a Workspace, owning a sandbox root.
type Project struct {
	ID         string
	WorkspaceID string
	Type       string
	Title      string
	State      ProjectState
	FlowID     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ErrWorkspaceNotFound indicates the requested workspace does not exist.
var ErrWorkspaceNotFound = errors.New("workspace: not found")

// ErrProjectNotFound indicates the requested project does not exist.
var ErrProjectNotFound = errors.New("workspace: project not found")

// ErrPrimaryProjectExists indicates a workspace already has a primary
// project; a workspace may have at most one (§3 Ownership rules).
var ErrPrimaryProjectExists = errors.New("workspace: primary project already set")

// Store persists Workspaces and their Projects.
type Store interface {
	CreateWorkspace(ctx context.Context, w *Workspace) error
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	UpdateWorkspace(ctx context.Context, w *Workspace) error

	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, workspaceID, projectID string) (*Project, error)
	ListProjects(ctx context.Context, workspaceID string) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
}

// SetPrimaryProject assigns projectID as w's primary project. It refuses to
// overwrite an already-set primary; callers must clear it explicitly first.
func SetPrimaryProject(w *Workspace, projectID string) error {
	if w.PrimaryProjectID != "" && w.PrimaryProjectID != projectID {
		return ErrPrimaryProjectExists
	}
	w.PrimaryProjectID = projectID
	return nil
}
