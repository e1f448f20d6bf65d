// Package execctx defines the immutable per-request envelope threaded
// through the core. It is the only place tenancy/identity information
// flows through; core code never branches on Mode, and no singleton holds
// per-request state.
package execctx

// Mode distinguishes the single-user local adapter from the multi-tenant
// remote adapter. Ports consult Mode to select transport/persistence
// behavior; core logic must never switch on it.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Context is the immutable envelope created at the request boundary and
// discarded when the request completes. It is never mutated after
// construction; derive a new Context (via With* helpers) instead of
// modifying one in place.
type Context struct {
	ActorID     string
	WorkspaceID string
	Mode        Mode
	RequestID   string
	TenantTag   string
	ProjectID   string
	Locale      string
}

// New constructs a Context. ActorID, WorkspaceID and RequestID are required;
// the zero value for every other field is a valid "unset" state.
func New(actorID, workspaceID, requestID string, mode Mode) Context {
	return Context{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		RequestID:   requestID,
		Mode:        mode,
	}
}

// WithProject returns a copy of c scoped to projectID.
func (c Context) WithProject(projectID string) Context {
	c.ProjectID = projectID
	return c
}

// WithTenant returns a copy of c tagged with tenantTag.
func (c Context) WithTenant(tenantTag string) Context {
	c.TenantTag = tenantTag
	return c
}

// WithLocale returns a copy of c scoped to locale.
func (c Context) WithLocale(locale string) Context {
	c.Locale = locale
	return c
}
