// Package playbook models Playbook Templates and Variants and implements
// the Playbook Loader: resolving the best-matching template/variant for a
// (code, locale) pair. Content-addressing by (code, version) and the
// discovery-by-scope catalog are grounded on the teacher's runtime/registry
// Manager/Cache; the required-tools/capabilities validation generalizes
// runtime/agent/tools.ToolSpec's TypeSpec JSON-codec pattern. §4.5.
package playbook

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Scope is a Playbook Template's visibility scope.
type Scope string

const (
	ScopeSystem    Scope = "system"
	ScopeTenant    Scope = "tenant"
	ScopeProfile   Scope = "profile"
	ScopeWorkspace Scope = "workspace"
)

// Step is one node in a playbook's step graph (§4.6 StepKind).
type Step struct {
	ID                string
	Kind              string
	CapabilityProfile string
	Inputs            map[string]any
	ContinueOnError   bool
	DependsOn         []string
}

// Template is an immutable Markdown+YAML playbook, content-addressed by
// (Code, Version).
type Template struct {
	Code                 string
	Version              string
	Kind                 string
	Scope                Scope
	RequiredTools        []string
	RequiredCapabilities []string
	Steps                []Step
	Locale               string
	Icon                 string
	Tags                 []string
	Body                 string
}

// Variant is a user-edited override of a parent Template, identified by the
// parent's (Code, Version). Variants never mutate their parent. Scope
// determines priority when several variants apply to the same workspace:
// workspace-pinned > profile > tenant > system.
type Variant struct {
	ID            string
	Scope         Scope
	WorkspaceID   string
	ProfileID     string
	TenantID      string
	ParentCode    string
	ParentVersion string
	Steps         []Step
	Locale        string
	UpdatedAt     int64
}

// variantRank orders Scopes by resolution priority, lowest value wins.
var variantRank = map[Scope]int{
	ScopeWorkspace: 0,
	ScopeProfile:   1,
	ScopeTenant:    2,
	ScopeSystem:    3,
}

// ResolvedPlaybook is the Loader's output: the chosen template merged with
// whichever variant (if any) won resolution.
type ResolvedPlaybook struct {
	Template  *Template
	VariantID string
	Steps     []Step
}

// ErrPlaybookUnusable indicates a template references an unknown tool or
// capability; §4.5 requires this to be reported, never silently skipped.
var ErrPlaybookUnusable = errors.New("playbook: unusable")

// ErrNotFound indicates no template exists for the requested code.
var ErrNotFound = errors.New("playbook: not found")

// Catalog discovers candidate templates/variants across scopes, grounded on
// the teacher's registry.Manager (ListToolsets/GetToolset/Search
// generalized to playbook templates).
type Catalog interface {
	TemplatesByCode(ctx context.Context, code string) ([]*Template, error)
	VariantsFor(ctx context.Context, workspaceID, code, version string) ([]*Variant, error)
	ByTags(ctx context.Context, tags []string) ([]*Template, error)
}

// CapabilityChecker reports whether a capability name is known to the
// deployment (e.g. a configured Capability Router profile).
type CapabilityChecker interface {
	KnownCapability(name string) bool
}

// ToolChecker reports whether a tool connection exists for the workspace.
type ToolChecker interface {
	ToolExists(ctx context.Context, workspaceID, toolType string) bool
}

// Loader resolves ResolvedPlaybooks. Loading is pure: identical inputs
// yield identical ResolvedPlaybooks.
type Loader struct {
	catalog Catalog
	caps    CapabilityChecker
	tools   ToolChecker
}

// NewLoader constructs a Loader.
func NewLoader(catalog Catalog, caps CapabilityChecker, tools ToolChecker) *Loader {
	return &Loader{catalog: catalog, caps: caps, tools: tools}
}

// LoadRequest identifies the workspace, profile, and tenant a playbook is
// being resolved for, so pickVariant can apply the full scope priority
// chain even when several variants target overlapping scopes.
type LoadRequest struct {
	WorkspaceID  string
	ProfileID    string
	TenantID     string
	Code         string
	TargetLocale string
}

// Load resolves the best-matching ResolvedPlaybook for req.Code: it picks
// the locale-closest template (exact match > language family > default),
// validates it, then applies the winning variant of that template's code
// and version under the workspace-pinned > profile > tenant > system
// chain (pickVariant); with no applicable variant the template's own
// steps are used.
func (l *Loader) Load(ctx context.Context, req LoadRequest) (*ResolvedPlaybook, error) {
	templates, err := l.catalog.TemplatesByCode(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("playbook: load candidates: %w", err)
	}
	if len(templates) == 0 {
		return nil, ErrNotFound
	}

	tmpl := pickLocale(templates, req.TargetLocale)
	if err := l.validate(ctx, req.WorkspaceID, tmpl); err != nil {
		return nil, err
	}

	variants, err := l.catalog.VariantsFor(ctx, req.WorkspaceID, tmpl.Code, tmpl.Version)
	if err != nil {
		return nil, fmt.Errorf("playbook: load variants: %w", err)
	}
	winner := pickVariant(variants, req)
	if winner == nil {
		return &ResolvedPlaybook{Template: tmpl, Steps: tmpl.Steps}, nil
	}
	return &ResolvedPlaybook{Template: tmpl, VariantID: winner.ID, Steps: winner.Steps}, nil
}

func (l *Loader) validate(ctx context.Context, workspaceID string, tmpl *Template) error {
	for _, cap := range tmpl.RequiredCapabilities {
		if !l.caps.KnownCapability(cap) {
			return fmt.Errorf("%w: unknown capability %q in %s@%s", ErrPlaybookUnusable, cap, tmpl.Code, tmpl.Version)
		}
	}
	for _, tool := range tmpl.RequiredTools {
		if !l.tools.ToolExists(ctx, workspaceID, tool) {
			return fmt.Errorf("%w: missing required tool %q in %s@%s", ErrPlaybookUnusable, tool, tmpl.Code, tmpl.Version)
		}
	}
	return nil
}

// pickLocale chooses the locale-closest template: exact match, then
// language family (prefix before '-'), then the first candidate as default.
func pickLocale(templates []*Template, targetLocale string) *Template {
	for _, t := range templates {
		if t.Locale == targetLocale {
			return t
		}
	}
	family := strings.SplitN(targetLocale, "-", 2)[0]
	for _, t := range templates {
		if strings.SplitN(t.Locale, "-", 2)[0] == family {
			return t
		}
	}
	return templates[0]
}

// pickVariant applies the scope priority chain workspace-pinned > profile >
// tenant > system, breaking ties within a scope by most-recently-updated.
// A variant only applies if it targets this request's workspace, profile,
// or tenant (system-scope variants apply to everyone).
func pickVariant(variants []*Variant, req LoadRequest) *Variant {
	var best *Variant
	for _, v := range variants {
		switch v.Scope {
		case ScopeWorkspace:
			if v.WorkspaceID != req.WorkspaceID {
				continue
			}
		case ScopeProfile:
			if v.ProfileID == "" || v.ProfileID != req.ProfileID {
				continue
			}
		case ScopeTenant:
			if v.TenantID == "" || v.TenantID != req.TenantID {
				continue
			}
		case ScopeSystem:
			// applies unconditionally
		default:
			continue
		}

		if best == nil {
			best = v
			continue
		}
		br, vr := variantRank[best.Scope], variantRank[v.Scope]
		if vr < br || (vr == br && v.UpdatedAt > best.UpdatedAt) {
			best = v
		}
	}
	return best
}
