// Package capability implements the Capability Router: resolving a
// capability profile (FAST/STANDARD/PRECISE/TOOL_STRICT/SAFE_WRITE) to a
// concrete model.Client by walking a fallback chain, grounded on the
// teacher's features/model/gateway selection logic and the per-provider
// model.Client selection in runtime/agent/runtime/model_wrapper.go. §4.4.
package capability

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindscape-ai/core/internal/execctx"
	"github.com/mindscape-ai/core/internal/model"
	"github.com/mindscape-ai/core/internal/ports"
)

// Profile is one of the five capability profiles a playbook step can
// request.
type Profile string

const (
	ProfileFast       Profile = "FAST"
	ProfileStandard   Profile = "STANDARD"
	ProfilePrecise    Profile = "PRECISE"
	ProfileToolStrict Profile = "TOOL_STRICT"
	ProfileSafeWrite  Profile = "SAFE_WRITE"
)

// FallbackEntry is one candidate in a profile's fallback chain.
type FallbackEntry struct {
	ProviderName     string
	Client           model.Client
	CostPer1kTokens  float64
	StrictToolCalls  bool
}

// ProfileConfig describes one capability profile's cost ceiling, required
// feature set, and fallback chain.
type ProfileConfig struct {
	CostCeilingPer1k float64
	RequireStrict    bool
	FallbackChain    []FallbackEntry
}

// Budget tracks a session's remaining SAFE_WRITE spend. The Router
// consults it so that an exhausted SAFE_WRITE budget fails the step with
// cost_cap_exceeded rather than silently downgrading to a cheaper profile.
type Budget interface {
	Remaining(ctx context.Context, sessionID string, profile Profile) (float64, error)
	Debit(ctx context.Context, sessionID string, profile Profile, amount float64) error
}

// ErrCostCapExceeded indicates the session's SAFE_WRITE budget is
// exhausted.
var ErrCostCapExceeded = fmt.Errorf("capability: cost cap exceeded")

// ErrNoProviderAvailable indicates the profile is unknown, or every
// fallback-chain entry for it is unconfigured, feature-incompatible, or
// priced above the profile's cost ceiling.
var ErrNoProviderAvailable = fmt.Errorf("capability: no provider available")

// Router resolves capability profiles to model.Client handles.
type Router struct {
	mu       sync.RWMutex
	profiles map[Profile]ProfileConfig
	budget   Budget
}

// NewRouter constructs a Router over the given per-profile configuration.
// budget may be nil if SAFE_WRITE cost governance is not in effect.
func NewRouter(profiles map[Profile]ProfileConfig, budget Budget) *Router {
	return &Router{profiles: profiles, budget: budget}
}

// Resolve selects the first fallback-chain entry for profile whose provider
// is configured, whose cost is under the ceiling, and whose features
// satisfy the profile, returning a bound chat function. The router never
// changes model mid-step: callers invoke the returned function once per
// step, not once per retry-with-different-model.
func (r *Router) Resolve(ctx context.Context, profile Profile, ectx execctx.Context, sessionID string) (ports.LLM, error) {
	r.mu.RLock()
	cfg, ok := r.profiles[profile]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown profile %q", ErrNoProviderAvailable, profile)
	}

	if profile == ProfileSafeWrite && r.budget != nil {
		remaining, err := r.budget.Remaining(ctx, sessionID, profile)
		if err != nil {
			return nil, fmt.Errorf("capability: check safe_write budget: %w", err)
		}
		if remaining <= 0 {
			return nil, ErrCostCapExceeded
		}
	}

	for _, entry := range cfg.FallbackChain {
		if entry.Client == nil {
			continue // provider not configured in this deployment
		}
		if cfg.RequireStrict && !entry.StrictToolCalls {
			continue
		}
		if cfg.CostCeilingPer1k > 0 && entry.CostPer1kTokens > cfg.CostCeilingPer1k {
			continue
		}
		return &boundClient{client: entry.Client, router: r, profile: profile, sessionID: sessionID, costPer1k: entry.CostPer1kTokens}, nil
	}
	return nil, fmt.Errorf("%w for profile %q", ErrNoProviderAvailable, profile)
}

type boundClient struct {
	client    model.Client
	router    *Router
	profile   Profile
	sessionID string
	costPer1k float64
}

func (b *boundClient) Chat(ctx context.Context, handle string, req *model.Request, cancel ports.CancelToken) (*model.Response, error) {
	resp, err := b.client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if b.profile == ProfileSafeWrite && b.router.budget != nil {
		cost := float64(resp.Usage.TotalTokens) / 1000 * b.costPer1k
		if err := b.router.budget.Debit(ctx, b.sessionID, b.profile, cost); err != nil {
			return resp, fmt.Errorf("capability: debit safe_write budget: %w", err)
		}
	}
	return resp, nil
}
