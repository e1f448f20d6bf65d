package runtime

import (
	"errors"
	"fmt"

	"github.com/mindscape-ai/core/internal/capability"
	"github.com/mindscape-ai/core/internal/model"
)

// ErrCostCapExceeded is returned when accruing a step's cost would put a
// session's running total over its per-profile or absolute cap (§4.6
// "Cost governance"). The session is failed with ErrKindCostCapExceeded,
// never silently throttled.
var ErrCostCapExceeded = errors.New("runtime: cost cap exceeded")

// tokenCostUnits converts a model response's usage into the same cost
// unit the Capability Router uses for SAFE_WRITE budgeting
// (total_tokens / 1000), so a session's Config caps and the router's
// per-request cost ceiling are directly comparable.
func tokenCostUnits(resp *model.Response) float64 {
	if resp == nil {
		return 0
	}
	return float64(resp.Usage.TotalTokens) / 1000
}

// checkCostCap reports whether accruing delta atop the session's current
// CostAccrued would exceed either the profile's per-profile cap or the
// session's absolute cap.
func checkCostCap(cfg Config, profile capability.Profile, accrued, delta float64) error {
	projected := accrued + delta
	if cfg.AbsoluteCap > 0 && projected > cfg.AbsoluteCap {
		return fmt.Errorf("%w: absolute cap %.4f exceeded by %.4f", ErrCostCapExceeded, cfg.AbsoluteCap, projected)
	}
	if cap, ok := cfg.PerProfileCap[profile]; ok && cap > 0 && projected > cap {
		return fmt.Errorf("%w: profile %s cap %.4f exceeded by %.4f", ErrCostCapExceeded, profile, cap, projected)
	}
	return nil
}
