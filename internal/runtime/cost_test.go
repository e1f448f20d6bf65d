package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindscape-ai/core/internal/capability"
	"github.com/mindscape-ai/core/internal/model"
)

func TestTokenCostUnitsNilResponse(t *testing.T) {
	require.Zero(t, tokenCostUnits(nil))
}

func TestTokenCostUnitsConvertsToThousands(t *testing.T) {
	resp := &model.Response{Usage: model.TokenUsage{TotalTokens: 2500}}
	require.Equal(t, 2.5, tokenCostUnits(resp))
}

func TestCheckCostCapWithinBounds(t *testing.T) {
	cfg := Config{
		AbsoluteCap:   10,
		PerProfileCap: map[capability.Profile]float64{capability.ProfileFast: 5},
	}
	require.NoError(t, checkCostCap(cfg, capability.ProfileFast, 2, 1))
}

func TestCheckCostCapAbsoluteExceeded(t *testing.T) {
	cfg := Config{AbsoluteCap: 10}
	err := checkCostCap(cfg, capability.ProfileStandard, 9, 2)
	require.ErrorIs(t, err, ErrCostCapExceeded)
}

func TestCheckCostCapPerProfileExceeded(t *testing.T) {
	cfg := Config{
		PerProfileCap: map[capability.Profile]float64{capability.ProfileFast: 3},
	}
	err := checkCostCap(cfg, capability.ProfileFast, 2, 2)
	require.ErrorIs(t, err, ErrCostCapExceeded)
}

func TestCheckCostCapIgnoresUnconfiguredProfile(t *testing.T) {
	cfg := Config{PerProfileCap: map[capability.Profile]float64{capability.ProfileFast: 1}}
	require.NoError(t, checkCostCap(cfg, capability.ProfilePrecise, 100, 100))
}
