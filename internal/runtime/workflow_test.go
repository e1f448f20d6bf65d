package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindscape-ai/core/internal/playbook"
)

func levelOf(frontiers [][]int, idx int) int {
	for level, indices := range frontiers {
		for _, i := range indices {
			if i == idx {
				return level
			}
		}
	}
	return -1
}

func TestComputeFrontiersLinearChain(t *testing.T) {
	steps := []playbook.Step{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	}
	frontiers := computeFrontiers(steps)
	require.Len(t, frontiers, 3)
	require.Equal(t, 0, levelOf(frontiers, 0))
	require.Equal(t, 1, levelOf(frontiers, 1))
	require.Equal(t, 2, levelOf(frontiers, 2))
}

func TestComputeFrontiersParallelFanOut(t *testing.T) {
	steps := []playbook.Step{
		{ID: "root"},
		{ID: "left", DependsOn: []string{"root"}},
		{ID: "right", DependsOn: []string{"root"}},
		{ID: "join", DependsOn: []string{"left", "right"}},
	}
	frontiers := computeFrontiers(steps)
	require.Equal(t, levelOf(frontiers, 1), levelOf(frontiers, 2), "left and right should share a frontier")
	require.Greater(t, levelOf(frontiers, 3), levelOf(frontiers, 1), "join must come after its dependencies")
}

func TestComputeFrontiersIndependentSteps(t *testing.T) {
	steps := []playbook.Step{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	frontiers := computeFrontiers(steps)
	require.Len(t, frontiers, 1)
	require.Len(t, frontiers[0], 3)
}

func TestComputeFrontiersIgnoresUnknownDependency(t *testing.T) {
	steps := []playbook.Step{
		{ID: "a", DependsOn: []string{"does-not-exist"}},
	}
	frontiers := computeFrontiers(steps)
	require.Len(t, frontiers, 1)
	require.Len(t, frontiers[0], 1)
}
