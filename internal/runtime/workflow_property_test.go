package runtime

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/mindscape-ai/core/internal/playbook"
)

// TestComputeFrontiersTopologicalOrderProperty verifies that for any DAG
// of steps, every step's frontier index is strictly greater than the
// frontier index of each step it depends on, and that dependency-free
// steps always land in frontier 0. Dependencies are generated so that a
// step may only depend on steps earlier in the slice, guaranteeing the
// input is acyclic.
func TestComputeFrontiersTopologicalOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every step's frontier is after all its dependencies'", prop.ForAll(
		func(n int, seed int) bool {
			steps := genAcyclicSteps(n, seed)
			frontiers := computeFrontiers(steps)

			level := make(map[int]int, len(steps))
			for l, indices := range frontiers {
				for _, i := range indices {
					level[i] = l
				}
			}

			indexByID := make(map[string]int, len(steps))
			for i, s := range steps {
				indexByID[s.ID] = i
			}

			for i, s := range steps {
				if len(s.DependsOn) == 0 && level[i] != 0 {
					return false
				}
				for _, dep := range s.DependsOn {
					depIdx, ok := indexByID[dep]
					if !ok {
						continue
					}
					if level[i] <= level[depIdx] {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}

// genAcyclicSteps deterministically builds n steps where step i may only
// depend on steps with a lower index, seeded by seed so gopter's shrinker
// can replay a failing case.
func genAcyclicSteps(n, seed int) []playbook.Step {
	steps := make([]playbook.Step, n)
	state := seed + 1
	next := func() int {
		state = state*1103515245 + 12345
		if state < 0 {
			state = -state
		}
		return state
	}
	for i := 0; i < n; i++ {
		steps[i] = playbook.Step{ID: fmt.Sprintf("step-%d", i)}
		if i == 0 {
			continue
		}
		depCount := next() % (i + 1)
		seen := make(map[int]bool, depCount)
		for j := 0; j < depCount; j++ {
			dep := next() % i
			if seen[dep] {
				continue
			}
			seen[dep] = true
			steps[i].DependsOn = append(steps[i].DependsOn, fmt.Sprintf("step-%d", dep))
		}
	}
	return steps
}
