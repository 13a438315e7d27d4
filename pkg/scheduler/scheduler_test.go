package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/plan"
	"github.com/staticpayload/oracle.omen/pkg/scheduler"
)

func independentDAG(t *testing.T, n int) *plan.DAG {
	t.Helper()
	steps := make([]plan.PlanStep, n)
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i := 0; i < n; i++ {
		steps[i] = plan.PlanStep{
			ID:            names[i],
			StepType:      plan.StepType{Kind: plan.StepTool, ToolName: "t", ToolVersion: "1.0.0"},
			TimeoutPolicy: plan.TimeoutPolicy{TimeoutMs: 1000},
		}
	}
	dag, err := plan.Compile(plan.Plan{Name: "independent", Steps: steps})
	require.NoError(t, err)
	return dag
}

// TestScheduler_Backpressure_S5 exercises spec scenario S5: 5 independent
// nodes, cap=2; first two Next() calls succeed, a third returns nothing
// until a Complete() frees a slot.
func TestScheduler_Backpressure_S5(t *testing.T) {
	dag := independentDAG(t, 5)
	s := scheduler.New(2)
	s.Initialize(dag)

	first, ok := s.Next()
	require.True(t, ok)
	require.NoError(t, s.Start(first))

	second, ok := s.Next()
	require.True(t, ok)
	require.NoError(t, s.Start(second))

	_, ok = s.Next()
	assert.False(t, ok, "third Next() must be backpressured at cap=2")

	require.NoError(t, s.Complete(first))

	third, ok := s.Next()
	assert.True(t, ok, "Next() should succeed after a slot frees up")
	require.NoError(t, s.Start(third))
}

// TestScheduler_Liveness is §8 invariant 6: n nodes are each dispatched
// exactly once within n Complete() calls, given cap >= 1.
func TestScheduler_Liveness(t *testing.T) {
	dag := independentDAG(t, 5)
	s := scheduler.New(1)
	s.Initialize(dag)

	dispatched := make(map[string]int)
	for i := 0; i < 5; i++ {
		id, ok := s.Next()
		require.True(t, ok, "iteration %d should have a ready node", i)
		dispatched[id]++
		require.NoError(t, s.Start(id))
		require.NoError(t, s.Complete(id))
	}

	assert.Len(t, dispatched, 5)
	for id, count := range dispatched {
		assert.Equal(t, 1, count, "node %s dispatched more than once", id)
	}
	assert.True(t, s.IsComplete())
}

func TestScheduler_DependencyOrdering(t *testing.T) {
	dag, err := plan.Compile(plan.Plan{Name: "chain", Steps: []plan.PlanStep{
		{ID: "a", StepType: plan.StepType{Kind: plan.StepTool}, TimeoutPolicy: plan.TimeoutPolicy{TimeoutMs: 1}},
		{ID: "b", StepType: plan.StepType{Kind: plan.StepTool}, Deps: []string{"a"}, TimeoutPolicy: plan.TimeoutPolicy{TimeoutMs: 1}},
	}})
	require.NoError(t, err)

	s := scheduler.New(5)
	s.Initialize(dag)

	_, ok := s.Next()
	require.True(t, ok)
	assert.Empty(t, s.Ready(), "b must not be ready before a completes")
}

func TestScheduler_LexicographicTieBreak(t *testing.T) {
	dag := independentDAG(t, 3)
	s := scheduler.New(10)
	s.Initialize(dag)

	first, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, "a", first)
}

func TestScheduler_CompleteNotRunning(t *testing.T) {
	dag := independentDAG(t, 1)
	s := scheduler.New(1)
	s.Initialize(dag)
	err := s.Complete("a")
	assert.ErrorIs(t, err, scheduler.ErrNotRunning)
}
