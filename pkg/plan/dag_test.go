package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/plan"
)

func toolStep(id string, deps ...string) plan.PlanStep {
	return plan.PlanStep{
		ID:            id,
		StepType:      plan.StepType{Kind: plan.StepTool, ToolName: "t", ToolVersion: "1.0.0"},
		Deps:          deps,
		TimeoutPolicy: plan.TimeoutPolicy{TimeoutMs: 1000},
	}
}

// TestCompile_TopoOrder_S4 exercises spec scenario S4: a,b,c with edges
// a->b, b->c compiles to topological order [a,b,c]; adding c->a fails.
func TestCompile_TopoOrder_S4(t *testing.T) {
	p := plan.Plan{Name: "s4", Steps: []plan.PlanStep{
		toolStep("a"),
		toolStep("b", "a"),
		toolStep("c", "b"),
	}}

	dag, err := plan.Compile(p)
	require.NoError(t, err)

	order, err := dag.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)

	err = dag.AddEdge("c", "a")
	var cycleErr *plan.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "c", cycleErr.From)
	assert.Equal(t, "a", cycleErr.To)

	// The DAG must be unmodified by the failed AddEdge.
	order2, err := dag.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, order, order2)
}

func TestCompile_DuplicateID(t *testing.T) {
	p := plan.Plan{Name: "dup", Steps: []plan.PlanStep{toolStep("a"), toolStep("a")}}
	_, err := plan.Compile(p)
	assert.ErrorIs(t, err, plan.ErrDuplicateNode)
}

func TestCompile_UndeclaredDependency(t *testing.T) {
	p := plan.Plan{Name: "missing", Steps: []plan.PlanStep{toolStep("a", "ghost")}}
	_, err := plan.Compile(p)
	assert.ErrorIs(t, err, plan.ErrNodeNotFound)
}

func TestCompile_ZeroTimeoutRejected(t *testing.T) {
	step := toolStep("a")
	step.TimeoutPolicy.TimeoutMs = 0
	p := plan.Plan{Name: "zero-timeout", Steps: []plan.PlanStep{step}}
	_, err := plan.Compile(p)
	assert.ErrorIs(t, err, plan.ErrInvalidTimeout)
}

// TestTopologicalOrder_IsPermutation is §8 invariant 5: topological_order
// returns a permutation of every node, for a branching DAG with genuine
// ties at the ready level.
func TestTopologicalOrder_IsPermutation(t *testing.T) {
	p := plan.Plan{Name: "diamond", Steps: []plan.PlanStep{
		toolStep("a"),
		toolStep("b", "a"),
		toolStep("c", "a"),
		toolStep("d", "b", "c"),
	}}
	dag, err := plan.Compile(p)
	require.NoError(t, err)

	order, err := dag.TopologicalOrder()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, order)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order) // lexicographic tie-break at the b/c level
}

func TestAddEdge_UnknownNode(t *testing.T) {
	dag := plan.NewDAG("x")
	require.NoError(t, dag.AddNode(plan.Node{ID: "a"}))
	err := dag.AddEdge("a", "ghost")
	assert.ErrorIs(t, err, plan.ErrNodeNotFound)
}

func TestAddNode_Duplicate(t *testing.T) {
	dag := plan.NewDAG("x")
	require.NoError(t, dag.AddNode(plan.Node{ID: "a"}))
	err := dag.AddNode(plan.Node{ID: "a"})
	assert.ErrorIs(t, err, plan.ErrDuplicateNode)
}
