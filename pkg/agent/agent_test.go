package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/agent"
	"github.com/staticpayload/oracle.omen/pkg/patch"
)

func TestDecision_NoneHasNoPayload(t *testing.T) {
	d := agent.None()
	assert.Equal(t, agent.DecisionNone, d.Kind)
}

func TestDecision_ToolCallCarriesArgs(t *testing.T) {
	d := agent.NewToolCall("search", map[string]interface{}{"query": "x"})
	assert.Equal(t, agent.DecisionToolCall, d.Kind)
	assert.Equal(t, "search", d.ToolCall.ToolName)
}

func TestDecision_MultipleWrapsChildrenInOrder(t *testing.T) {
	d := agent.Multiple(agent.None(), agent.NewToolCall("a", nil))
	require.Equal(t, agent.DecisionMultiple, d.Kind)
	require.Len(t, d.Children, 2)
	assert.Equal(t, agent.DecisionToolCall, d.Children[1].Kind)
}

func TestDecisionHash_StableAcrossEqualDecisions(t *testing.T) {
	d1 := agent.NewToolCall("search", map[string]interface{}{"query": "x"})
	d2 := agent.NewToolCall("search", map[string]interface{}{"query": "x"})

	h1, err := agent.DecisionHash(d1)
	require.NoError(t, err)
	h2, err := agent.DecisionHash(d2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestDecisionHash_DiffersForDifferentPatches(t *testing.T) {
	p1 := patch.New(patch.ID{RunID: 1, Sequence: 1}, patch.KindPrompt, patch.Target{Kind: patch.TargetSystemPrompt}, "r")
	p2 := patch.New(patch.ID{RunID: 1, Sequence: 2}, patch.KindPrompt, patch.Target{Kind: patch.TargetSystemPrompt}, "r")

	h1, err := agent.DecisionHash(agent.NewPatchProposal(p1))
	require.NoError(t, err)
	h2, err := agent.DecisionHash(agent.NewPatchProposal(p2))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
