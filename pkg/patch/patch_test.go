package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/patch"
)

func TestHash_StableAcrossDataInsertionOrder(t *testing.T) {
	id := patch.ID{RunID: 1, Sequence: 0}
	p1 := patch.New(id, patch.KindPrompt, patch.Target{Kind: patch.TargetSystemPrompt}, "test").
		WithData("a", "1").WithData("b", "2")
	p2 := patch.New(id, patch.KindPrompt, patch.Target{Kind: patch.TargetSystemPrompt}, "test").
		WithData("b", "2").WithData("a", "1")

	h1, err := p1.Hash()
	require.NoError(t, err)
	h2, err := p2.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestID_String(t *testing.T) {
	id := patch.ID{RunID: 7, Sequence: 3}
	assert.Equal(t, "7:3", id.String())
}

func TestCanTransition_MonotonicOnly(t *testing.T) {
	assert.True(t, patch.CanTransition(patch.StatusProposed, patch.StatusTested))
	assert.True(t, patch.CanTransition(patch.StatusProposed, patch.StatusRejected))
	assert.False(t, patch.CanTransition(patch.StatusApplied, patch.StatusProposed))
	assert.False(t, patch.CanTransition(patch.StatusTested, patch.StatusProposed))
	assert.True(t, patch.CanTransition(patch.StatusApplied, patch.StatusRolledBack))
	assert.False(t, patch.CanTransition(patch.StatusRolledBack, patch.StatusApplied))
}
