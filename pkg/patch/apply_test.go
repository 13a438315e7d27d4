package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/patch"
	"github.com/staticpayload/oracle.omen/pkg/state"
)

// TestApply_SystemPrompt_S6 exercises spec scenario S6: propose, approve,
// apply a system-prompt patch, then roll it back.
func TestApply_SystemPrompt_S6(t *testing.T) {
	store := patch.NewStore()
	engine := patch.NewEngine(store, 1)
	s := state.New()

	p := patch.New(patch.ID{RunID: 1, Sequence: 0}, patch.KindPrompt, patch.Target{Kind: patch.TargetSystemPrompt}, "improve clarity").
		WithData("prompt", "You are a helpful assistant.")

	require.NoError(t, engine.Submit(p))
	require.NoError(t, store.UpdateStatus(p.ID.String(), patch.Status{Kind: patch.StatusTested}))
	require.NoError(t, store.UpdateStatus(p.ID.String(), patch.Status{Kind: patch.StatusAudited}))

	kr, err := patch.NewKeyring()
	require.NoError(t, err)
	gate := patch.ApprovalGate{AuthorizedSigners: []patch.SignerID{kr.SignerID()}}
	msg := []byte(p.ID.String())
	require.NoError(t, engine.ApproveWith(p.ID.String(), gate, msg, kr.Sign(msg), kr.SignerID()))

	result, err := engine.Apply(p.ID.String(), s)
	require.NoError(t, err)
	assert.Contains(t, result.ChangesMade, "system_prompt")

	_, status, ok := store.Get(p.ID.String())
	require.True(t, ok)
	assert.Equal(t, patch.StatusApplied, status.Kind)

	rollback, err := engine.Rollback(p.ID.String(), s, "manual rollback")
	require.NoError(t, err)
	assert.Equal(t, p.ID.String(), rollback.PatchID)

	_, status, ok = store.Get(p.ID.String())
	require.True(t, ok)
	assert.Equal(t, patch.StatusRolledBack, status.Kind)

	domain, ok := s.Get("_rollback")
	require.True(t, ok)
	assert.Equal(t, rollback.RestoredTo, domain.Single.Hash)
}

func TestApply_UnapprovedPatchRejected(t *testing.T) {
	store := patch.NewStore()
	engine := patch.NewEngine(store, 1)
	s := state.New()

	p := patch.New(patch.ID{RunID: 1, Sequence: 0}, patch.KindConfig, patch.Target{Kind: patch.TargetConfig, Name: "x"}, "r").
		WithData("value", "1")
	require.NoError(t, engine.Submit(p))

	_, err := engine.Apply(p.ID.String(), s)
	var patchErr *patch.Error
	require.ErrorAs(t, err, &patchErr)
	assert.Equal(t, patch.ErrKindNotApproved, patchErr.Kind)
}

func TestApply_UnimplementedTargetFailsClosed(t *testing.T) {
	store := patch.NewStore()
	engine := patch.NewEngine(store, 1)
	s := state.New()

	p := patch.New(patch.ID{RunID: 1, Sequence: 0}, patch.KindTools, patch.Target{Kind: patch.TargetTool, Name: "fetch"}, "r")
	require.NoError(t, engine.Submit(p))
	require.NoError(t, store.UpdateStatus(p.ID.String(), patch.Status{Kind: patch.StatusTested}))
	require.NoError(t, store.UpdateStatus(p.ID.String(), patch.Status{Kind: patch.StatusApproved}))

	_, err := engine.Apply(p.ID.String(), s)
	var patchErr *patch.Error
	require.ErrorAs(t, err, &patchErr)
	assert.Equal(t, patch.ErrKindApplicationFailed, patchErr.Kind)
}

func TestStore_DuplicateSubmitRejected(t *testing.T) {
	store := patch.NewStore()
	p := patch.New(patch.ID{RunID: 1}, patch.KindConfig, patch.Target{Kind: patch.TargetConfig, Name: "x"}, "r")
	require.NoError(t, store.Add(p))
	assert.ErrorIs(t, store.Add(p), patch.ErrAlreadyExists)
}

func TestStore_InvalidTransitionRejected(t *testing.T) {
	store := patch.NewStore()
	p := patch.New(patch.ID{RunID: 1}, patch.KindConfig, patch.Target{Kind: patch.TargetConfig, Name: "x"}, "r")
	require.NoError(t, store.Add(p))
	assert.ErrorIs(t, store.UpdateStatus(p.ID.String(), patch.Status{Kind: patch.StatusApplied}), patch.ErrInvalidTransition)
}
