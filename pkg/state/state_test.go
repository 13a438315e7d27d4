package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/state"
)

func TestNew_EmptyHashIsStable(t *testing.T) {
	a := state.New()
	b := state.New()
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, uint64(0), a.Version())
}

func TestSet_RecomputesHashAndVersion(t *testing.T) {
	s := state.New()
	before := s.Hash()

	err := s.Set("system_prompt", state.NewSingle(state.Value{Kind: state.KindString, Str: "hello"}))
	require.NoError(t, err)

	assert.NotEqual(t, before, s.Hash())
	assert.Equal(t, uint64(1), s.Version())

	d, ok := s.Get("system_prompt")
	require.True(t, ok)
	assert.Equal(t, "hello", d.Single.Str)
}

func TestSet_DeterministicAcrossEquivalentInserts(t *testing.T) {
	a := state.New()
	b := state.New()

	require.NoError(t, a.Set("k", state.NewSingle(state.Value{Kind: state.KindUint64, U64: 7})))
	require.NoError(t, b.Set("k", state.NewSingle(state.Value{Kind: state.KindUint64, U64: 7})))

	assert.True(t, a.Equivalent(b))
}

func TestSet_RejectsFloat(t *testing.T) {
	s := state.New()
	err := s.Set("x", state.NewSingle(state.Value{Kind: state.KindFloat, F64: 1.5}))
	assert.ErrorIs(t, err, state.ErrFloatInState)

	err = s.Set("x", state.NewMap(map[string]state.Value{
		"y": {Kind: state.KindFloat, F64: 2.0},
	}))
	assert.ErrorIs(t, err, state.ErrFloatInState)
}

func TestRemove_OnlyIfExisted(t *testing.T) {
	s := state.New()
	err := s.Remove("missing")
	assert.ErrorIs(t, err, state.ErrDomainNotFound)

	require.NoError(t, s.Set("present", state.NewSingle(state.Value{Kind: state.KindBool, Bool: true})))
	beforeHash := s.Hash()

	require.NoError(t, s.Remove("present"))
	assert.NotEqual(t, beforeHash, s.Hash())

	_, ok := s.Get("present")
	assert.False(t, ok)
}

func TestEquivalent_OrderIndependent(t *testing.T) {
	a := state.New()
	b := state.New()

	require.NoError(t, a.Set("one", state.NewSingle(state.Value{Kind: state.KindString, Str: "1"})))
	require.NoError(t, a.Set("two", state.NewSingle(state.Value{Kind: state.KindString, Str: "2"})))

	require.NoError(t, b.Set("two", state.NewSingle(state.Value{Kind: state.KindString, Str: "2"})))
	require.NoError(t, b.Set("one", state.NewSingle(state.Value{Kind: state.KindString, Str: "1"})))

	assert.True(t, a.Equivalent(b))
}
