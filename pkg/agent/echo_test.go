package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/agent"
)

func TestEchoAgent_WritesObservationIntoState(t *testing.T) {
	a := agent.NewEchoAgent()
	s := a.InitialState()

	result, err := a.Transition(context.Background(), s, agent.Observation{Type: "t", Source: "sensor"}, nil, agent.Context{RunID: 1})
	require.NoError(t, err)
	assert.Equal(t, agent.DecisionNone, result.Decision.Kind)

	domain, ok := result.State.Get("last_observation")
	require.True(t, ok)
	assert.Equal(t, "t", domain.Map["type"].Str)
	assert.Equal(t, "sensor", domain.Map["source"].Str)
}

func TestEchoAgent_TransitionHashChangesStateHashBuckets(t *testing.T) {
	a := agent.NewEchoAgent()
	s := a.InitialState()
	before := s.Hash()

	result, err := a.Transition(context.Background(), s, agent.Observation{Type: "t", Source: "s"}, nil, agent.Context{RunID: 1})
	require.NoError(t, err)

	assert.NotEqual(t, before, result.State.Hash())
	assert.False(t, result.TransitionHash.IsZero())
}

func TestEchoAgent_SameObservationTwiceYieldsSameHash(t *testing.T) {
	a1, a2 := agent.NewEchoAgent(), agent.NewEchoAgent()
	s1, s2 := a1.InitialState(), a2.InitialState()

	r1, err := a1.Transition(context.Background(), s1, agent.Observation{Type: "t", Source: "s"}, nil, agent.Context{RunID: 1})
	require.NoError(t, err)
	r2, err := a2.Transition(context.Background(), s2, agent.Observation{Type: "t", Source: "s"}, nil, agent.Context{RunID: 1})
	require.NoError(t, err)

	assert.Equal(t, r1.TransitionHash, r2.TransitionHash)
	assert.Equal(t, r1.State.Hash(), r2.State.Hash())
}
