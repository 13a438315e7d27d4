package agent

import (
	"context"

	"github.com/staticpayload/oracle.omen/pkg/state"
)

// EchoAgent is the reference Agent implementation: it writes every
// observation it receives into a "last_observation" state domain and
// never issues a decision. It exists to exercise the controller and
// replay engine against a minimal, fully deterministic agent, the way
// an "echo" service exercises a transport layer.
type EchoAgent struct{}

// NewEchoAgent constructs an EchoAgent.
func NewEchoAgent() *EchoAgent { return &EchoAgent{} }

// InitialState returns an empty state.
func (a *EchoAgent) InitialState() *state.AgentState {
	return state.New()
}

// Transition copies the observation's type and source into state and
// returns DecisionNone.
func (a *EchoAgent) Transition(ctx context.Context, current *state.AgentState, observation Observation, toolResponses []ToolResponse, rc Context) (TransitionResult, error) {
	prevHash := current.Hash()

	fields := map[string]state.Value{
		"type":   {Kind: state.KindString, Str: observation.Type},
		"source": {Kind: state.KindString, Str: observation.Source},
	}
	if err := current.Set("last_observation", state.NewMap(fields)); err != nil {
		return TransitionResult{}, err
	}

	decision := None()
	hash, err := TransitionHashOf(prevHash, decision, current.Hash())
	if err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{State: current, Decision: decision, TransitionHash: hash}, nil
}
