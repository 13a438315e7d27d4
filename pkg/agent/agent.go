// Package agent defines the contract an external agent implementation
// plugs into the core through: transition(state, observation,
// tool_responses, context) -> (state, decision), plus an initial state.
// The core never inspects an agent's internals; it only ever calls this
// interface and folds the returned Decision into the event log.
package agent

import (
	"context"

	"github.com/staticpayload/oracle.omen/pkg/hashing"
	"github.com/staticpayload/oracle.omen/pkg/patch"
	"github.com/staticpayload/oracle.omen/pkg/state"
	"github.com/staticpayload/oracle.omen/pkg/tool"
)

// Observation is a single input the scheduler feeds to an agent's
// transition call: a tagged payload from some named source.
type Observation struct {
	Type   string
	Source string
	Data   map[string]interface{}
}

// ToolResponse pairs a tool invocation's normalized response with the
// name of the tool that produced it, so an agent can correlate multiple
// pending calls.
type ToolResponse struct {
	ToolName string
	Response tool.Response
}

// Context carries read-only, per-transition information an agent may
// need but must not mutate: the logical time of the call and the run it
// belongs to. The controller owns both; agents only read them.
type Context struct {
	RunID       uint64
	LogicalTime uint64
}

// DecisionKind enumerates the four-variant Decision sum.
type DecisionKind string

const (
	DecisionNone          DecisionKind = "none"
	DecisionToolCall      DecisionKind = "tool_call"
	DecisionPatchProposal DecisionKind = "patch_proposal"
	DecisionMultiple      DecisionKind = "multiple"
)

// ToolCall is the payload of a DecisionToolCall: the tool to invoke and
// its arguments, already in the form the tool registry expects.
type ToolCall struct {
	ToolName string
	Args     map[string]interface{}
}

// Decision is what an agent's transition call returns alongside its next
// state. Exactly one field is meaningful per Kind: ToolCall for
// DecisionToolCall, Patch for DecisionPatchProposal, Children for
// DecisionMultiple. DecisionNone carries no payload.
type Decision struct {
	Kind     DecisionKind
	ToolCall ToolCall
	Patch    patch.Patch
	Children []Decision
}

// None constructs a no-op decision.
func None() Decision { return Decision{Kind: DecisionNone} }

// NewToolCall constructs a DecisionToolCall.
func NewToolCall(toolName string, args map[string]interface{}) Decision {
	return Decision{Kind: DecisionToolCall, ToolCall: ToolCall{ToolName: toolName, Args: args}}
}

// NewPatchProposal constructs a DecisionPatchProposal.
func NewPatchProposal(p patch.Patch) Decision {
	return Decision{Kind: DecisionPatchProposal, Patch: p}
}

// Multiple constructs a DecisionMultiple wrapping children in order.
func Multiple(children ...Decision) Decision {
	return Decision{Kind: DecisionMultiple, Children: children}
}

// canonical returns a JSON-marshalable projection of d, used to fold a
// decision into an event payload and into its transition hash.
func (d Decision) canonical() interface{} {
	switch d.Kind {
	case DecisionToolCall:
		return map[string]interface{}{
			"kind":      string(d.Kind),
			"tool_name": d.ToolCall.ToolName,
			"args":      d.ToolCall.Args,
		}
	case DecisionPatchProposal:
		return map[string]interface{}{
			"kind":       string(d.Kind),
			"patch_id":   d.Patch.ID.String(),
			"patch_kind": string(d.Patch.Kind),
		}
	case DecisionMultiple:
		children := make([]interface{}, len(d.Children))
		for i, c := range d.Children {
			children[i] = c.canonical()
		}
		return map[string]interface{}{"kind": string(d.Kind), "children": children}
	default:
		return map[string]interface{}{"kind": string(d.Kind)}
	}
}

// TransitionResult is what Agent.Transition returns: the agent's next
// state, its decision, and the transition's hash — combine(prev_state,
// decision, next_state) — so the caller never has to recompute it from
// the agent's internals.
type TransitionResult struct {
	State          *state.AgentState
	Decision       Decision
	TransitionHash hashing.Hash
}

// Agent is the external state machine the core drives. Implementations
// must be pure with respect to their declared inputs: the same
// (state, observation, tool_responses, context) must always yield the
// same (state, decision), since replay depends on it.
type Agent interface {
	// InitialState returns the state a fresh run of this agent starts
	// from, before any observation has been processed.
	InitialState() *state.AgentState

	// Transition consumes one observation (plus any tool responses
	// satisfying decisions from a prior transition) and returns the
	// agent's next state and decision.
	Transition(ctx context.Context, current *state.AgentState, observation Observation, toolResponses []ToolResponse, rc Context) (TransitionResult, error)
}

// DecisionHash computes hash_canonical(decision), the middle term of a
// transition hash.
func DecisionHash(decision Decision) (hashing.Hash, error) {
	return hashing.HashCanonical(decision.canonical())
}

// TransitionHashOf computes combine(prevHash, decisionHash, nextHash) from
// already-known hashes. State mutates in place (AgentState.Set rehashes
// the same pointer), so callers must capture prevHash before mutating and
// pass it here alongside the post-mutation hash — TransitionHash below
// does this for the common case of two distinct AgentState values.
func TransitionHashOf(prevHash hashing.Hash, decision Decision, nextHash hashing.Hash) (hashing.Hash, error) {
	decisionHash, err := DecisionHash(decision)
	if err != nil {
		return hashing.Hash{}, err
	}
	return hashing.TransitionHash(prevHash, decisionHash, nextHash), nil
}

// TransitionHash computes combine(prev.Hash(), hash_canonical(decision), next.Hash()).
// Only safe when prev and next are distinct AgentState values (e.g. prev
// was snapshotted before mutation); if state is mutated in place, capture
// its hash before mutating and call TransitionHashOf instead.
func TransitionHash(prev *state.AgentState, decision Decision, next *state.AgentState) (hashing.Hash, error) {
	return TransitionHashOf(prev.Hash(), decision, next.Hash())
}
