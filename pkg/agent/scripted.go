package agent

import (
	"context"
	"fmt"

	"github.com/staticpayload/oracle.omen/pkg/patch"
	"github.com/staticpayload/oracle.omen/pkg/state"
)

// Step is one entry in a ScriptedAgent's fixed program: on the Nth
// transition it returns Decision, having first applied Mutate (if set)
// to the current state.
type Step struct {
	Decision Decision
	Mutate   func(*state.AgentState) error
}

// ScriptedAgent replays a fixed sequence of decisions regardless of the
// observations it receives, advancing one Step per Transition call and
// holding its last Step once the script is exhausted. It is the
// deterministic stand-in used to drive the scheduler and patch lifecycle
// in tests without depending on an LLM.
type ScriptedAgent struct {
	steps []Step
	pos   int
}

// NewScriptedAgent constructs a ScriptedAgent over steps. At least one
// step is required.
func NewScriptedAgent(steps ...Step) *ScriptedAgent {
	return &ScriptedAgent{steps: steps}
}

// InitialState returns an empty state.
func (a *ScriptedAgent) InitialState() *state.AgentState {
	return state.New()
}

// Transition applies the current step's mutation (if any) and returns its
// decision, then advances to the next step.
func (a *ScriptedAgent) Transition(ctx context.Context, current *state.AgentState, observation Observation, toolResponses []ToolResponse, rc Context) (TransitionResult, error) {
	if len(a.steps) == 0 {
		return TransitionResult{}, fmt.Errorf("agent: scripted agent has no steps")
	}

	idx := a.pos
	if idx >= len(a.steps) {
		idx = len(a.steps) - 1
	} else {
		a.pos++
	}
	step := a.steps[idx]

	prevHash := current.Hash()
	if step.Mutate != nil {
		if err := step.Mutate(current); err != nil {
			return TransitionResult{}, fmt.Errorf("agent: step %d mutate: %w", idx, err)
		}
	}

	hash, err := TransitionHashOf(prevHash, step.Decision, current.Hash())
	if err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{State: current, Decision: step.Decision, TransitionHash: hash}, nil
}

// ProposeSystemPromptStep builds a Step whose decision proposes a
// system-prompt patch, the scenario this package's tests exercise end to
// end against pkg/patch.
func ProposeSystemPromptStep(id patch.ID, prompt, reasoning string) Step {
	p := patch.New(id, patch.KindPrompt, patch.Target{Kind: patch.TargetSystemPrompt}, reasoning).
		WithData("prompt", prompt)
	return Step{Decision: NewPatchProposal(p)}
}
