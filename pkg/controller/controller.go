// Package controller implements the run controller: the single owner of
// an event log, state, patch store and tool registry for one run, which
// drives an Agent through observations, dispatches its decisions, and
// folds every outcome back into the log. No other component mutates
// these four artifacts once a Controller exists over them.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/staticpayload/oracle.omen/pkg/agent"
	"github.com/staticpayload/oracle.omen/pkg/capability"
	"github.com/staticpayload/oracle.omen/pkg/eventlog"
	"github.com/staticpayload/oracle.omen/pkg/hashing"
	"github.com/staticpayload/oracle.omen/pkg/logtime"
	"github.com/staticpayload/oracle.omen/pkg/observability"
	"github.com/staticpayload/oracle.omen/pkg/patch"
	"github.com/staticpayload/oracle.omen/pkg/state"
	"github.com/staticpayload/oracle.omen/pkg/tool"
)

// ErrCancelled is returned by Step once the controller has been
// cancelled: it stops accepting new dispatches immediately.
var ErrCancelled = fmt.Errorf("controller: run has been cancelled")

// Config bundles a Controller's collaborators. Tools and Capabilities are
// treated as immutable, read-only-shared snapshots for the run's
// duration, per the shared-resource policy.
type Config struct {
	RunID         uint64
	Agent         agent.Agent
	Tools         *tool.Registry
	Capabilities  *capability.Checker
	Patches       *patch.Engine
	MaxConcurrent int // bounds concurrent ToolCall dispatch within one Decision.Multiple; defaults to 1

	// Observability is optional. When set, every Step, tool dispatch and
	// patch proposal is traced and recorded against its RED metrics; a
	// nil Provider (the default) disables instrumentation entirely rather
	// than instrumenting against a no-op backend.
	Observability *observability.Provider
}

// Controller drives one run: it owns the event log and state exclusively,
// and is the only component permitted to mutate either.
type Controller struct {
	mu    sync.Mutex
	runID uint64

	agent   agent.Agent
	tools   *tool.Registry
	caps    *capability.Checker
	patches *patch.Engine

	log       *eventlog.EventLog
	st        *state.AgentState
	clock     *logtime.Standard
	cancelled bool

	maxConcurrent int
	obs           *observability.Provider
}

// New creates a Controller for a fresh run, seeding state from
// cfg.Agent.InitialState and appending the AgentInit event.
func New(cfg Config) (*Controller, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("controller: Agent is required")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	c := &Controller{
		runID:         cfg.RunID,
		agent:         cfg.Agent,
		tools:         cfg.Tools,
		caps:          cfg.Capabilities,
		patches:       cfg.Patches,
		log:           eventlog.New(cfg.RunID),
		st:            cfg.Agent.InitialState(),
		clock:         logtime.NewStandard(cfg.RunID),
		maxConcurrent: maxConcurrent,
		obs:           cfg.Observability,
	}

	if err := c.appendRaw(eventlog.KindAgentInit, nil, map[string]interface{}{
		"agent_type": fmt.Sprintf("%T", cfg.Agent),
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// Log returns the controller's event log.
func (c *Controller) Log() *eventlog.EventLog { return c.log }

// State returns the controller's current state.
func (c *Controller) State() *state.AgentState { return c.st }

// Cancelled reports whether the run has been cancelled.
func (c *Controller) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// StepResult summarizes one Step call's effect.
type StepResult struct {
	Decision      agent.Decision
	ToolResponses []agent.ToolResponse
	StateHash     hashing.Hash
}

// Step feeds one observation, plus tool responses collected from a prior
// Step's decision, through the agent and dispatches whatever decision
// comes back. It is the run controller's only entry point: the event
// log, state, and patch store are touched exclusively from inside here.
func (c *Controller) Step(ctx context.Context, observation agent.Observation, pending []agent.ToolResponse) (stepResult StepResult, stepErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.obs != nil {
		var end func(error)
		ctx, end = c.obs.TrackOperation(ctx, "omen.controller.step",
			observability.RunOperation(fmt.Sprintf("%d", c.runID), "running", "step", int64(c.log.Len()))...)
		defer func() { end(stepErr) }()
	}

	if c.cancelled {
		return StepResult{}, ErrCancelled
	}

	if err := c.appendRaw(eventlog.KindObservation, nil, map[string]interface{}{
		"type":   observation.Type,
		"source": observation.Source,
		"data":   observation.Data,
	}); err != nil {
		return StepResult{}, err
	}

	prevHash := c.st.Hash()
	rc := agent.Context{RunID: c.runID, LogicalTime: c.clock.Tick().Sequence}
	result, err := c.agent.Transition(ctx, c.st, observation, pending, rc)
	if err != nil {
		c.appendTerminalLocked("agent", err)
		return StepResult{}, fmt.Errorf("controller: agent transition: %w", err)
	}
	c.st = result.State
	nextHash := c.st.Hash()

	beforeHash, afterHash := prevHash, nextHash
	if err := c.appendStateTransitionLocked(&beforeHash, &afterHash, map[string]interface{}{
		"decision_kind":   string(result.Decision.Kind),
		"transition_hash": result.TransitionHash.String(),
	}); err != nil {
		return StepResult{}, err
	}

	responses, err := c.dispatchLocked(ctx, result.Decision)
	if err != nil {
		// Dispatch failures are surfaced but recoverable for the run: the
		// next observation may still proceed, per the error taxonomy's
		// propagation rule.
		_ = c.appendRaw(eventlog.KindError, nil, map[string]interface{}{
			"component":   "dispatch",
			"recoverable": true,
			"reason":      err.Error(),
		})
		return StepResult{Decision: result.Decision, StateHash: c.st.Hash()}, err
	}

	return StepResult{Decision: result.Decision, ToolResponses: responses, StateHash: c.st.Hash()}, nil
}

// Cancel stops the controller from accepting further Step calls and
// appends a terminal, unrecoverable Error event.
func (c *Controller) Cancel(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return nil
	}
	c.cancelled = true
	return c.appendRaw(eventlog.KindError, nil, map[string]interface{}{
		"component":   "controller",
		"recoverable": false,
		"reason":      reason,
	})
}

// dispatchLocked dispatches a decision's effects, returning every
// ToolResponse produced (in decision order, not completion order, per the
// ordering guarantee that wall-clock arrival never decides state folding).
func (c *Controller) dispatchLocked(ctx context.Context, d agent.Decision) ([]agent.ToolResponse, error) {
	switch d.Kind {
	case agent.DecisionNone:
		return nil, nil
	case agent.DecisionToolCall:
		resp, err := c.dispatchToolCallLocked(ctx, d.ToolCall)
		if err != nil {
			return nil, err
		}
		return []agent.ToolResponse{resp}, nil
	case agent.DecisionPatchProposal:
		return nil, c.dispatchPatchProposalLocked(ctx, d.Patch)
	case agent.DecisionMultiple:
		return c.dispatchMultipleLocked(ctx, d.Children)
	default:
		return nil, fmt.Errorf("controller: unknown decision kind %q", d.Kind)
	}
}

// dispatchMultipleLocked runs each ToolCall child concurrently, bounded by
// maxConcurrent, then appends events for every child in its original
// index order once all have resolved.
func (c *Controller) dispatchMultipleLocked(ctx context.Context, children []agent.Decision) ([]agent.ToolResponse, error) {
	type outcome struct {
		responses []agent.ToolResponse
		err       error
	}
	outcomes := make([]outcome, len(children))
	sem := make(chan struct{}, c.maxConcurrent)
	var wg sync.WaitGroup

	for i, child := range children {
		if child.Kind != agent.DecisionToolCall {
			outcomes[i] = outcome{err: fmt.Errorf("controller: unexpected nested decision kind %q in Multiple", child.Kind)}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, tc agent.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			resp, err := c.invokeToolLocked(ctx, tc)
			if err != nil {
				outcomes[i] = outcome{err: err}
				return
			}
			outcomes[i] = outcome{responses: []agent.ToolResponse{resp}}
		}(i, child.ToolCall)
	}
	wg.Wait()

	var all []agent.ToolResponse
	var firstErr error
	for i, o := range outcomes {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			if err := c.appendToolErrorLocked(children[i].ToolCall, o.err); err != nil {
				return nil, err
			}
			continue
		}
		for _, r := range o.responses {
			if err := c.appendToolResultLocked(children[i].ToolCall, r); err != nil {
				return nil, err
			}
		}
		all = append(all, o.responses...)
	}
	return all, firstErr
}

// dispatchToolCallLocked performs capability checks, invokes the tool
// synchronously, and appends the ToolCall/ToolResponse event pair.
func (c *Controller) dispatchToolCallLocked(ctx context.Context, tc agent.ToolCall) (agent.ToolResponse, error) {
	resp, err := c.invokeToolLocked(ctx, tc)
	if err != nil {
		if appendErr := c.appendToolErrorLocked(tc, err); appendErr != nil {
			return agent.ToolResponse{}, appendErr
		}
		return agent.ToolResponse{}, err
	}
	if err := c.appendToolResultLocked(tc, resp); err != nil {
		return agent.ToolResponse{}, err
	}
	return resp, nil
}

// invokeToolLocked checks capabilities then invokes the tool, without
// touching the event log — callers append the ToolCall/ToolResponse or
// Error event themselves once the outcome is known.
func (c *Controller) invokeToolLocked(ctx context.Context, tc agent.ToolCall) (toolResponse agent.ToolResponse, toolErr error) {
	if c.obs != nil {
		var end func(error)
		callID := fmt.Sprintf("%d:%s", c.log.Len(), tc.ToolName)
		ctx, end = c.obs.TrackOperation(ctx, "omen.tool.invoke",
			observability.ToolCallOperation(tc.ToolName, callID, "dispatched", 0)...)
		defer func() { end(toolErr) }()
	}
	if c.tools == nil {
		return agent.ToolResponse{}, &tool.Error{Kind: tool.KindNotFound, Tool: tc.ToolName, Message: "no tool registry configured"}
	}
	t, ok := c.tools.Get(tc.ToolName)
	if !ok {
		return agent.ToolResponse{}, &tool.Error{Kind: tool.KindNotFound, Tool: tc.ToolName, Message: "tool not registered"}
	}
	decl := t.Declaration()
	if c.caps != nil {
		for _, req := range decl.RequiredCapabilities {
			d := c.caps.Check(capability.Capability(req))
			if !d.Granted {
				return agent.ToolResponse{}, &tool.Error{Kind: tool.KindDenied, Tool: tc.ToolName, Capability: req, Message: d.Reason}
			}
		}
	}

	input, err := json.Marshal(tc.Args)
	if err != nil {
		return agent.ToolResponse{}, &tool.Error{Kind: tool.KindSerializationFailed, Tool: tc.ToolName, Message: err.Error()}
	}

	resp, err := tool.Invoke(ctx, c.tools, tc.ToolName, input, tool.Metadata{RunID: c.runID, LogicalTime: c.clock.Now().Sequence})
	if err != nil {
		return agent.ToolResponse{}, err
	}
	return agent.ToolResponse{ToolName: tc.ToolName, Response: resp}, nil
}

func (c *Controller) dispatchPatchProposalLocked(ctx context.Context, p patch.Patch) (dispatchErr error) {
	if c.obs != nil {
		var end func(error)
		_, end = c.obs.TrackOperation(ctx, "omen.patch.propose",
			observability.PatchOperation(fmt.Sprintf("%d", c.runID), p.ID.String(), "kind", string(patch.StatusProposed))...)
		defer func() { end(dispatchErr) }()
	}
	if c.patches == nil {
		return fmt.Errorf("controller: agent proposed a patch but no patch engine is configured")
	}
	if err := c.patches.Submit(p); err != nil {
		return err
	}
	return c.appendRaw(eventlog.KindPatchProposed, nil, map[string]interface{}{
		"patch_id":   p.ID.String(),
		"patch_kind": string(p.Kind),
		"reasoning":  p.Reasoning,
	})
}

func (c *Controller) appendToolResultLocked(tc agent.ToolCall, resp agent.ToolResponse) error {
	if err := c.appendRaw(eventlog.KindToolCall, nil, map[string]interface{}{
		"tool_name": tc.ToolName,
		"args":      tc.Args,
	}); err != nil {
		return err
	}
	return c.appendRaw(eventlog.KindToolResponse, nil, map[string]interface{}{
		"tool_name":     tc.ToolName,
		"response_hash": resp.Response.ResponseHash.String(),
		"source":        string(resp.Response.Metadata.Source),
	})
}

func (c *Controller) appendToolErrorLocked(tc agent.ToolCall, err error) error {
	return c.appendRaw(eventlog.KindError, nil, map[string]interface{}{
		"component":   "tool",
		"tool_name":   tc.ToolName,
		"recoverable": true,
		"reason":      err.Error(),
	})
}

func (c *Controller) appendTerminalLocked(component string, err error) {
	_ = c.appendRaw(eventlog.KindError, nil, map[string]interface{}{
		"component":   component,
		"recoverable": false,
		"reason":      err.Error(),
	})
}

// appendRaw builds and appends an event of the given kind at the log's
// next sequence, parented to the log's last event (if any).
func (c *Controller) appendRaw(kind eventlog.Kind, stateHashBefore *hashing.Hash, raw map[string]interface{}) error {
	return c.appendEventLocked(kind, stateHashBefore, nil, raw)
}

// appendStateTransitionLocked appends a StateTransition event recording
// both the state hash before and after the transition, the two fields
// pkg/replay's apply rule inspects for divergence and reconciliation.
func (c *Controller) appendStateTransitionLocked(before, after *hashing.Hash, raw map[string]interface{}) error {
	return c.appendEventLocked(eventlog.KindStateTransition, before, after, raw)
}

func (c *Controller) appendEventLocked(kind eventlog.Kind, stateHashBefore, stateHashAfter *hashing.Hash, raw map[string]interface{}) error {
	payload := eventlog.Payload{Kind: kind, Raw: raw}
	payloadHash, err := eventlog.HashPayload(payload)
	if err != nil {
		return fmt.Errorf("controller: hashing payload: %w", err)
	}

	var parent *eventlog.EventID
	if last, ok := c.log.Last(); ok {
		id := last.ID
		parent = &id
	}

	ev := eventlog.Event{
		ID:              eventlog.EventID{RunID: c.runID, Sequence: c.log.Len()},
		ParentID:        parent,
		Kind:            kind,
		Timestamp:       c.clock.Now(),
		Payload:         payload,
		PayloadHash:     payloadHash,
		StateHashBefore: stateHashBefore,
		StateHashAfter:  stateHashAfter,
	}
	return c.log.Append(ev)
}
