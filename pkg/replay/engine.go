// Package replay reconstructs agent state from an event log and verifies
// that two recorded runs are structurally identical.
//
// Replay never re-invokes an Agent. It verifies that the recorded event
// stream is internally consistent and folds each event's hash into state
// so that two equal event streams always produce equal state hashes.
// Detecting a divergence is a structural comparison over hashes, not a
// re-execution of decisions.
package replay

import (
	"fmt"

	"github.com/staticpayload/oracle.omen/pkg/eventlog"
	"github.com/staticpayload/oracle.omen/pkg/hashing"
	"github.com/staticpayload/oracle.omen/pkg/state"
)

// Engine replays a single EventLog, maintaining the state that results
// from folding every event seen so far.
type Engine struct {
	log      *eventlog.EventLog
	current  *state.AgentState
	position uint64
	diverged bool
}

// New creates an Engine over log, starting from an empty initial state.
func New(log *eventlog.EventLog) *Engine {
	return &Engine{log: log, current: state.New()}
}

// WithState creates an Engine over log, seeded with an already-reconstructed
// state (e.g. from a Snapshot).
func WithState(log *eventlog.EventLog, initial *state.AgentState) *Engine {
	return &Engine{log: log, current: initial}
}

// Position returns the next sequence number the engine will read.
func (e *Engine) Position() uint64 { return e.position }

// CurrentState returns the state reconstructed so far.
func (e *Engine) CurrentState() *state.AgentState { return e.current }

// Diverged reports whether a state-hash mismatch was observed during replay.
func (e *Engine) Diverged() bool { return e.diverged }

// IsComplete reports whether the engine has consumed every event in the log.
func (e *Engine) IsComplete() bool { return e.position >= e.log.Len() }

// Step applies the event at the current position and advances by one.
// Returns the event applied, or ok=false if the log is exhausted.
func (e *Engine) Step() (ev eventlog.Event, ok bool, err error) {
	ev, ok = e.log.GetBySequence(e.position)
	if !ok {
		return eventlog.Event{}, false, nil
	}
	if err := e.applyEvent(ev); err != nil {
		return eventlog.Event{}, false, err
	}
	e.position++
	return ev, true, nil
}

// ReplayAll steps through every remaining event and returns the resulting
// state.
func (e *Engine) ReplayAll() (*state.AgentState, error) {
	for {
		_, ok, err := e.Step()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	return e.current, nil
}

// ReplayFrom seeks to position and replays to the end of the log.
func (e *Engine) ReplayFrom(position uint64) (*state.AgentState, error) {
	e.position = position
	return e.ReplayAll()
}

// applyEvent folds a single event into the engine's state, per the core's
// structural apply rule: for StateTransition events, a recorded
// state_hash_before that disagrees with the engine's current hash flags a
// divergence and the engine adopts a fresh state (reconciling mode) rather
// than attempting to repair the mismatch, and the recorded state_hash_after
// is folded into a per-event state key; for every other event kind the
// event's own hash is folded into a per-event state key, so that two equal
// event streams always produce equal state hashes.
func (e *Engine) applyEvent(ev eventlog.Event) error {
	if ev.Kind == eventlog.KindStateTransition {
		if ev.StateHashBefore != nil && *ev.StateHashBefore != e.current.Hash() {
			e.diverged = true
			e.current = state.New()
		}
		if ev.StateHashAfter != nil {
			key := fmt.Sprintf("event_%d", ev.ID.Sequence)
			if err := e.current.Set(key, state.NewSingle(state.Value{Kind: state.KindHash, Hash: *ev.StateHashAfter})); err != nil {
				return fmt.Errorf("replay: folding state_hash_after at %d: %w", ev.ID.Sequence, err)
			}
		}
		return nil
	}

	h, err := eventlog.EventHash(ev)
	if err != nil {
		return fmt.Errorf("replay: hashing event %d: %w", ev.ID.Sequence, err)
	}
	key := fmt.Sprintf("event_%d", ev.ID.Sequence)
	if err := e.current.Set(key, state.NewSingle(state.Value{Kind: state.KindHash, Hash: h})); err != nil {
		return fmt.Errorf("replay: folding event hash at %d: %w", ev.ID.Sequence, err)
	}
	return nil
}

// VerificationReport summarizes a pass over an EventLog checking payload
// hash integrity.
type VerificationReport struct {
	TotalEvents     uint64
	VerifiedEvents  uint64
	HashFailures    uint64
	StateMismatches uint64
}

// IsValid reports whether verification found no failures.
func (r VerificationReport) IsValid() bool {
	return r.HashFailures == 0 && r.StateMismatches == 0
}

// Verify walks every event in the log and checks that its recorded
// PayloadHash matches the hash of its own payload.
func Verify(log *eventlog.EventLog) (VerificationReport, error) {
	report := VerificationReport{TotalEvents: log.Len()}
	for i := uint64(0); i < log.Len(); i++ {
		ev, ok := log.GetBySequence(i)
		if !ok {
			continue
		}
		expected, err := eventlog.HashPayload(ev.Payload)
		if err != nil {
			return report, fmt.Errorf("replay: hashing payload at %d: %w", i, err)
		}
		if expected == ev.PayloadHash {
			report.VerifiedEvents++
		} else {
			report.HashFailures++
		}
	}
	return report, nil
}

// DivergencePoint records where two logs first disagree.
type DivergencePoint struct {
	Position uint64
	EventID  eventlog.EventID
	Expected hashing.Hash
	Actual   hashing.Hash
	Diff     string
}

// DetectDivergence compares a and b position by position, returning every
// point at which their event hashes disagree, or at which one log has an
// event the other lacks.
func DetectDivergence(a, b *eventlog.EventLog) ([]DivergencePoint, error) {
	var points []DivergencePoint
	pos := uint64(0)
	for {
		ea, okA := a.GetBySequence(pos)
		eb, okB := b.GetBySequence(pos)

		switch {
		case okA && okB:
			ha, err := eventlog.EventHash(ea)
			if err != nil {
				return points, fmt.Errorf("replay: hashing a[%d]: %w", pos, err)
			}
			hb, err := eventlog.EventHash(eb)
			if err != nil {
				return points, fmt.Errorf("replay: hashing b[%d]: %w", pos, err)
			}
			if ha != hb {
				points = append(points, DivergencePoint{
					Position: pos,
					EventID:  ea.ID,
					Expected: ha,
					Actual:   hb,
					Diff:     diffEvents(ea, eb),
				})
			}
		case okA || okB:
			points = append(points, DivergencePoint{
				Position: pos,
				EventID:  eventlog.EventID{Sequence: pos},
				Diff:     "different event count",
			})
			return points, nil
		default:
			return points, nil
		}
		pos++
	}
}

func diffEvents(a, b eventlog.Event) string {
	if a.Kind != b.Kind {
		return fmt.Sprintf("kind: %s vs %s", a.Kind, b.Kind)
	}
	if a.PayloadHash != b.PayloadHash {
		return fmt.Sprintf("payload: %s vs %s", a.PayloadHash, b.PayloadHash)
	}
	return "unknown difference"
}
