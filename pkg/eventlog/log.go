package eventlog

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidEventID is returned when an Event is appended with an EventID
// whose RunID does not match the log's run.
var ErrInvalidEventID = errors.New("eventlog: event id does not belong to this run")

// ErrParentNotFound is returned when an Event names a ParentID that is not
// already present in the log.
var ErrParentNotFound = errors.New("eventlog: parent event not found")

// ErrHashMismatch is returned when an Event's PayloadHash does not match the
// hash of its own Payload.
var ErrHashMismatch = errors.New("eventlog: payload hash mismatch")

// ErrCorruptedLog is returned when an Event's sequence number is not the
// next dense sequence number for this run (0, 1, 2, ... with no gaps).
var ErrCorruptedLog = errors.New("eventlog: sequence is not dense")

// EventLog is an append-only, sequence-checked, parent-linked,
// hash-verified log of events for a single run.
type EventLog struct {
	mu     sync.RWMutex
	runID  uint64
	events []Event
}

// New creates an empty EventLog for the given run.
func New(runID uint64) *EventLog {
	return &EventLog{runID: runID}
}

// RunID returns the run this log belongs to.
func (l *EventLog) RunID() uint64 { return l.runID }

// Append validates and appends e to the log. Validation order: run_id
// match, dense sequence, parent closure, payload hash. Never mutates any
// existing event.
func (l *EventLog) Append(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.ID.RunID != l.runID {
		return fmt.Errorf("%w: expected run %d, got %d", ErrInvalidEventID, l.runID, e.ID.RunID)
	}
	if e.ID.Sequence != uint64(len(l.events)) {
		return fmt.Errorf("%w: expected sequence %d, got %d", ErrCorruptedLog, len(l.events), e.ID.Sequence)
	}
	if e.ParentID != nil {
		if _, ok := l.lookupLocked(*e.ParentID); !ok {
			return fmt.Errorf("%w: %+v", ErrParentNotFound, *e.ParentID)
		}
	}

	expectedHash, err := HashPayload(e.Payload)
	if err != nil {
		return fmt.Errorf("eventlog: hashing payload: %w", err)
	}
	if expectedHash != e.PayloadHash {
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, expectedHash, e.PayloadHash)
	}

	l.events = append(l.events, e)
	return nil
}

// Get returns the event with the given EventID.
func (l *EventLog) Get(id EventID) (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lookupLocked(id)
}

func (l *EventLog) lookupLocked(id EventID) (Event, bool) {
	if id.RunID != l.runID || id.Sequence >= uint64(len(l.events)) {
		return Event{}, false
	}
	return l.events[id.Sequence], true
}

// GetBySequence returns the event at the given dense sequence number.
func (l *EventLog) GetBySequence(sequence uint64) (Event, bool) {
	return l.Get(EventID{RunID: l.runID, Sequence: sequence})
}

// Last returns the most recently appended event, if any.
func (l *EventLog) Last() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// Events returns all events in order, from, to (exclusive), bounded to
// the log's actual length.
func (l *EventLog) Events(from, to uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := uint64(len(l.events))
	if from >= n {
		return nil
	}
	if to > n {
		to = n
	}
	if from >= to {
		return nil
	}
	out := make([]Event, to-from)
	copy(out, l.events[from:to])
	return out
}

// Len returns the number of events in the log.
func (l *EventLog) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.events))
}

// LogSnapshot is the small resumption token the spec defines: enough to
// identify a log's run and its current tail without copying its events.
// Use Events(from, to) to read a range of the log itself.
type LogSnapshot struct {
	RunID       uint64
	AtSequence  uint64
	LastEventID EventID
}

// Snapshot returns {run_id, at_sequence, last_event_id} describing the
// log's current tail.
func (l *EventLog) Snapshot() LogSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := LogSnapshot{RunID: l.runID, AtSequence: uint64(len(l.events))}
	if n := len(l.events); n > 0 {
		snap.LastEventID = l.events[n-1].ID
	}
	return snap
}
