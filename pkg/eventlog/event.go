// Package eventlog implements the append-only, sequence-checked,
// parent-linked, hash-verified event log.
package eventlog

import (
	"github.com/staticpayload/oracle.omen/pkg/hashing"
	"github.com/staticpayload/oracle.omen/pkg/logtime"
)

// EventID identifies an event within its run by a dense sequence number.
type EventID struct {
	RunID    uint64 `json:"run_id"`
	Sequence uint64 `json:"sequence"`
}

// Kind names the payload variant carried by an Event.
type Kind string

const (
	KindAgentInit       Kind = "agent_init"
	KindObservation     Kind = "observation"
	KindToolCall        Kind = "tool_call"
	KindToolResponse    Kind = "tool_response"
	KindStateTransition Kind = "state_transition"
	KindPatchProposed   Kind = "patch_proposed"
	KindPatchApplied    Kind = "patch_applied"
	KindError           Kind = "error"
)

// Payload is the body of an Event: its Kind plus Raw, the canonical
// representation that is actually hashed and persisted, so that payload
// equality is always decided by content.
type Payload struct {
	Kind Kind                   `json:"kind"`
	Raw  map[string]interface{} `json:"raw"`
}

// Event is a single, immutable entry in an EventLog.
type Event struct {
	ID              EventID             `json:"id"`
	ParentID        *EventID            `json:"parent_id,omitempty"`
	Kind            Kind                `json:"kind"`
	Timestamp       logtime.LogicalTime `json:"timestamp"`
	Payload         Payload             `json:"payload"`
	PayloadHash     hashing.Hash        `json:"payload_hash"`
	StateHashBefore *hashing.Hash       `json:"state_hash_before,omitempty"`
	StateHashAfter  *hashing.Hash       `json:"state_hash_after,omitempty"`
}

// canonical returns the part of the event that is covered by hashing:
// everything except the payload hash itself (which is derived from the
// payload, not the other way around) and the state_hash_before and
// state_hash_after fields.
func (e Event) canonical() (map[string]interface{}, error) {
	out := map[string]interface{}{
		"id":        map[string]interface{}{"run_id": e.ID.RunID, "sequence": e.ID.Sequence},
		"kind":      string(e.Kind),
		"timestamp": map[string]interface{}{"run_id": e.Timestamp.RunID, "sequence": e.Timestamp.Sequence},
		"payload":   e.Payload.Raw,
	}
	if e.ParentID != nil {
		out["parent_id"] = map[string]interface{}{"run_id": e.ParentID.RunID, "sequence": e.ParentID.Sequence}
	}
	return out, nil
}

// EventHash computes the hash of e's envelope, used by replay to compare
// two logs position-by-position.
func EventHash(e Event) (hashing.Hash, error) {
	c, err := e.canonical()
	if err != nil {
		return hashing.Hash{}, err
	}
	return hashing.HashCanonical(c)
}

// HashPayload computes the canonical hash of a payload's raw body.
func HashPayload(p Payload) (hashing.Hash, error) {
	return hashing.HashCanonical(p.Raw)
}
