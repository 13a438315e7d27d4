package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/staticpayload/oracle.omen/pkg/hashing"
)

// ErrTemporalQueryUnsupported is returned by Store.StateAtEvent: reconstructing
// state as of a past event requires replaying the event log, not inspecting
// the live document map.
var ErrTemporalQueryUnsupported = errors.New("memory: state-at-event requires event log replay")

// Operation classifies a provenance record.
type Operation string

const (
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
	OpMerge  Operation = "merge"
)

// WriteResult is the outcome of Store.Write.
type WriteResult struct {
	Key       string
	Outcome   MergeOutcome
	StoreHash hashing.Hash
}

// DeleteOutcome is the outcome of Store.Delete.
type DeleteOutcome string

const (
	Deleted  DeleteOutcome = "deleted"
	NotFound DeleteOutcome = "not_found"
)

// Snapshot captures every document's hash at a point in time, suitable for
// replay/checkpointing without copying document bodies.
type Snapshot struct {
	DocumentHashes map[string]hashing.Hash
	StoreHash      hashing.Hash
}

// Store is an in-process CRDT document store: documents merge under LWW
// semantics on write, and every write/delete is indexed by the causal
// event that produced it.
type Store struct {
	mu         sync.RWMutex
	documents  map[string]Document
	provenance map[uint64][]string
	storeHash  hashing.Hash
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		documents:  make(map[string]Document),
		provenance: make(map[uint64][]string),
	}
}

// Write inserts doc, or merges it into the existing document at the same
// key under LWW semantics, recording provenance under doc.CausalEvent.
func (s *Store) Write(doc Document) WriteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.provenance[doc.CausalEvent] = append(s.provenance[doc.CausalEvent], doc.Key)

	outcome := MergeApplied
	if existing, ok := s.documents[doc.Key]; ok {
		outcome = existing.Merge(doc)
		s.documents[doc.Key] = existing
	} else {
		s.documents[doc.Key] = doc
	}

	s.rehash()
	return WriteResult{Key: doc.Key, Outcome: outcome, StoreHash: s.storeHash}
}

// Read returns the document at key, if present.
func (s *Store) Read(key string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[key]
	return d, ok
}

// Delete removes the document at key, recording provenance under
// causalEvent with a "!"-prefixed key so a key's deletion is
// distinguishable from a write in the provenance index.
func (s *Store) Delete(key string, causalEvent uint64) DeleteOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[key]; !ok {
		return NotFound
	}
	delete(s.documents, key)
	s.provenance[causalEvent] = append(s.provenance[causalEvent], "!"+key)
	s.rehash()
	return Deleted
}

// Keys returns every document key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.documents))
	for k := range s.documents {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of documents currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Hash returns the store's current content hash.
func (s *Store) Hash() hashing.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storeHash
}

// KeysForEvent returns the keys (write or "!"-prefixed delete) touched by
// causalEvent, in the order they were recorded.
func (s *Store) KeysForEvent(causalEvent uint64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.provenance[causalEvent]...)
}

// Snapshot captures every document's current hash.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes := make(map[string]hashing.Hash, len(s.documents))
	for k, d := range s.documents {
		hashes[k] = d.Hash()
	}
	return Snapshot{DocumentHashes: hashes, StoreHash: s.storeHash}
}

// StateAtEvent is intentionally unimplemented: computing the store's state
// as of an arbitrary past event requires replaying writes from the event
// log rather than inspecting the live document map, and the core's C4/C12
// components own that reconstruction. Mirrors the original store's own
// unfinished state_at_event (it just returns a clone of current state).
func (s *Store) StateAtEvent(causalEvent uint64) (*Store, error) {
	return nil, ErrTemporalQueryUnsupported
}

func (s *Store) rehash() {
	keys := make([]string, 0, len(s.documents))
	for k := range s.documents {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hashes := make([]hashing.Hash, len(keys))
	for i, k := range keys {
		hashes[i] = s.documents[k].Hash()
	}
	s.storeHash = hashing.Combine(hashes...)
}
