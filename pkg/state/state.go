// Package state implements the versioned, rehashing agent state container.
// Grounded on the teacher's kernel.reducer pattern: a map mutation always
// recomputes a cached hash, never lazily.
package state

import (
	"fmt"
	"sort"

	"github.com/staticpayload/oracle.omen/pkg/hashing"
)

// ValueKind enumerates the scalar kinds a StateValue may hold.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindBool   ValueKind = "bool"
	KindUint64 ValueKind = "u64"
	KindInt64  ValueKind = "i64"
	KindFloat  ValueKind = "f64"
	KindBytes  ValueKind = "bytes"
	KindHash   ValueKind = "hash"
	KindNone   ValueKind = "none"
)

// Value is a single scalar entry in a StateData map/list. Floats are
// allowed by the type but forbidden on consensus paths — Set rejects any
// Data containing a float (see ErrFloatInState).
type Value struct {
	Kind   ValueKind
	Str    string
	Bool   bool
	U64    uint64
	I64    int64
	F64    float64
	Bytes  []byte
	Hash   hashing.Hash
}

// canonical returns a JSON-marshalable representation of a Value.
func (v Value) canonical() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	case KindUint64:
		return v.U64
	case KindInt64:
		return v.I64
	case KindFloat:
		return v.F64
	case KindBytes:
		return v.Bytes
	case KindHash:
		return v.Hash.String()
	case KindNone:
		return nil
	default:
		return nil
	}
}

func (v Value) hasFloat() bool {
	return v.Kind == KindFloat
}

// DataKind enumerates the three-variant StateData sum.
type DataKind string

const (
	DataSingle DataKind = "single"
	DataMap    DataKind = "map"
	DataList   DataKind = "list"
)

// Data is the three-variant sum a state domain may hold: a single value,
// a map of values, or a list of values.
type Data struct {
	Kind   DataKind
	Single Value
	Map    map[string]Value
	List   []Value
}

// NewSingle builds a single-value Data.
func NewSingle(v Value) Data { return Data{Kind: DataSingle, Single: v} }

// NewMap builds a map-of-values Data.
func NewMap(m map[string]Value) Data { return Data{Kind: DataMap, Map: m} }

// NewList builds a list-of-values Data.
func NewList(l []Value) Data { return Data{Kind: DataList, List: l} }

func (d Data) canonical() interface{} {
	switch d.Kind {
	case DataSingle:
		return d.Single.canonical()
	case DataMap:
		out := make(map[string]interface{}, len(d.Map))
		for k, v := range d.Map {
			out[k] = v.canonical()
		}
		return out
	case DataList:
		out := make([]interface{}, len(d.List))
		for i, v := range d.List {
			out[i] = v.canonical()
		}
		return out
	default:
		return nil
	}
}

func (d Data) hasFloat() bool {
	switch d.Kind {
	case DataSingle:
		return d.Single.hasFloat()
	case DataMap:
		for _, v := range d.Map {
			if v.hasFloat() {
				return true
			}
		}
		return false
	case DataList:
		for _, v := range d.List {
			if v.hasFloat() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ErrFloatInState is returned by Set when the inserted Data would
// place a float value on a hash-consensus path.
var ErrFloatInState = fmt.Errorf("state: float values are forbidden on consensus paths")

// ErrDomainNotFound is returned by Remove for a domain that was never set.
var ErrDomainNotFound = fmt.Errorf("state: domain not found")

// AgentState is a versioned, rehashing map of named domains to typed
// values. state_hash = Hash(canonical(data)), recomputed on every mutation,
// which also increments version.
type AgentState struct {
	version   uint64
	data      map[string]Data
	stateHash hashing.Hash
}

// New creates an empty AgentState at version 0.
func New() *AgentState {
	s := &AgentState{data: make(map[string]Data)}
	s.rehash()
	return s
}

// Version returns the current version counter.
func (s *AgentState) Version() uint64 { return s.version }

// Hash returns the cached state hash.
func (s *AgentState) Hash() hashing.Hash { return s.stateHash }

// Get returns the Data at domain, if present.
func (s *AgentState) Get(domain string) (Data, bool) {
	d, ok := s.data[domain]
	return d, ok
}

// Set inserts or replaces the Data at domain, then recomputes state_hash
// and increments version.
func (s *AgentState) Set(domain string, d Data) error {
	if d.hasFloat() {
		return ErrFloatInState
	}
	s.data[domain] = d
	s.version++
	s.rehash()
	return nil
}

// Remove deletes domain, only if it existed, then recomputes state_hash
// and increments version.
func (s *AgentState) Remove(domain string) error {
	if _, ok := s.data[domain]; !ok {
		return ErrDomainNotFound
	}
	delete(s.data, domain)
	s.version++
	s.rehash()
	return nil
}

// Equivalent reports whether s and other have equal hashes.
func (s *AgentState) Equivalent(other *AgentState) bool {
	return s.Hash() == other.Hash()
}

// Domains returns the sorted list of domain names currently present.
func (s *AgentState) Domains() []string {
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a deep-enough copy of the canonical domain map, suitable
// for hashing or serialization elsewhere (e.g. the replay engine).
func (s *AgentState) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(s.data))
	for k, v := range s.data {
		out[k] = v.canonical()
	}
	return out
}

func (s *AgentState) rehash() {
	h, err := hashing.HashCanonical(s.Snapshot())
	if err != nil {
		// Set/Remove already reject floats before reaching here, so this
		// can only happen for unsupported value kinds, which is a bug.
		panic(fmt.Sprintf("state: canonical hash of validated data failed: %v", err))
	}
	s.stateHash = h
}
