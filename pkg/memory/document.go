// Package memory implements an in-process, replayable CRDT document store:
// last-writer-wins documents merged by causal event ordinal, indexed by
// provenance so "what did event N touch" is a direct lookup.
package memory

import (
	"github.com/staticpayload/oracle.omen/pkg/hashing"
)

// ValueKind enumerates the scalar and composite kinds a Value may hold.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueBytes  ValueKind = "bytes"
	ValueInt    ValueKind = "integer"
	ValueBool   ValueKind = "bool"
	ValueMap    ValueKind = "map"
	ValueList   ValueKind = "list"
	ValueNull   ValueKind = "null"
	ValueRef    ValueKind = "ref"
)

// Value is the tagged-union payload a Document carries.
type Value struct {
	Kind  ValueKind
	Str   string
	Bytes []byte
	Int   int64
	Bool  bool
	Map   map[string]Value
	List  []Value
	Ref   hashing.Hash
}

// TypeName returns the kind string, mirroring DocumentValue::type_name.
func (v Value) TypeName() string { return string(v.Kind) }

func (v Value) canonical() interface{} {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueBytes:
		return v.Bytes
	case ValueInt:
		return v.Int
	case ValueBool:
		return v.Bool
	case ValueMap:
		out := make(map[string]interface{}, len(v.Map))
		for k, nested := range v.Map {
			out[k] = nested.canonical()
		}
		return out
	case ValueList:
		out := make([]interface{}, len(v.List))
		for i, nested := range v.List {
			out[i] = nested.canonical()
		}
		return out
	case ValueRef:
		return v.Ref.String()
	case ValueNull:
		return nil
	default:
		return nil
	}
}

// StringValue, IntValue, BoolValue, BytesValue, RefValue construct scalar
// Values, mirroring DocumentValue's From<T> conversions.
func StringValue(s string) Value        { return Value{Kind: ValueString, Str: s} }
func IntValue(n int64) Value            { return Value{Kind: ValueInt, Int: n} }
func BoolValue(b bool) Value            { return Value{Kind: ValueBool, Bool: b} }
func BytesValue(b []byte) Value         { return Value{Kind: ValueBytes, Bytes: b} }
func RefValue(h hashing.Hash) Value     { return Value{Kind: ValueRef, Ref: h} }
func NullValue() Value                  { return Value{Kind: ValueNull} }

// MergeOutcome is the result of merging one document into another.
type MergeOutcome string

const (
	MergeApplied   MergeOutcome = "merged"
	MergeUnchanged MergeOutcome = "unchanged"
	MergeKeyMismatch MergeOutcome = "key_mismatch"
)

// Document is a single LWW-register CRDT entry: the value with the
// greatest CausalEvent ordinal always wins a merge.
type Document struct {
	Key         string
	Value       Value
	CausalEvent uint64
	hash        hashing.Hash
}

// NewDocument creates a Document and computes its initial hash.
func NewDocument(key string, value Value, causalEvent uint64) Document {
	d := Document{Key: key, Value: value, CausalEvent: causalEvent}
	d.rehash()
	return d
}

// Hash returns the document's cached content hash.
func (d Document) Hash() hashing.Hash { return d.hash }

func (d *Document) rehash() {
	h, err := hashing.HashCanonical(map[string]interface{}{
		"key":          d.Key,
		"value":        d.Value.canonical(),
		"causal_event": d.CausalEvent,
	})
	if err != nil {
		// Document values never contain floats or unmarshalable types, so
		// canonical encoding cannot fail here.
		panic("memory: document hash: " + err.Error())
	}
	d.hash = h
}

// Merge applies other into d under LWW semantics: the document with the
// greater CausalEvent wins. Keys must match.
func (d *Document) Merge(other Document) MergeOutcome {
	if d.Key != other.Key {
		return MergeKeyMismatch
	}
	if other.CausalEvent > d.CausalEvent {
		d.Value = other.Value
		d.CausalEvent = other.CausalEvent
		d.rehash()
		return MergeApplied
	}
	return MergeUnchanged
}
