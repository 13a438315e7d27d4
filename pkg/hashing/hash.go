// Package hashing provides stable content hashes over the canonical byte
// encoding of values, per the kernel's consensus hashing contract.
package hashing

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"lukechampine.com/blake3"
)

// Size is the length in bytes of a Hash.
const Size = 32

// Hash is a 32-byte BLAKE3 digest over a canonical byte encoding.
// The zero value is the reserved sentinel meaning "no prior state".
type Hash [Size]byte

// Zero is the reserved sentinel hash.
var Zero = Hash{}

// IsZero reports whether h is the reserved sentinel.
func (h Hash) IsZero() bool {
	return h == Zero
}

// String renders h as 64 lowercase hex characters.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalJSON renders the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses a hex string into h.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := FromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ErrInvalidFormat is returned when a hex string cannot be parsed as a Hash.
var ErrInvalidFormat = fmt.Errorf("hashing: invalid format")

// FromHex parses 64 lowercase hex characters into a Hash.
func FromHex(s string) (Hash, error) {
	if len(s) != Size*2 {
		return Hash{}, ErrInvalidFormat
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// HashBytes computes the BLAKE3 digest of raw bytes.
func HashBytes(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// Canonical returns the canonical JSON encoding of v: object keys in
// lexicographic order, no insignificant whitespace, integers as decimal.
// A number whose JSON form is not an integer fails with ErrFloatNotAllowed;
// a float holding an integral value (such as 2.0) marshals as an integer
// and is encoded as that integer.
func Canonical(v interface{}) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HashCanonical computes the BLAKE3 digest of the canonical encoding of v.
func HashCanonical(v interface{}) (Hash, error) {
	b, err := Canonical(v)
	if err != nil {
		return Hash{}, err
	}
	return HashBytes(b), nil
}

// Combine concatenates hashes in order and hashes the result. Order-sensitive:
// Combine([a,b]) != Combine([b,a]) in general.
func Combine(hashes ...Hash) Hash {
	buf := make([]byte, 0, len(hashes)*Size)
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return HashBytes(buf)
}

// TransitionHash computes the hash binding a state transition: the state
// before, the event that caused the transition, and the state after.
func TransitionHash(prevState, event, nextState Hash) Hash {
	return Combine(prevState, event, nextState)
}

// ErrFloatNotAllowed is returned when a float value reaches a consensus hash.
var ErrFloatNotAllowed = fmt.Errorf("hashing: floating-point values are forbidden on consensus paths")

// normalize round-trips v through encoding/json with UseNumber so that
// integers and floats can be told apart; encodeNumber then rejects floats.
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("hashing: marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("hashing: decode: %w", err)
	}
	return generic, nil
}

// encodeCanonical writes the RFC 8785-style canonical form of v: sorted
// object keys, compact separators, decimal integers, UTF-8 strings.
func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return encodeNumber(buf, val)
	case string:
		return encodeString(buf, val)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("hashing: unsupported canonical value type %T", v)
	}
}

func encodeString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

// encodeNumber rejects floats and writes integers as plain decimal.
func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("%w: %q", ErrFloatNotAllowed, n.String())
	}
	buf.WriteString(n.String())
	return nil
}
