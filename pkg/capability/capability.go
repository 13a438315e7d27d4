// Package capability implements hierarchical domain:action:scope capability
// names, wildcard matching, and immutable capability sets.
package capability

import (
	"sort"
	"strings"
)

// Capability is a colon-separated permission name, e.g. "fs:read:/tmp".
type Capability string

// Matches reports whether c matches pattern, component-wise: every
// non-"*" component of pattern must equal the corresponding component of c.
// The two must have the same number of components.
func (c Capability) Matches(pattern Capability) bool {
	cParts := strings.Split(string(c), ":")
	pParts := strings.Split(string(pattern), ":")
	if len(cParts) != len(pParts) {
		return false
	}
	for i, p := range pParts {
		if p != "*" && p != cParts[i] {
			return false
		}
	}
	return true
}

// Set is an immutable sorted set of capabilities. The zero value is the
// empty set.
type Set struct {
	members []Capability
}

// NewSet builds an immutable, sorted, de-duplicated Set from caps.
func NewSet(caps ...Capability) Set {
	uniq := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		uniq[c] = struct{}{}
	}
	members := make([]Capability, 0, len(uniq))
	for c := range uniq {
		members = append(members, c)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return Set{members: members}
}

// Has reports whether c is exactly present in s.
func (s Set) Has(c Capability) bool {
	i := sort.Search(len(s.members), func(i int) bool { return s.members[i] >= c })
	return i < len(s.members) && s.members[i] == c
}

// HasPattern reports whether any member of s matches pattern (the member is
// tested as the concrete capability, pattern as the wildcard query) — used
// to answer "does this set grant anything under fs:*".
func (s Set) HasPattern(pattern Capability) bool {
	for _, c := range s.members {
		if c.Matches(pattern) {
			return true
		}
	}
	return false
}

// grantedBy reports whether some member of s, read as a wildcard grant,
// covers the concrete capability c (e.g. member "fs:read:*" covers
// c = "fs:read:/tmp"). This is the direction Checker.Check uses.
func (s Set) grantedBy(c Capability) bool {
	for _, member := range s.members {
		if c.Matches(member) {
			return true
		}
	}
	return false
}

// Members returns a copy of the sorted capabilities in s. Mutating the
// returned slice does not affect s.
func (s Set) Members() []Capability {
	out := make([]Capability, len(s.members))
	copy(out, s.members)
	return out
}

// Len returns the number of capabilities in s.
func (s Set) Len() int {
	return len(s.members)
}

// Decision is the outcome of a capability check.
type Decision struct {
	Granted    bool
	Capability Capability
	Reason     string
}

// Checker wraps a Set and exposes capability checks against it.
type Checker struct {
	set Set
}

// NewChecker builds a Checker over set. Capabilities are fixed for the
// duration of a run: a Checker never grows its underlying set after
// construction.
func NewChecker(set Set) *Checker {
	return &Checker{set: set}
}

// Check reports whether c is granted, either exactly or via a wildcard
// member of the checker's set.
func (ch *Checker) Check(c Capability) Decision {
	if ch.set.Has(c) || ch.set.grantedBy(c) {
		return Decision{Granted: true, Capability: c}
	}
	return Decision{Granted: false, Capability: c, Reason: "capability not granted: " + string(c)}
}

// CheckAll reports the first denial among cs, or a granted decision if all
// are granted.
func (ch *Checker) CheckAll(cs ...Capability) Decision {
	for _, c := range cs {
		if d := ch.Check(c); !d.Granted {
			return d
		}
	}
	return Decision{Granted: true}
}
