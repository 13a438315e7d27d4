package patch

// StatusKind is a patch's position in the lifecycle state machine.
type StatusKind string

const (
	StatusProposed   StatusKind = "proposed"
	StatusTested     StatusKind = "tested"
	StatusAudited    StatusKind = "audited"
	StatusApproved   StatusKind = "approved"
	StatusApplied    StatusKind = "applied"
	StatusRejected   StatusKind = "rejected"
	StatusRolledBack StatusKind = "rolled_back"
)

// Status is a patch's lifecycle state; Rejected and RolledBack carry a
// reason.
type Status struct {
	Kind   StatusKind
	Reason string
}

// Proposed is the initial status of every submitted patch.
func Proposed() Status { return Status{Kind: StatusProposed} }

// Rejected builds a terminal rejected status with reason.
func Rejected(reason string) Status { return Status{Kind: StatusRejected, Reason: reason} }

// RolledBack builds a terminal rolled-back status with reason.
func RolledBack(reason string) Status { return Status{Kind: StatusRolledBack, Reason: reason} }

// forward holds, for each non-terminal status, the set of statuses it may
// advance to. Rejected is always reachable except from Applied (a patch
// already live can only be rolled back, not rejected after the fact) and
// RolledBack (also terminal).
var forward = map[StatusKind][]StatusKind{
	StatusProposed: {StatusTested, StatusRejected},
	StatusTested:   {StatusAudited, StatusApproved, StatusRejected},
	StatusAudited:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusApplied, StatusRejected},
	StatusApplied:  {StatusRolledBack},
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another. The state machine is monotonic: there is no path back
// from a later gate to an earlier one, only forward or to a terminal
// Rejected/RolledBack.
func CanTransition(from, to StatusKind) bool {
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}
