package replay

import (
	"sort"
	"sync"

	"github.com/staticpayload/oracle.omen/pkg/hashing"
	"github.com/staticpayload/oracle.omen/pkg/state"
)

// Snapshot is a point-in-time checkpoint of replayed state, allowing
// replay to resume without re-reading the log from position zero.
type Snapshot struct {
	ID        string
	RunID     uint64
	Position  uint64
	State     *state.AgentState
	StateHash hashing.Hash
	EventHash hashing.Hash
}

// NewSnapshot builds a Snapshot, capturing s's hash at the time of the call.
func NewSnapshot(id string, runID, position uint64, s *state.AgentState) Snapshot {
	return Snapshot{ID: id, RunID: runID, Position: position, State: s, StateHash: s.Hash()}
}

// Verify reports whether the snapshot's recorded hash still matches its
// captured state.
func (s Snapshot) Verify() bool {
	return s.StateHash == s.State.Hash()
}

// SnapshotManager indexes snapshots by log position for efficient resume.
type SnapshotManager struct {
	mu        sync.RWMutex
	snapshots map[uint64]Snapshot
}

// NewSnapshotManager creates an empty manager.
func NewSnapshotManager() *SnapshotManager {
	return &SnapshotManager{snapshots: make(map[uint64]Snapshot)}
}

// Add registers a snapshot, keyed by its position.
func (m *SnapshotManager) Add(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.Position] = s
}

// Get returns the snapshot at the exact position, if any.
func (m *SnapshotManager) Get(position uint64) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[position]
	return s, ok
}

// GetBefore returns the snapshot at the greatest position <= position.
func (m *SnapshotManager) GetBefore(position uint64) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	best := uint64(0)
	found := false
	for pos := range m.snapshots {
		if pos <= position && (!found || pos > best) {
			best, found = pos, true
		}
	}
	if !found {
		return Snapshot{}, false
	}
	return m.snapshots[best], true
}

// Positions returns every snapshot position, sorted ascending.
func (m *SnapshotManager) Positions() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint64, 0, len(m.snapshots))
	for pos := range m.snapshots {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
