// Package logtime provides injected logical time: no wall-clock is ever
// read on a consensus path. Every use-site accepts a TimeSource interface
// so tests can inject determinism without rewriting callers.
package logtime

import "sync"

// LogicalTime totally orders events within a run: lexicographically by
// (RunID, Sequence), with Sequence strictly monotone within a RunID.
type LogicalTime struct {
	RunID    uint64 `json:"run_id"`
	Sequence uint64 `json:"sequence"`
}

// Less reports whether t sorts before other.
func (t LogicalTime) Less(other LogicalTime) bool {
	if t.RunID != other.RunID {
		return t.RunID < other.RunID
	}
	return t.Sequence < other.Sequence
}

// Equal reports whether t and other name the same logical instant.
func (t LogicalTime) Equal(other LogicalTime) bool {
	return t == other
}

// TimeSource is the sole interface through which any component observes
// time. now() is non-mutating; tick() returns the current time then
// advances it.
type TimeSource interface {
	// Now returns the current logical time without advancing it.
	Now() LogicalTime
	// Tick returns the current logical time, then advances the sequence.
	Tick() LogicalTime
}

// Standard is a TimeSource backed by a monotonic in-process counter, for
// use as the run controller's sole clock (never wall-clock).
type Standard struct {
	mu       sync.Mutex
	runID    uint64
	sequence uint64
}

// NewStandard creates a Standard time source for the given run, with
// sequence starting at 0.
func NewStandard(runID uint64) *Standard {
	return &Standard{runID: runID}
}

// Now implements TimeSource.
func (s *Standard) Now() LogicalTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LogicalTime{RunID: s.runID, Sequence: s.sequence}
}

// Tick implements TimeSource.
func (s *Standard) Tick() LogicalTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := LogicalTime{RunID: s.runID, Sequence: s.sequence}
	s.sequence++
	return current
}

// Mock is a TimeSource for tests: it offers Set/Advance in addition to the
// TimeSource contract, so a test can drive time deterministically.
type Mock struct {
	mu       sync.Mutex
	runID    uint64
	sequence uint64
}

// NewMock creates a Mock time source seeded at initial.
func NewMock(runID uint64, initial uint64) *Mock {
	return &Mock{runID: runID, sequence: initial}
}

// Now implements TimeSource.
func (m *Mock) Now() LogicalTime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return LogicalTime{RunID: m.runID, Sequence: m.sequence}
}

// Tick implements TimeSource.
func (m *Mock) Tick() LogicalTime {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := LogicalTime{RunID: m.runID, Sequence: m.sequence}
	m.sequence++
	return current
}

// Set pins the sequence to an explicit value.
func (m *Mock) Set(sequence uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = sequence
}

// Advance moves the sequence forward by delta.
func (m *Mock) Advance(delta uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence += delta
}
