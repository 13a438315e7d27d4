// Package scheduler dispatches a compiled plan DAG's nodes in dependency
// order, bounded by a concurrency cap, with deterministic lexicographic
// ordering among nodes that become ready simultaneously.
package scheduler

import (
	"errors"
	"sort"

	"github.com/staticpayload/oracle.omen/pkg/plan"
)

// ErrAlreadyRunning is returned by Start when id is already running.
var ErrAlreadyRunning = errors.New("scheduler: node already running")

// ErrNotRunning is returned by Complete when id is not currently running.
var ErrNotRunning = errors.New("scheduler: node not running")

// Scheduler tracks the ready/pending/running partition of a DAG's nodes and
// dispatches ready nodes up to a concurrency cap.
type Scheduler struct {
	dag           *plan.DAG
	maxConcurrent int

	ready   []string
	pending map[string]int // node id -> remaining unmet dependency count
	running map[string]struct{}
}

// New creates a Scheduler bounded by maxConcurrent, uninitialized until
// Initialize is called.
func New(maxConcurrent int) *Scheduler {
	return &Scheduler{maxConcurrent: maxConcurrent}
}

// Initialize seeds the ready queue with every zero-indegree node of dag and
// the pending map with each node's remaining dependency count.
func (s *Scheduler) Initialize(dag *plan.DAG) {
	s.dag = dag
	s.running = make(map[string]struct{})
	s.pending = make(map[string]int)
	s.ready = nil

	ids := dag.NodeIDs()
	for _, id := range ids {
		remaining := len(dag.Dependencies(id))
		if remaining == 0 {
			s.ready = append(s.ready, id)
		} else {
			s.pending[id] = remaining
		}
	}
	sort.Strings(s.ready)
}

// Next pops the lexicographically smallest ready node, provided the number
// of currently-running nodes is below the concurrency cap. Returns ("",
// false) under backpressure or when nothing is ready.
func (s *Scheduler) Next() (string, bool) {
	if len(s.running) >= s.maxConcurrent {
		return "", false
	}
	if len(s.ready) == 0 {
		return "", false
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	return id, true
}

// Start marks id as running. Callers must have obtained id from Next.
func (s *Scheduler) Start(id string) error {
	if _, ok := s.running[id]; ok {
		return ErrAlreadyRunning
	}
	s.running[id] = struct{}{}
	return nil
}

// Complete marks id as finished, removing it from running and promoting
// any dependent whose remaining dependency count reaches zero into ready.
func (s *Scheduler) Complete(id string) error {
	if _, ok := s.running[id]; !ok {
		return ErrNotRunning
	}
	delete(s.running, id)

	promoted := false
	for _, dependent := range s.dag.Dependents(id) {
		remaining, ok := s.pending[dependent]
		if !ok {
			continue
		}
		remaining--
		if remaining == 0 {
			delete(s.pending, dependent)
			s.ready = append(s.ready, dependent)
			promoted = true
		} else {
			s.pending[dependent] = remaining
		}
	}
	if promoted {
		sort.Strings(s.ready)
	}
	return nil
}

// IsComplete reports whether every node has been dispatched and completed:
// ready, pending and running are all empty.
func (s *Scheduler) IsComplete() bool {
	return len(s.ready) == 0 && len(s.pending) == 0 && len(s.running) == 0
}

// Running returns the sorted ids of nodes currently running.
func (s *Scheduler) Running() []string {
	out := make([]string, 0, len(s.running))
	for id := range s.running {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Ready returns a copy of the current ready queue, in dispatch order.
func (s *Scheduler) Ready() []string {
	out := make([]string, len(s.ready))
	copy(out, s.ready)
	return out
}
