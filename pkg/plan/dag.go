package plan

import (
	"errors"
	"fmt"
	"sort"
)

// Node is a compiled DAG node: a PlanStep plus its node-local policy,
// stripped of the raw dependency-id list (edges live on the DAG itself).
type Node struct {
	ID            string
	StepType      StepType
	Capabilities  []string
	FailurePolicy FailurePolicy
	RetryPolicy   RetryPolicy
	TimeoutPolicy TimeoutPolicy
}

// ErrDuplicateNode is returned when two steps declare the same id.
var ErrDuplicateNode = errors.New("plan: duplicate node id")

// ErrNodeNotFound is returned when an edge references an id with no node.
var ErrNodeNotFound = errors.New("plan: node not found")

// ErrInvalidTimeout is returned when a step's timeout_ms is not positive.
var ErrInvalidTimeout = errors.New("plan: timeout_ms must be > 0")

// CycleError is returned when adding an edge would close a cycle. The DAG
// is left unmodified.
type CycleError struct {
	From string
	To   string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("plan: edge %s -> %s would create a cycle", e.From, e.To)
}

// DAG is a compiled, validated directed acyclic graph of plan steps.
type DAG struct {
	Name         string
	nodes        map[string]Node
	order        []string // insertion order, for deterministic iteration
	edges        map[string]map[string]struct{}
	reverseEdges map[string]map[string]struct{}
}

// NewDAG creates an empty, named DAG.
func NewDAG(name string) *DAG {
	return &DAG{
		Name:         name,
		nodes:        make(map[string]Node),
		edges:        make(map[string]map[string]struct{}),
		reverseEdges: make(map[string]map[string]struct{}),
	}
}

// AddNode inserts a node, rejecting duplicate ids.
func (d *DAG) AddNode(n Node) error {
	if _, exists := d.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	d.nodes[n.ID] = n
	d.order = append(d.order, n.ID)
	d.edges[n.ID] = make(map[string]struct{})
	d.reverseEdges[n.ID] = make(map[string]struct{})
	return nil
}

// AddEdge records that `to` depends on `from` (from must complete before
// to). Rejects unknown endpoints and rejects any edge that would close a
// cycle, leaving the DAG unmodified on failure.
func (d *DAG) AddEdge(from, to string) error {
	if _, ok := d.nodes[from]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if _, ok := d.nodes[to]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	if d.hasPath(to, from) {
		return &CycleError{From: from, To: to}
	}
	d.edges[from][to] = struct{}{}
	d.reverseEdges[to][from] = struct{}{}
	return nil
}

// hasPath reports whether a path exists from start to end, following
// dependency edges (from -> to means "to depends on from").
func (d *DAG) hasPath(start, end string) bool {
	if start == end {
		return true
	}
	visited := make(map[string]struct{})
	var walk func(node string) bool
	walk = func(node string) bool {
		if _, seen := visited[node]; seen {
			return false
		}
		visited[node] = struct{}{}
		for next := range d.edges[node] {
			if next == end {
				return true
			}
			if walk(next) {
				return true
			}
		}
		return false
	}
	return walk(start)
}

// Node returns the node with the given id.
func (d *DAG) Node(id string) (Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the DAG.
func (d *DAG) Len() int { return len(d.nodes) }

// NodeIDs returns the sorted ids of every node in the DAG.
func (d *DAG) NodeIDs() []string {
	out := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Dependencies returns the sorted ids that id directly depends on.
func (d *DAG) Dependencies(id string) []string {
	return sortedKeys(d.reverseEdges[id])
}

// Dependents returns the sorted ids that directly depend on id.
func (d *DAG) Dependents(id string) []string {
	return sortedKeys(d.edges[id])
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ErrCycle is the sentinel wrapped by TopologicalOrder when the graph
// is not acyclic (should not occur if every edge went through AddEdge,
// but is checked independently as a structural invariant).
var ErrCycle = errors.New("plan: cycle detected")

// TopologicalOrder returns a topological ordering of all node ids using
// Kahn's algorithm, breaking ties lexicographically by id so that an
// identical DAG always yields an identical order.
func (d *DAG) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for id := range d.nodes {
		inDegree[id] = 0
	}
	for _, deps := range d.edges {
		for to := range deps {
			inDegree[to]++
		}
	}

	ready := make([]string, 0)
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	result := make([]string, 0, len(d.nodes))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		result = append(result, next)

		dependents := sortedKeys(d.edges[next])
		var newlyReady []string
		for _, dep := range dependents {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				newlyReady = append(newlyReady, dep)
			}
		}
		ready = append(ready, newlyReady...)
		sort.Strings(ready)
	}

	if len(result) != len(d.nodes) {
		return nil, ErrCycle
	}
	return result, nil
}

// Compile validates a Plan and produces its DAG: unique ids, deps exist,
// timeout_ms > 0, nodes added, edges added dep -> step, then confirms
// acyclicity via TopologicalOrder.
func Compile(p Plan) (*DAG, error) {
	dag := NewDAG(p.Name)

	seen := make(map[string]struct{}, len(p.Steps))
	for _, step := range p.Steps {
		if _, dup := seen[step.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, step.ID)
		}
		seen[step.ID] = struct{}{}
	}

	for _, step := range p.Steps {
		for _, dep := range step.Deps {
			if _, ok := seen[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on undeclared step %s", ErrNodeNotFound, step.ID, dep)
			}
		}
		if step.TimeoutPolicy.TimeoutMs == 0 {
			return nil, fmt.Errorf("%w: step %s", ErrInvalidTimeout, step.ID)
		}
	}

	for _, step := range p.Steps {
		if err := dag.AddNode(Node{
			ID:            step.ID,
			StepType:      step.StepType,
			Capabilities:  step.Capabilities,
			FailurePolicy: step.FailurePolicy,
			RetryPolicy:   step.RetryPolicy,
			TimeoutPolicy: step.TimeoutPolicy,
		}); err != nil {
			return nil, err
		}
	}

	for _, step := range p.Steps {
		for _, dep := range step.Deps {
			if err := dag.AddEdge(dep, step.ID); err != nil {
				return nil, err
			}
		}
	}

	if _, err := dag.TopologicalOrder(); err != nil {
		return nil, err
	}

	return dag, nil
}
