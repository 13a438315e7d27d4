// Package plan implements the planning DAG: PlanStep declarations compile
// into a validated, acyclic DAG with a deterministic topological order.
package plan

// StepType names the kind of work a PlanStep performs. Compile copies a
// step's StepType onto its Node unchanged, so Sequential and Parallel steps
// keep their own Kind and their member step ids; neither Compile nor the
// scheduler expands a group's members into separate nodes.
type StepType struct {
	Kind StepKind `json:"kind"`

	// Tool
	ToolName    string `json:"tool_name,omitempty"`
	ToolVersion string `json:"tool_version,omitempty"`

	// Observation
	Source string `json:"source,omitempty"`

	// Decision
	Condition string `json:"condition,omitempty"`

	// Wait
	DurationMs uint64 `json:"duration_ms,omitempty"`

	// Custom, Sequential, Parallel
	TypeName string                 `json:"type_name,omitempty"`
	Config   map[string]interface{} `json:"config,omitempty"`
	Members  []string               `json:"members,omitempty"`
}

// StepKind enumerates the variants of StepType.
type StepKind string

const (
	StepTool        StepKind = "tool"
	StepObservation StepKind = "observation"
	StepDecision    StepKind = "decision"
	StepWait        StepKind = "wait"
	StepCustom      StepKind = "custom"
	StepSequential  StepKind = "sequential"
	StepParallel    StepKind = "parallel"
)

// FailurePolicy names how a step's failure is handled.
type FailurePolicy string

const (
	FailureStop    FailurePolicy = "stop"
	FailureContinue FailurePolicy = "continue"
	FailureRetry   FailurePolicy = "retry"
)

// RetryPolicy bounds automatic retries for a step.
type RetryPolicy struct {
	MaxRetries uint32 `json:"max_retries"`
}

// TimeoutPolicy bounds how long a step may run.
type TimeoutPolicy struct {
	TimeoutMs uint64 `json:"timeout_ms"`
}

// PlanStep is a single declared unit of work within a Plan.
type PlanStep struct {
	ID            string        `json:"id"`
	StepType      StepType      `json:"step_type"`
	Deps          []string      `json:"deps"`
	Capabilities  []string      `json:"capabilities"`
	FailurePolicy FailurePolicy `json:"failure_policy"`
	RetryPolicy   RetryPolicy   `json:"retry_policy"`
	TimeoutPolicy TimeoutPolicy `json:"timeout_policy"`
}

// Plan is an ordered list of PlanSteps, declared but not yet compiled into
// a DAG.
type Plan struct {
	Name  string     `json:"name"`
	Steps []PlanStep `json:"steps"`
}
