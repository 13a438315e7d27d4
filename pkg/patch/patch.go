// Package patch implements the self-modification patch lifecycle: propose,
// test, audit, approve, apply, and roll back, each transition gated and
// every applied patch hashed for the event log.
package patch

import (
	"fmt"

	"github.com/staticpayload/oracle.omen/pkg/hashing"
)

// ID uniquely names a patch proposal within a run.
type ID struct {
	RunID    uint64
	Sequence uint64
}

// String renders the id as "run:sequence".
func (id ID) String() string { return fmt.Sprintf("%d:%d", id.RunID, id.Sequence) }

// Kind classifies what a patch modifies.
type Kind string

const (
	KindPrompt       Kind = "prompt"
	KindPolicy       Kind = "policy"
	KindRouting      Kind = "routing"
	KindConfig       Kind = "config"
	KindTools        Kind = "tools"
	KindMemorySchema Kind = "memory_schema"
	KindPlanning     Kind = "planning"
	KindCustom       Kind = "custom"
)

// TargetKind classifies what a patch's Target names.
type TargetKind string

const (
	TargetSystemPrompt TargetKind = "system_prompt"
	TargetPolicy       TargetKind = "policy"
	TargetRoute        TargetKind = "route"
	TargetConfig       TargetKind = "config"
	TargetTool         TargetKind = "tool"
	TargetMemorySchema TargetKind = "memory_schema"
	TargetCustom       TargetKind = "custom"
)

// Target names the specific component a patch modifies.
type Target struct {
	Kind TargetKind
	Name string // empty for TargetSystemPrompt
}

// TestType classifies a TestRequirement.
type TestType string

const (
	TestUnit        TestType = "unit"
	TestIntegration TestType = "integration"
	TestProperty    TestType = "property"
	TestDeterminism TestType = "determinism"
	TestReplay      TestType = "replay"
	TestCustom      TestType = "custom"
)

// TestOutcome is what a TestRequirement expects of a test run.
type TestOutcome string

const (
	OutcomePass TestOutcome = "pass"
	OutcomeFail TestOutcome = "fail"
	OutcomeAny  TestOutcome = "any"
)

// TestRequirement names a test the test gate must run before a patch can
// progress past Proposed.
type TestRequirement struct {
	Name     string
	TestType TestType
	Expected TestOutcome
}

// Patch is a proposed self-modification.
type Patch struct {
	ID        ID
	Kind      Kind
	Target    Target
	Data      map[string]string
	Reasoning string
	Tests     []TestRequirement
	CreatedAt uint64
	CreatedBy uint64
}

// New creates a Patch with empty data and tests.
func New(id ID, kind Kind, target Target, reasoning string) Patch {
	return Patch{ID: id, Kind: kind, Target: target, Data: map[string]string{}, Reasoning: reasoning}
}

// WithData sets a data field and returns p for chaining.
func (p Patch) WithData(key, value string) Patch {
	p.Data[key] = value
	return p
}

// WithTest appends a test requirement and returns p for chaining.
func (p Patch) WithTest(t TestRequirement) Patch {
	p.Tests = append(p.Tests, t)
	return p
}

// canonical is the hashable projection of a Patch: map keys sort
// deterministically under pkg/hashing.Canonical regardless of Go's
// randomized map iteration order.
func (p Patch) canonical() map[string]interface{} {
	data := make(map[string]interface{}, len(p.Data))
	for k, v := range p.Data {
		data[k] = v
	}
	tests := make([]interface{}, len(p.Tests))
	for i, t := range p.Tests {
		tests[i] = map[string]interface{}{
			"name":     t.Name,
			"type":     string(t.TestType),
			"expected": string(t.Expected),
		}
	}
	return map[string]interface{}{
		"id":         p.ID.String(),
		"kind":       string(p.Kind),
		"target_kind": string(p.Target.Kind),
		"target_name": p.Target.Name,
		"data":       data,
		"reasoning":  p.Reasoning,
		"tests":      tests,
		"created_at": p.CreatedAt,
		"created_by": p.CreatedBy,
	}
}

// Hash computes the patch's content hash.
func (p Patch) Hash() (hashing.Hash, error) {
	return hashing.HashCanonical(p.canonical())
}
