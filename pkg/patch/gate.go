package patch

import (
	"fmt"
	"strings"

	"github.com/staticpayload/oracle.omen/pkg/policy"
)

// GateKind is the outcome category of a gate evaluation.
type GateKind string

const (
	GatePassed   GateKind = "passed"
	GateFailed   GateKind = "failed"
	GateDeferred GateKind = "deferred"
)

// GateResult is the outcome of running a patch through a lifecycle gate.
type GateResult struct {
	Kind    GateKind
	Reason  string
	Details map[string]string
	Needs   []string
}

// Passed reports whether the gate allows the patch to advance.
func (g GateResult) Passed() bool { return g.Kind == GatePassed }

// PassedResult builds a GatePassed result.
func PassedResult() GateResult { return GateResult{Kind: GatePassed} }

// FailedResult builds a GateFailed result with reason.
func FailedResult(reason string) GateResult { return GateResult{Kind: GateFailed, Reason: reason} }

// TestResult is the outcome of running one TestRequirement.
type TestResult struct {
	Passed     bool
	Reason     string
	DurationMs uint64
}

// TestRunner executes a single test requirement against a patch.
type TestRunner interface {
	RunTest(p Patch, req TestRequirement) TestResult
}

// TestGate runs every TestRequirement on a patch and fails if any outcome
// doesn't match what was required.
type TestGate struct{}

// Evaluate runs patch.Tests through runner and aggregates the result.
func (TestGate) Evaluate(p Patch, runner TestRunner) GateResult {
	var failures []string
	details := make(map[string]string, len(p.Tests))

	for _, test := range p.Tests {
		result := runner.RunTest(p, test)
		details[test.Name] = fmt.Sprintf("passed=%v reason=%s", result.Passed, result.Reason)

		switch test.Expected {
		case OutcomePass:
			if !result.Passed {
				failures = append(failures, fmt.Sprintf("test %q failed: %s", test.Name, result.Reason))
			}
		case OutcomeFail:
			if result.Passed {
				failures = append(failures, fmt.Sprintf("test %q should have failed but passed", test.Name))
			}
		case OutcomeAny:
		}
	}

	if len(failures) == 0 {
		return PassedResult()
	}
	return GateResult{Kind: GateFailed, Reason: strings.Join(failures, "; "), Details: details}
}

// promptInjectionMarkers are substrings whose presence in a prompt patch's
// reasoning suggest an attempt to override the agent's own instructions.
var promptInjectionMarkers = []string{
	"ignore previous",
	"disregard above",
	"forget instructions",
	"new instructions:",
	"override:",
}

func containsInjection(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range promptInjectionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var dangerousContentMarkers = []string{"unsafe", "transmute", "raw pointer", "asm!", "rm -rf", "eval("}

func containsDangerousContent(data map[string]string) bool {
	for _, v := range data {
		for _, marker := range dangerousContentMarkers {
			if strings.Contains(v, marker) {
				return true
			}
		}
	}
	return false
}

// AuditGate checks a patch against the policy engine and a small set of
// content safety heuristics.
type AuditGate struct {
	Engine *policy.Engine
}

// Evaluate runs patch through the policy engine (as a RulePatch subject
// keyed by patch kind) and the prompt-injection / dangerous-content
// heuristics.
func (g AuditGate) Evaluate(p Patch, ctx policy.Context) GateResult {
	decision := g.Engine.Evaluate(policy.RulePatch, string(p.Kind), ctx)
	if !decision.Allowed {
		return FailedResult(decision.Reason)
	}

	if p.Kind == KindPrompt && containsInjection(p.Reasoning) {
		return FailedResult("potential prompt injection detected")
	}

	if containsDangerousContent(p.Data) {
		return FailedResult("dangerous content detected in patch data")
	}

	return PassedResult()
}

// ApprovalGate requires a valid Ed25519 signature from one of a fixed set
// of authorized signers.
type ApprovalGate struct {
	AuthorizedSigners []SignerID
}

// Evaluate checks that signer is authorized and sig verifies over message.
func (g ApprovalGate) Evaluate(message []byte, sig Signature, signer SignerID) GateResult {
	authorized := false
	for _, s := range g.AuthorizedSigners {
		if s.Equal(signer) {
			authorized = true
			break
		}
	}
	if !authorized {
		return FailedResult("signer not authorized")
	}
	if !Verify(signer, message, sig) {
		return FailedResult("invalid signature")
	}
	return PassedResult()
}
