// Package observability provides instrumentation helpers specific to the
// run/event/tool/patch/capability vocabulary of this module.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Semantic convention attributes for run, tool, patch, capability, and
// replay events.
var (
	// Run attributes
	AttrRunID       = attribute.Key("omen.run.id")
	AttrRunState    = attribute.Key("omen.run.state")
	AttrLogicalTime = attribute.Key("omen.run.logical_time")
	AttrRunAction   = attribute.Key("omen.run.action")

	// Tool call attributes
	AttrToolName     = attribute.Key("omen.tool.name")
	AttrToolCallID   = attribute.Key("omen.tool.call_id")
	AttrToolOutcome  = attribute.Key("omen.tool.outcome")
	AttrToolLatency  = attribute.Key("omen.tool.latency_ms")

	// Patch lifecycle attributes
	AttrPatchID     = attribute.Key("omen.patch.id")
	AttrPatchField  = attribute.Key("omen.patch.field")
	AttrPatchStatus = attribute.Key("omen.patch.status")

	// Policy engine attributes
	AttrPolicyDomain   = attribute.Key("omen.policy.domain")
	AttrPolicyAction   = attribute.Key("omen.policy.action")
	AttrPolicyDecision = attribute.Key("omen.policy.decision")
	AttrPolicyLatency  = attribute.Key("omen.policy.latency_ms")

	// Capability attributes
	AttrCapability      = attribute.Key("omen.capability.id")
	AttrCapabilityScope = attribute.Key("omen.capability.scope")
	AttrCapabilityGrant = attribute.Key("omen.capability.grant_id")
	AttrCapabilityOK    = attribute.Key("omen.capability.granted")

	// Hash/canonicalization attributes
	AttrHashAlgorithm = attribute.Key("omen.hash.algorithm")
	AttrHashOperation = attribute.Key("omen.hash.operation")
	AttrHashDigest    = attribute.Key("omen.hash.digest")

	// Replay attributes
	AttrReplayRunID    = attribute.Key("omen.replay.run_id")
	AttrReplayDiverged = attribute.Key("omen.replay.diverged")
	AttrReplaySeq      = attribute.Key("omen.replay.sequence")
)

// RunOperation creates attributes for run lifecycle transitions.
func RunOperation(runID, state, action string, logicalTime int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRunID.String(runID),
		AttrRunState.String(state),
		AttrRunAction.String(action),
		AttrLogicalTime.Int64(logicalTime),
	}
}

// ToolCallOperation creates attributes for a dispatched tool call.
func ToolCallOperation(toolName, callID, outcome string, latencyMs float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrToolName.String(toolName),
		AttrToolCallID.String(callID),
		AttrToolOutcome.String(outcome),
		AttrToolLatency.Float64(latencyMs),
	}
}

// PatchOperation creates attributes for a patch proposal's lifecycle event.
func PatchOperation(runID, patchID, field, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRunID.String(runID),
		AttrPatchID.String(patchID),
		AttrPatchField.String(field),
		AttrPatchStatus.String(status),
	}
}

// PolicyOperation creates attributes for a policy engine evaluation.
func PolicyOperation(domain, action, decision string, latencyMs float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrPolicyDomain.String(domain),
		AttrPolicyAction.String(action),
		AttrPolicyDecision.String(decision),
		AttrPolicyLatency.Float64(latencyMs),
	}
}

// CapabilityOperation creates attributes for a capability check.
func CapabilityOperation(capability, scope, grantID string, granted bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCapability.String(capability),
		AttrCapabilityScope.String(scope),
		AttrCapabilityGrant.String(grantID),
		AttrCapabilityOK.Bool(granted),
	}
}

// HashOperation creates attributes for a hashing/canonicalization operation.
func HashOperation(algorithm, operation, digest string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrHashAlgorithm.String(algorithm),
		AttrHashOperation.String(operation),
		AttrHashDigest.String(digest),
	}
}

// ReplayOperation creates attributes for a replay step, flagging divergence
// against the original run's recorded state hash.
func ReplayOperation(runID string, sequence uint64, diverged bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrReplayRunID.String(runID),
		AttrReplaySeq.Int64(int64(sequence)),
		AttrReplayDiverged.Bool(diverged),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records an error on the current span, if any.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
