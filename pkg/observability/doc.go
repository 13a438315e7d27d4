// Package observability provides OpenTelemetry tracing and metrics for the
// agent run controller, plus SLI/SLO tracking and an in-memory audit
// timeline.
//
// # Tracing and metrics
//
// Initialize a provider at process startup:
//
//	p, err := observability.New(ctx, observability.DefaultConfig())
//	defer p.Shutdown(ctx)
//
// Track an operation from start to finish:
//
//	ctx, finish := p.TrackOperation(ctx, "controller.step", observability.RunOperation(runID, "RUNNING", "Step", logicalTime)...)
//	defer finish(err)
//
// # SLIs and SLOs
//
//	tracker := observability.NewSLOTracker()
//	tracker.SetTarget(&observability.SLOTarget{Operation: "tool_call", SuccessRate: 0.99, WindowHours: 24})
//	tracker.Record(observability.SLOObservation{Operation: "tool_call", Latency: latency, Success: err == nil})
//
// # Audit timeline
//
//	timeline := observability.NewAuditTimeline()
//	timeline.Record(observability.TimelineEntry{EntryType: observability.EntryTypeToolCall, RunID: runID, Summary: "invoked fetch_url"})
package observability
