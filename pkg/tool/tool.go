// Package tool implements the tool declaration/registration/execution
// contract: every tool response is wrapped into a normalised, hashed
// envelope regardless of the underlying implementation.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/staticpayload/oracle.omen/pkg/hashing"
)

// SideEffect classifies whether a tool may mutate external state.
type SideEffect string

const (
	SideEffectPure   SideEffect = "pure"
	SideEffectImpure SideEffect = "impure"
)

// Determinism classifies a tool's repeatability.
type Determinism string

const (
	DeterminismDeterministic         Determinism = "deterministic"
	DeterminismBoundedNonDeterminism Determinism = "bounded_non_determinism"
	DeterminismNonDeterministic      Determinism = "non_deterministic"
)

// ResourceBounds limits a tool invocation.
type ResourceBounds struct {
	TimeoutMs      uint64
	MaxMemoryBytes *uint64
	MaxFuel        *uint64
}

// ID names a tool by name and semantic version.
type ID struct {
	Name    string
	Version *semver.Version
}

// String renders the id as "name@version", the ToolRegistry's key shape.
func (id ID) String() string {
	v := "0.0.0"
	if id.Version != nil {
		v = id.Version.String()
	}
	return fmt.Sprintf("%s@%s", id.Name, v)
}

// Declaration is everything known about a tool independent of any
// particular invocation.
type Declaration struct {
	ID                   ID
	RequiredCapabilities []string
	SideEffects          SideEffect
	Determinism          Determinism
	ResourceBounds       ResourceBounds
	InputSchema          *jsonschema.Schema
	OutputSchema         *jsonschema.Schema
}

// Metadata is passed to every tool invocation.
type Metadata struct {
	LogicalTime uint64
	RunID       uint64
}

// Tool is an executable tool implementation.
type Tool interface {
	Declaration() Declaration
	Execute(ctx context.Context, input []byte, meta Metadata) ([]byte, error)
}

// Kind enumerates the C9 failure taxonomy.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindDenied              Kind = "denied"
	KindTimeout             Kind = "timeout"
	KindExecutionFailed     Kind = "execution_failed"
	KindInvalidInput        Kind = "invalid_input"
	KindSerializationFailed Kind = "serialization_failed"
	KindResourceExceeded    Kind = "resource_exceeded"
	KindOther               Kind = "other"
)

// Error is the typed failure returned by the registry and runtime.
type Error struct {
	Kind       Kind
	Tool       string
	Capability string
	TimeoutMs  uint64
	Message    string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindDenied:
		return fmt.Sprintf("tool: denied: capability %s: %s", e.Capability, e.Message)
	case KindTimeout:
		return fmt.Sprintf("tool: %s: timed out after %dms", e.Tool, e.TimeoutMs)
	default:
		return fmt.Sprintf("tool: %s: %s: %s", e.Tool, e.Kind, e.Message)
	}
}

// Source names where a normalized Response's data actually came from.
type Source string

const (
	SourceTool  Source = "tool"
	SourceCache Source = "cache"
	SourceMock  Source = "mock"
	SourceError Source = "error"
)

// ResponseMetadata describes the provenance of a Response.
type ResponseMetadata struct {
	Source     Source
	Normalized bool
	DurationMs int64
}

// Response is the normalized envelope of a successful tool invocation.
// Invoke builds one only when the tool succeeds, always with Source
// SourceTool; a failed invocation yields a zero Response and a *Error.
type Response struct {
	Data         []byte
	ResponseHash hashing.Hash
	Metadata     ResponseMetadata
}

// Registry maps "name@version" to a registered Tool, refusing duplicates.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry, failing if its id is already present.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := t.Declaration().ID.String()
	if _, exists := r.tools[key]; exists {
		return &Error{Kind: KindOther, Tool: key, Message: "tool already registered"}
	}
	r.tools[key] = t
	return nil
}

// Get looks up a tool by "name@version".
func (r *Registry) Get(key string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[key]
	return t, ok
}

// List returns the sorted keys of every registered tool.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for k := range r.tools {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Invoke executes the named tool, normalizing a successful output into a
// hashed Response envelope; a failure (unknown tool, timeout, execution
// error) returns a zero Response and a *Error. Retry is the scheduler's concern, not
// the runtime's: Invoke makes exactly one attempt.
func Invoke(ctx context.Context, r *Registry, key string, input []byte, meta Metadata) (Response, error) {
	t, ok := r.Get(key)
	if !ok {
		return Response{}, &Error{Kind: KindNotFound, Tool: key, Message: "tool not registered"}
	}

	decl := t.Declaration()
	timeout := time.Duration(decl.ResourceBounds.TimeoutMs) * time.Millisecond
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := t.Execute(callCtx, input, meta)
	duration := time.Since(start)

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return Response{}, &Error{Kind: KindTimeout, Tool: key, TimeoutMs: decl.ResourceBounds.TimeoutMs}
		}
		return Response{}, &Error{Kind: KindExecutionFailed, Tool: key, Message: err.Error()}
	}

	// response_hash = hash(canonical(data)): decode the tool's raw JSON
	// output and re-encode it through the canonical form (sorted map keys,
	// no insignificant whitespace) before hashing, so two outputs that
	// differ only in key order or whitespace hash equal. This is the unit
	// of replay equality — hashing the raw bytes directly would make
	// replay comparisons sensitive to a tool's own JSON formatting.
	var decoded interface{}
	if err := json.Unmarshal(output, &decoded); err != nil {
		return Response{}, &Error{Kind: KindSerializationFailed, Tool: key, Message: err.Error()}
	}
	hash, err := hashing.HashCanonical(decoded)
	if err != nil {
		return Response{}, &Error{Kind: KindSerializationFailed, Tool: key, Message: err.Error()}
	}
	return Response{
		Data:         output,
		ResponseHash: hash,
		Metadata: ResponseMetadata{
			Source:     SourceTool,
			Normalized: true,
			DurationMs: duration.Milliseconds(),
		},
	}, nil
}
