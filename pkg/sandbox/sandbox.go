// Package sandbox provides a deny-by-default WebAssembly execution
// environment: no filesystem, no network, no ambient authority. Every
// import a module can call is a capability-gated host function; every
// resource bound (fuel, memory, wall-clock time, output size) is enforced
// and terminates execution with a specific, typed error.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/staticpayload/oracle.omen/pkg/capability"
)

// Kind enumerates the C10 failure taxonomy.
type Kind string

const (
	KindCompilationFailed   Kind = "compilation_failed"
	KindInstantiationFailed Kind = "instantiation_failed"
	KindExecutionFailed     Kind = "execution_failed"
	KindMissingExport       Kind = "missing_export"
	KindMissingMemory       Kind = "missing_memory"
	KindMemoryAccessFailed  Kind = "memory_access_failed"
	KindFuelExhausted       Kind = "fuel_exhausted"
	KindMemoryLimitExceeded Kind = "memory_limit_exceeded"
	KindTimeout             Kind = "timeout"
	KindOutputTooLarge      Kind = "output_too_large"
)

// Error is the typed failure a sandbox execution can terminate with.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("sandbox: %s: %s", e.Kind, e.Message) }

// ResourceBounds limits a single sandbox execution.
type ResourceBounds struct {
	MaxFuel        uint64
	MaxMemoryPages uint32
	TimeoutMs      uint64
	MaxOutputBytes uint64
}

// DefaultBounds mirrors the original runtime's ResourceLimits::default():
// 1M fuel, 16 pages (1MB), 5s timeout, 1MB output.
func DefaultBounds() ResourceBounds {
	return ResourceBounds{MaxFuel: 1_000_000, MaxMemoryPages: 16, TimeoutMs: 5000, MaxOutputBytes: 1024 * 1024}
}

// MinimalBounds mirrors ResourceLimits::minimal().
func MinimalBounds() ResourceBounds {
	return ResourceBounds{MaxFuel: 10_000, MaxMemoryPages: 1, TimeoutMs: 100, MaxOutputBytes: 1024}
}

// GenerousBounds mirrors ResourceLimits::generous().
func GenerousBounds() ResourceBounds {
	return ResourceBounds{MaxFuel: 10_000_000, MaxMemoryPages: 64, TimeoutMs: 30_000, MaxOutputBytes: 10 * 1024 * 1024}
}

// FuelCosts prices the operations this sandbox can actually observe:
// wazero has no native instruction-level fuel meter, so fuel is charged
// per host-call and per page of memory growth rather than per opcode —
// an approximation of the original's per-opcode FuelCosts model, not a
// precise instruction counter.
type FuelCosts struct {
	BaseOpCost   uint64
	MemoryOpCost uint64
	HostCallCost uint64
}

// StandardFuelCosts mirrors FuelCosts::standard().
func StandardFuelCosts() FuelCosts { return FuelCosts{BaseOpCost: 1, MemoryOpCost: 10, HostCallCost: 100} }

// ConservativeFuelCosts mirrors FuelCosts::conservative().
func ConservativeFuelCosts() FuelCosts {
	return FuelCosts{BaseOpCost: 2, MemoryOpCost: 20, HostCallCost: 200}
}

// Result is the outcome of a single Execute call.
type Result struct {
	Output          []byte
	FuelConsumed    uint64
	MemoryUsedPages uint32
	Success         bool
	Err             *Error
}

// Sandbox compiles and runs WASM modules under capability-gated host
// imports and enforced resource bounds.
type Sandbox struct {
	fuelCosts FuelCosts
	caps      *capability.Checker
}

// New creates a Sandbox. caps gates the host imports available to a
// module (only "log" currently); a nil caps grants nothing.
func New(fuelCosts FuelCosts, caps *capability.Checker) *Sandbox {
	return &Sandbox{fuelCosts: fuelCosts, caps: caps}
}

// requiredExports are the functions a module must expose to be runnable:
// alloc(size)->ptr, run(ptr,len)->result_ptr, output_size(result_ptr)->len.
var requiredExports = []string{"alloc", "run", "output_size"}

// Execute compiles moduleBytes, instantiates it with the whitelisted host
// imports, writes input into its linear memory via alloc, invokes run, and
// reads the result back out via output_size. Exceeding any bound in
// bounds terminates with that bound's specific error and no output.
func (s *Sandbox) Execute(ctx context.Context, moduleBytes, input []byte, bounds ResourceBounds) Result {
	rConfig := wazero.NewRuntimeConfig()
	if bounds.MaxMemoryPages > 0 {
		rConfig = rConfig.WithMemoryLimitPages(bounds.MaxMemoryPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, rConfig)
	defer func() { _ = runtime.Close(ctx) }()

	var hostCalls uint64
	hostLog := func(ctx context.Context, mod api.Module, ptr, length uint32) {
		hostCalls++
		if s.caps == nil || !s.caps.Check("log").Granted {
			panic(&Error{Kind: KindExecutionFailed, Message: "log capability not granted"})
		}
	}

	_, err := runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(hostLog).Export("log").
		Instantiate(ctx)
	if err != nil {
		return Result{Err: &Error{Kind: KindInstantiationFailed, Message: err.Error()}}
	}

	execCtx := ctx
	if bounds.TimeoutMs > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(bounds.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	compiled, err := runtime.CompileModule(execCtx, moduleBytes)
	if err != nil {
		return Result{Err: &Error{Kind: KindCompilationFailed, Message: err.Error()}}
	}
	defer func() { _ = compiled.Close(execCtx) }()

	for _, name := range requiredExports {
		if findExport(compiled, name) == nil {
			return Result{Err: &Error{Kind: KindMissingExport, Message: name}}
		}
	}

	modConfig := wazero.NewModuleConfig().WithName("sandbox")

	result, runErr := runWithRecover(func() (Result, error) {
		mod, err := runtime.InstantiateModule(execCtx, compiled, modConfig)
		if err != nil {
			if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
				return Result{}, &Error{Kind: KindTimeout, Message: fmt.Sprintf("exceeded %dms", bounds.TimeoutMs)}
			}
			return Result{}, &Error{Kind: KindInstantiationFailed, Message: err.Error()}
		}
		defer func() { _ = mod.Close(execCtx) }()

		mem := mod.Memory()
		if mem == nil {
			return Result{}, &Error{Kind: KindMissingMemory, Message: "module does not export memory"}
		}
		initialPages := mem.Size() / 65536

		alloc := mod.ExportedFunction("alloc")
		run := mod.ExportedFunction("run")
		outputSize := mod.ExportedFunction("output_size")

		allocRes, err := alloc.Call(execCtx, uint64(len(input)))
		if err != nil {
			return Result{}, classifyCallError(execCtx, err, bounds)
		}
		ptr := uint32(allocRes[0])

		if !mem.Write(ptr, input) {
			return Result{}, &Error{Kind: KindMemoryAccessFailed, Message: "failed to write input into module memory"}
		}

		runRes, err := run.Call(execCtx, uint64(ptr), uint64(len(input)))
		if err != nil {
			return Result{}, classifyCallError(execCtx, err, bounds)
		}
		resultPtr := uint32(runRes[0])

		sizeRes, err := outputSize.Call(execCtx, uint64(resultPtr))
		if err != nil {
			return Result{}, classifyCallError(execCtx, err, bounds)
		}
		length := uint32(sizeRes[0])

		if uint64(length) > bounds.MaxOutputBytes {
			return Result{}, &Error{Kind: KindOutputTooLarge, Message: fmt.Sprintf("output %d bytes exceeds limit %d", length, bounds.MaxOutputBytes)}
		}

		output, ok := mem.Read(resultPtr, length)
		if !ok {
			return Result{}, &Error{Kind: KindMemoryAccessFailed, Message: "failed to read output from module memory"}
		}
		outCopy := make([]byte, len(output))
		copy(outCopy, output)

		finalPages := mem.Size() / 65536
		grown := uint32(0)
		if finalPages > initialPages {
			grown = finalPages - initialPages
		}
		fuelConsumed := s.fuelCosts.BaseOpCost + hostCalls*s.fuelCosts.HostCallCost + uint64(grown)*s.fuelCosts.MemoryOpCost

		if fuelConsumed > bounds.MaxFuel {
			return Result{}, &Error{Kind: KindFuelExhausted, Message: fmt.Sprintf("consumed %d fuel, limit %d", fuelConsumed, bounds.MaxFuel)}
		}

		return Result{
			Output:          outCopy,
			FuelConsumed:    fuelConsumed,
			MemoryUsedPages: finalPages,
			Success:         true,
		}, nil
	})

	if runErr != nil {
		var sandboxErr *Error
		if errors.As(runErr, &sandboxErr) {
			return Result{Err: sandboxErr}
		}
		return Result{Err: &Error{Kind: KindExecutionFailed, Message: runErr.Error()}}
	}
	return result
}

func classifyCallError(execCtx context.Context, err error, bounds ResourceBounds) error {
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: fmt.Sprintf("exceeded %dms", bounds.TimeoutMs)}
	}
	if isMemoryLimitError(err) {
		return &Error{Kind: KindMemoryLimitExceeded, Message: err.Error()}
	}
	return &Error{Kind: KindExecutionFailed, Message: err.Error()}
}

func isMemoryLimitError(err error) bool {
	msg := err.Error()
	return bytes.Contains([]byte(msg), []byte("memory")) &&
		(bytes.Contains([]byte(msg), []byte("limit")) || bytes.Contains([]byte(msg), []byte("grow")))
}

func findExport(compiled wazero.CompiledModule, name string) interface{} {
	exports := compiled.ExportedFunctions()
	if _, ok := exports[name]; ok {
		return exports[name]
	}
	return nil
}

// runWithRecover converts a panic raised by a host function (e.g. a denied
// capability) back into a normal error, so Execute never panics on
// well-formed input per the ambient error-taxonomy discipline.
func runWithRecover(fn func() (Result, error)) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if sandboxErr, ok := r.(*Error); ok {
				err = sandboxErr
				return
			}
			err = fmt.Errorf("sandbox: panic during execution: %v", r)
		}
	}()
	return fn()
}
