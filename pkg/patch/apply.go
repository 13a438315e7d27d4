package patch

import (
	"fmt"
	"sync"

	"github.com/staticpayload/oracle.omen/pkg/hashing"
	"github.com/staticpayload/oracle.omen/pkg/logtime"
	"github.com/staticpayload/oracle.omen/pkg/policy"
	"github.com/staticpayload/oracle.omen/pkg/state"
)

// ErrorKind classifies why a patch lifecycle operation failed.
type ErrorKind string

const (
	ErrKindNotFound           ErrorKind = "not_found"
	ErrKindTestFailed         ErrorKind = "test_failed"
	ErrKindAuditFailed        ErrorKind = "audit_failed"
	ErrKindNotApproved        ErrorKind = "not_approved"
	ErrKindApplicationFailed  ErrorKind = "application_failed"
	ErrKindRollbackFailed     ErrorKind = "rollback_failed"
)

// Error is the typed failure returned by Engine operations.
type Error struct {
	Kind    ErrorKind
	PatchID string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("patch: %s: %s: %s", e.PatchID, e.Kind, e.Message)
}

// ApplyResult records what Apply changed in state.
type ApplyResult struct {
	PatchID      string
	ChangesMade  []string
	RollbackData map[string]string
}

// RollbackResult records what Rollback restored.
type RollbackResult struct {
	PatchID    string
	RestoredTo hashing.Hash
}

// AppliedPatch is the durable record of a patch that reached StatusApplied.
type AppliedPatch struct {
	PatchID      string
	PatchHash    hashing.Hash
	AppliedAt    logtime.LogicalTime
	BeforeHash   hashing.Hash
	AfterHash    hashing.Hash
	RollbackData map[string]string
}

// Engine drives patches through the full propose/test/audit/approve/apply
// lifecycle against a Store.
type Engine struct {
	mu      sync.Mutex
	store   *Store
	applied map[string]AppliedPatch
	runID   uint64
}

// NewEngine creates an Engine over store.
func NewEngine(store *Store, runID uint64) *Engine {
	return &Engine{store: store, applied: make(map[string]AppliedPatch), runID: runID}
}

// Submit registers a new patch proposal.
func (e *Engine) Submit(p Patch) error {
	if err := e.store.Add(p); err != nil {
		return &Error{Kind: ErrKindApplicationFailed, PatchID: p.ID.String(), Message: err.Error()}
	}
	return nil
}

// RunTestGate evaluates the test gate for patchID and, if it passes,
// advances the patch to StatusTested.
func (e *Engine) RunTestGate(patchID string, runner TestRunner) (GateResult, error) {
	p, status, ok := e.store.Get(patchID)
	if !ok {
		return GateResult{}, &Error{Kind: ErrKindNotFound, PatchID: patchID, Message: "patch not found"}
	}
	result := TestGate{}.Evaluate(p, runner)
	if !result.Passed() {
		return result, nil
	}
	if !CanTransition(status.Kind, StatusTested) {
		return result, nil
	}
	if err := e.store.UpdateStatus(patchID, Status{Kind: StatusTested}); err != nil {
		return result, &Error{Kind: ErrKindApplicationFailed, PatchID: patchID, Message: err.Error()}
	}
	return result, nil
}

// RunAuditGate evaluates the audit gate for patchID and, if it passes,
// advances the patch to StatusAudited.
func (e *Engine) RunAuditGate(patchID string, gate AuditGate, ctx policy.Context) (GateResult, error) {
	p, status, ok := e.store.Get(patchID)
	if !ok {
		return GateResult{}, &Error{Kind: ErrKindNotFound, PatchID: patchID, Message: "patch not found"}
	}
	result := gate.Evaluate(p, ctx)
	if !result.Passed() {
		return result, nil
	}
	target := StatusKind(StatusAudited)
	if !CanTransition(status.Kind, target) {
		// Already past Audited (e.g. Tested -> Approved skipped it); leave
		// status untouched rather than rejecting a gate that legitimately
		// passed.
		return result, nil
	}
	if err := e.store.UpdateStatus(patchID, Status{Kind: StatusAudited}); err != nil {
		return result, &Error{Kind: ErrKindApplicationFailed, PatchID: patchID, Message: err.Error()}
	}
	return result, nil
}

// ApproveWith evaluates the approval gate for patchID and, if it passes,
// advances the patch to StatusApproved.
func (e *Engine) ApproveWith(patchID string, gate ApprovalGate, message []byte, sig Signature, signer SignerID) error {
	result := gate.Evaluate(message, sig, signer)
	if !result.Passed() {
		return &Error{Kind: ErrKindNotApproved, PatchID: patchID, Message: result.Reason}
	}
	_, status, ok := e.store.Get(patchID)
	if !ok {
		return &Error{Kind: ErrKindNotFound, PatchID: patchID, Message: "patch not found"}
	}
	target := StatusKind(StatusApproved)
	if !CanTransition(status.Kind, target) {
		return &Error{Kind: ErrKindNotApproved, PatchID: patchID, Message: "cannot approve from " + string(status.Kind)}
	}
	if err := e.store.UpdateStatus(patchID, Status{Kind: StatusApproved}); err != nil {
		return &Error{Kind: ErrKindApplicationFailed, PatchID: patchID, Message: err.Error()}
	}
	return nil
}

// Apply applies an approved (or tested) patch to state, recording its
// before/after hash for later rollback.
func (e *Engine) Apply(patchID string, s *state.AgentState) (ApplyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, status, ok := e.store.Get(patchID)
	if !ok {
		return ApplyResult{}, &Error{Kind: ErrKindNotFound, PatchID: patchID, Message: "patch not found"}
	}
	if status.Kind != StatusApproved && status.Kind != StatusTested {
		return ApplyResult{}, &Error{Kind: ErrKindNotApproved, PatchID: patchID, Message: "patch is " + string(status.Kind)}
	}

	beforeHash := s.Hash()
	result, err := applyToState(p, s)
	if err != nil {
		return ApplyResult{}, err
	}
	afterHash := s.Hash()

	patchHash, err := p.Hash()
	if err != nil {
		return ApplyResult{}, &Error{Kind: ErrKindApplicationFailed, PatchID: patchID, Message: err.Error()}
	}

	applied := AppliedPatch{
		PatchID:      patchID,
		PatchHash:    patchHash,
		AppliedAt:    logtime.LogicalTime{RunID: e.runID, Sequence: uint64(len(e.applied))},
		BeforeHash:   beforeHash,
		AfterHash:    afterHash,
		RollbackData: result.RollbackData,
	}

	if err := e.store.UpdateStatus(patchID, Status{Kind: StatusApplied}); err != nil {
		return ApplyResult{}, &Error{Kind: ErrKindApplicationFailed, PatchID: patchID, Message: err.Error()}
	}
	e.applied[patchID] = applied

	return result, nil
}

// Rollback restores the state domain "_rollback" to the patch's pre-apply
// hash and marks the patch RolledBack. It does not reconstruct the actual
// prior domain values: the rest of the system is expected to treat a
// "_rollback" write as a signal to re-derive state from the event log up to
// before_hash, per the structural-replay design (Open Question 1).
func (e *Engine) Rollback(patchID string, s *state.AgentState, reason string) (RollbackResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied, ok := e.applied[patchID]
	if !ok {
		return RollbackResult{}, &Error{Kind: ErrKindNotFound, PatchID: patchID, Message: "no applied record"}
	}

	if err := s.Set("_rollback", state.NewSingle(state.Value{Kind: state.KindHash, Hash: applied.BeforeHash})); err != nil {
		return RollbackResult{}, &Error{Kind: ErrKindRollbackFailed, PatchID: patchID, Message: err.Error()}
	}

	if err := e.store.UpdateStatus(patchID, RolledBack(reason)); err != nil {
		return RollbackResult{}, &Error{Kind: ErrKindRollbackFailed, PatchID: patchID, Message: err.Error()}
	}

	return RollbackResult{PatchID: patchID, RestoredTo: applied.BeforeHash}, nil
}

// applyToState dispatches a patch onto state by its target kind. Targets
// without a defined projection onto state fail closed rather than silently
// doing nothing.
func applyToState(p Patch, s *state.AgentState) (ApplyResult, error) {
	switch p.Target.Kind {
	case TargetSystemPrompt:
		value := p.Data["prompt"]
		if err := s.Set("system_prompt", state.NewSingle(state.Value{Kind: state.KindString, Str: value})); err != nil {
			return ApplyResult{}, &Error{Kind: ErrKindApplicationFailed, PatchID: p.ID.String(), Message: err.Error()}
		}
		return ApplyResult{PatchID: p.ID.String(), ChangesMade: []string{"system_prompt"}, RollbackData: map[string]string{}}, nil

	case TargetConfig:
		domain := "config." + p.Target.Name
		value, hasValue := p.Data["value"]
		if hasValue {
			if err := s.Set(domain, state.NewSingle(state.Value{Kind: state.KindString, Str: value})); err != nil {
				return ApplyResult{}, &Error{Kind: ErrKindApplicationFailed, PatchID: p.ID.String(), Message: err.Error()}
			}
		}
		return ApplyResult{PatchID: p.ID.String(), ChangesMade: []string{domain}, RollbackData: map[string]string{}}, nil

	case TargetPolicy:
		domain := "policy." + p.Target.Name
		value := p.Data["policy"]
		if err := s.Set(domain, state.NewSingle(state.Value{Kind: state.KindString, Str: value})); err != nil {
			return ApplyResult{}, &Error{Kind: ErrKindApplicationFailed, PatchID: p.ID.String(), Message: err.Error()}
		}
		return ApplyResult{PatchID: p.ID.String(), ChangesMade: []string{domain}, RollbackData: map[string]string{}}, nil

	default:
		return ApplyResult{}, &Error{Kind: ErrKindApplicationFailed, PatchID: p.ID.String(), Message: "target type not implemented: " + string(p.Target.Kind)}
	}
}
