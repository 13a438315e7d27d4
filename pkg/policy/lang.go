// Package policy implements the compiled policy condition tree and the
// evaluation engine: first matching Deny wins, else first matching Allow,
// else default deny.
package policy

// RuleKind names the class of subject a Rule governs.
type RuleKind string

const (
	RuleCapability RuleKind = "capability"
	RuleTool       RuleKind = "tool"
	RuleMemory     RuleKind = "memory"
	RulePatch      RuleKind = "patch"
	RuleResource   RuleKind = "resource"
	RuleCustom     RuleKind = "custom"
)

// CompareOp is a comparison operator usable within a Compare condition leaf.
type CompareOp string

const (
	OpEqual        CompareOp = "eq"
	OpNotEqual     CompareOp = "neq"
	OpGreater      CompareOp = "gt"
	OpGreaterEqual CompareOp = "gte"
	OpLess         CompareOp = "lt"
	OpLessEqual    CompareOp = "lte"
)

// Value is a typed literal usable on either side of a Compare condition.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Bool bool
}

// ValueKind enumerates the Value variants.
type ValueKind string

const (
	ValueString  ValueKind = "string"
	ValueInteger ValueKind = "integer"
	ValueBoolean ValueKind = "boolean"
)

// ConditionKind enumerates the variants of Condition.
type ConditionKind string

const (
	CondTrue          ConditionKind = "true"
	CondFalse         ConditionKind = "false"
	CondAnd           ConditionKind = "and"
	CondOr            ConditionKind = "or"
	CondNot           ConditionKind = "not"
	CondHasCapability ConditionKind = "has_capability"
	CondToolEquals    ConditionKind = "tool_equals"
	CondCompare       ConditionKind = "compare"
	CondCustom        ConditionKind = "custom"
)

// Condition is a boolean expression tree over leaves True, False,
// HasCapability, ToolEquals and Compare, closed under And, Or and Not.
// Custom leaves are backed by a CEL expression, evaluated against the same
// context as the other leaves.
type Condition struct {
	Kind ConditionKind

	Children []Condition // And, Or
	Inner     *Condition // Not

	Capability string // HasCapability
	Tool       string // ToolEquals

	Field string    // Compare
	Op    CompareOp // Compare
	Value Value     // Compare

	CELExpr string // Custom
}

// True builds a Condition that always holds.
func True() Condition { return Condition{Kind: CondTrue} }

// False builds a Condition that never holds.
func False() Condition { return Condition{Kind: CondFalse} }

// And builds a Condition that holds iff every child holds.
func And(children ...Condition) Condition { return Condition{Kind: CondAnd, Children: children} }

// Or builds a Condition that holds iff any child holds.
func Or(children ...Condition) Condition { return Condition{Kind: CondOr, Children: children} }

// Not builds a Condition that holds iff inner does not.
func Not(inner Condition) Condition { return Condition{Kind: CondNot, Inner: &inner} }

// HasCapability builds a Condition that holds iff the context's capability
// checker grants cap.
func HasCapability(cap string) Condition { return Condition{Kind: CondHasCapability, Capability: cap} }

// ToolEquals builds a Condition that holds iff the context's tool equals name.
func ToolEquals(name string) Condition { return Condition{Kind: CondToolEquals, Tool: name} }

// Compare builds a Condition comparing a state field against a literal.
func Compare(field string, op CompareOp, value Value) Condition {
	return Condition{Kind: CondCompare, Field: field, Op: op, Value: value}
}

// Custom builds a Condition backed by a CEL expression string.
func Custom(expr string) Condition { return Condition{Kind: CondCustom, CELExpr: expr} }

// Action is the effect a matching Rule has.
type ActionKind string

const (
	ActionAllow           ActionKind = "allow"
	ActionDeny            ActionKind = "deny"
	ActionAllowModified   ActionKind = "allow_modified"
	ActionRequireApproval ActionKind = "require_approval"
	ActionLog             ActionKind = "log"
)

// LogLevel names the severity of an ActionLog action.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Action is the fully-typed effect of a matching rule.
type Action struct {
	Kind ActionKind

	DenyReason string // Deny

	Modifications map[string]string // AllowModified

	Approver string // RequireApproval
	ApprovalReason string // RequireApproval

	Level LogLevel // Log
}

// Allow is the trivial allow action.
func Allow() Action { return Action{Kind: ActionAllow} }

// Deny builds a deny action carrying reason.
func Deny(reason string) Action { return Action{Kind: ActionDeny, DenyReason: reason} }

// CompiledRule is a single named rule within a Policy.
type CompiledRule struct {
	Name      string
	Kind      RuleKind
	Condition Condition
	Action    Action
}

// Policy is a compiled, named collection of rules.
type Policy struct {
	ID       string
	Rules    []CompiledRule
	Metadata map[string]string
}
