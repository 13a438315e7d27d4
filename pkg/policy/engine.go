package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/staticpayload/oracle.omen/pkg/capability"
)

// Context carries everything a Condition leaf may inspect.
type Context struct {
	Capabilities capability.Set
	Tool         string
	MemoryKey    string
	PatchType    string
	State        map[string]Value
}

// Decision is the outcome of evaluating a subject against a set of policies.
type Decision struct {
	Allowed      bool
	Action       Action
	MatchedRule  string
	MatchedPolicy string
	Reason       string
}

// Engine holds compiled policies and evaluates rules of a given kind
// against a Context.
type Engine struct {
	policies []Policy
	celEnv   *cel.Env
}

// NewEngine creates an empty Engine. A CEL environment is built eagerly so
// Custom conditions never pay compilation cost per-evaluation beyond
// cel.Env.Compile, mirroring the teacher's pkg/governance/policy_engine.go.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("capabilities", cel.ListType(cel.StringType)),
		cel.Variable("tool", cel.StringType),
		cel.Variable("memory_key", cel.StringType),
		cel.Variable("patch_type", cel.StringType),
		cel.Variable("state", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: building CEL environment: %w", err)
	}
	return &Engine{celEnv: env}, nil
}

// AddPolicy registers a compiled policy for evaluation.
func (e *Engine) AddPolicy(p Policy) {
	e.policies = append(e.policies, p)
}

// Evaluate evaluates every rule of the given kind across all registered
// policies against ctx, for the named subject (used only in the default
// deny reason). First matching Deny wins; else first matching Allow wins.
// With no matching rule the result is a default deny with reason
// "no policy allows: <subject>"; when rules match but none is a Deny or an
// Allow, the deny reason is "no allow rule for: <subject>".
func (e *Engine) Evaluate(kind RuleKind, subject string, ctx Context) Decision {
	type match struct {
		policyID string
		rule     CompiledRule
	}
	var matches []match

	for _, p := range e.policies {
		for _, rule := range p.Rules {
			if rule.Kind != kind {
				continue
			}
			ok, err := e.evaluateCondition(rule.Condition, ctx)
			if err != nil || !ok {
				continue
			}
			matches = append(matches, match{policyID: p.ID, rule: rule})
		}
	}

	if len(matches) == 0 {
		return Decision{Allowed: false, Action: Deny("no policy allows: " + subject), Reason: "no policy allows: " + subject}
	}

	for _, m := range matches {
		if m.rule.Action.Kind == ActionDeny {
			return Decision{
				Allowed:       false,
				Action:        m.rule.Action,
				MatchedRule:   m.rule.Name,
				MatchedPolicy: m.policyID,
				Reason:        m.rule.Action.DenyReason,
			}
		}
	}

	for _, m := range matches {
		if m.rule.Action.Kind == ActionAllow || m.rule.Action.Kind == ActionAllowModified {
			return Decision{
				Allowed:       true,
				Action:        m.rule.Action,
				MatchedRule:   m.rule.Name,
				MatchedPolicy: m.policyID,
				Reason:        fmt.Sprintf("allowed by policy %s rule %s", m.policyID, m.rule.Name),
			}
		}
	}

	reason := "no allow rule for: " + subject
	return Decision{Allowed: false, Action: Deny(reason), Reason: reason}
}

func (e *Engine) evaluateCondition(c Condition, ctx Context) (bool, error) {
	switch c.Kind {
	case CondTrue:
		return true, nil
	case CondFalse:
		return false, nil
	case CondAnd:
		for _, child := range c.Children {
			ok, err := e.evaluateCondition(child, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case CondOr:
		for _, child := range c.Children {
			ok, err := e.evaluateCondition(child, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case CondNot:
		if c.Inner == nil {
			return false, fmt.Errorf("policy: Not condition missing inner")
		}
		ok, err := e.evaluateCondition(*c.Inner, ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case CondHasCapability:
		checker := capability.NewChecker(ctx.Capabilities)
		want := capability.Capability(c.Capability)
		return checker.Check(want).Granted || ctx.Capabilities.HasPattern(want), nil
	case CondToolEquals:
		return ctx.Tool == c.Tool, nil
	case CondCompare:
		stateVal, ok := ctx.State[c.Field]
		if !ok {
			return false, nil
		}
		return compareValues(stateVal, c.Op, c.Value), nil
	case CondCustom:
		return e.evaluateCEL(c.CELExpr, ctx)
	default:
		return false, fmt.Errorf("policy: unknown condition kind %q", c.Kind)
	}
}

func (e *Engine) evaluateCEL(expr string, ctx Context) (bool, error) {
	ast, issues := e.celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("policy: compiling CEL expression: %w", issues.Err())
	}
	prg, err := e.celEnv.Program(ast)
	if err != nil {
		return false, fmt.Errorf("policy: building CEL program: %w", err)
	}

	caps := make([]string, 0, ctx.Capabilities.Len())
	for _, c := range ctx.Capabilities.Members() {
		caps = append(caps, string(c))
	}
	state := make(map[string]interface{}, len(ctx.State))
	for k, v := range ctx.State {
		state[k] = v.canonical()
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"capabilities": caps,
		"tool":         ctx.Tool,
		"memory_key":   ctx.MemoryKey,
		"patch_type":   ctx.PatchType,
		"state":        state,
	})
	if err != nil {
		return false, fmt.Errorf("policy: evaluating CEL expression: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy: CEL expression did not evaluate to a bool")
	}
	return result, nil
}

func (v Value) canonical() interface{} {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueInteger:
		return v.Int
	case ValueBoolean:
		return v.Bool
	default:
		return nil
	}
}

// compareValues implements spec's type-mismatch-is-false Compare semantics.
func compareValues(left Value, op CompareOp, right Value) bool {
	if left.Kind != right.Kind {
		return false
	}
	switch left.Kind {
	case ValueString:
		switch op {
		case OpEqual:
			return left.Str == right.Str
		case OpNotEqual:
			return left.Str != right.Str
		default:
			return false
		}
	case ValueInteger:
		switch op {
		case OpEqual:
			return left.Int == right.Int
		case OpNotEqual:
			return left.Int != right.Int
		case OpGreater:
			return left.Int > right.Int
		case OpGreaterEqual:
			return left.Int >= right.Int
		case OpLess:
			return left.Int < right.Int
		case OpLessEqual:
			return left.Int <= right.Int
		default:
			return false
		}
	case ValueBoolean:
		switch op {
		case OpEqual:
			return left.Bool == right.Bool
		case OpNotEqual:
			return left.Bool != right.Bool
		default:
			return false
		}
	default:
		return false
	}
}
