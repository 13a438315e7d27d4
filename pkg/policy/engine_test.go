package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/capability"
	"github.com/staticpayload/oracle.omen/pkg/policy"
)

// TestEvaluate_DefaultDeny_S2 exercises spec scenario S2: empty
// policy/context, "fs:read" denied, reason begins "no policy allows".
func TestEvaluate_DefaultDeny_S2(t *testing.T) {
	eng, err := policy.NewEngine()
	require.NoError(t, err)

	ctx := policy.Context{Capabilities: capability.NewSet()}
	d := eng.Evaluate(policy.RuleCapability, "fs:read", ctx)

	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "no policy allows")
}

// TestEvaluate_ExplicitDenyOverridesAllow_S3 exercises spec scenario S3:
// rule A allows on HasCapability("fs:write"), rule B denies on True;
// context has fs:write; result denied with rule B's reason.
func TestEvaluate_ExplicitDenyOverridesAllow_S3(t *testing.T) {
	eng, err := policy.NewEngine()
	require.NoError(t, err)

	eng.AddPolicy(policy.Policy{
		ID: "p1",
		Rules: []policy.CompiledRule{
			{Name: "A", Kind: policy.RuleCapability, Condition: policy.HasCapability("fs:write"), Action: policy.Allow()},
			{Name: "B", Kind: policy.RuleCapability, Condition: policy.True(), Action: policy.Deny("R")},
		},
	})

	ctx := policy.Context{Capabilities: capability.NewSet("fs:write")}
	d := eng.Evaluate(policy.RuleCapability, "fs:write", ctx)

	assert.False(t, d.Allowed)
	assert.Equal(t, "R", d.Reason)
}

func TestEvaluate_FirstAllowWinsWhenNoDeny(t *testing.T) {
	eng, err := policy.NewEngine()
	require.NoError(t, err)

	eng.AddPolicy(policy.Policy{
		ID: "p1",
		Rules: []policy.CompiledRule{
			{Name: "allow_read", Kind: policy.RuleCapability, Condition: policy.HasCapability("fs:read"), Action: policy.Allow()},
		},
	})

	ctx := policy.Context{Capabilities: capability.NewSet("fs:read")}
	d := eng.Evaluate(policy.RuleCapability, "fs:read", ctx)
	assert.True(t, d.Allowed)
	assert.Equal(t, "allow_read", d.MatchedRule)
}

func TestEvaluate_HasCapability_Wildcard(t *testing.T) {
	eng, err := policy.NewEngine()
	require.NoError(t, err)

	eng.AddPolicy(policy.Policy{
		ID: "p1",
		Rules: []policy.CompiledRule{
			{Name: "allow_any_fs_read", Kind: policy.RuleTool, Condition: policy.HasCapability("fs:read:*"), Action: policy.Allow()},
		},
	})

	ctx := policy.Context{Capabilities: capability.NewSet("fs:read:anything")}
	d := eng.Evaluate(policy.RuleTool, "x", ctx)
	assert.True(t, d.Allowed)
}

func TestEvaluate_CompareTypeMismatchIsFalse(t *testing.T) {
	eng, err := policy.NewEngine()
	require.NoError(t, err)

	eng.AddPolicy(policy.Policy{
		ID: "p1",
		Rules: []policy.CompiledRule{
			{
				Name: "mismatched",
				Kind: policy.RuleResource,
				Condition: policy.Compare("iterations", policy.OpLess, policy.Value{Kind: policy.ValueString, Str: "100"}),
				Action: policy.Allow(),
			},
		},
	})

	ctx := policy.Context{
		Capabilities: capability.NewSet(),
		State:        map[string]policy.Value{"iterations": {Kind: policy.ValueInteger, Int: 50}},
	}
	d := eng.Evaluate(policy.RuleResource, "x", ctx)
	assert.False(t, d.Allowed)
}

func TestEvaluate_AndOrNot(t *testing.T) {
	eng, err := policy.NewEngine()
	require.NoError(t, err)

	eng.AddPolicy(policy.Policy{
		ID: "p1",
		Rules: []policy.CompiledRule{
			{
				Name: "combo",
				Kind: policy.RuleTool,
				Condition: policy.And(
					policy.HasCapability("fs:read:x"),
					policy.Not(policy.ToolEquals("forbidden")),
				),
				Action: policy.Allow(),
			},
		},
	})

	ctx := policy.Context{Capabilities: capability.NewSet("fs:read:x"), Tool: "allowed"}
	d := eng.Evaluate(policy.RuleTool, "allowed", ctx)
	assert.True(t, d.Allowed)
}

func TestEvaluate_CustomCELCondition(t *testing.T) {
	eng, err := policy.NewEngine()
	require.NoError(t, err)

	eng.AddPolicy(policy.Policy{
		ID: "p1",
		Rules: []policy.CompiledRule{
			{Name: "cel_rule", Kind: policy.RuleTool, Condition: policy.Custom(`tool == "approved_tool"`), Action: policy.Allow()},
		},
	})

	ctx := policy.Context{Capabilities: capability.NewSet(), Tool: "approved_tool"}
	d := eng.Evaluate(policy.RuleTool, "approved_tool", ctx)
	assert.True(t, d.Allowed)
}
