package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staticpayload/oracle.omen/pkg/capability"
)

func TestCapability_Matches(t *testing.T) {
	assert.True(t, capability.Capability("fs:read:tmp").Matches("fs:read:tmp"))
	assert.True(t, capability.Capability("fs:read:tmp").Matches("fs:read:*"))
	assert.True(t, capability.Capability("fs:read:tmp").Matches("*:*:*"))
	assert.False(t, capability.Capability("fs:read:tmp").Matches("fs:write:tmp"))
	assert.False(t, capability.Capability("fs:read:tmp").Matches("fs:read")) // component count mismatch
}

func TestSet_HasExact(t *testing.T) {
	s := capability.NewSet("fs:read:tmp", "net:connect:*")
	assert.True(t, s.Has("fs:read:tmp"))
	assert.False(t, s.Has("fs:write:tmp"))
}

func TestSet_Dedup_And_Sorted(t *testing.T) {
	s := capability.NewSet("b:x:y", "a:x:y", "a:x:y")
	members := s.Members()
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, capability.Capability("a:x:y"), members[0])
	assert.Equal(t, capability.Capability("b:x:y"), members[1])
}

func TestChecker_Check_ExactAndWildcard(t *testing.T) {
	checker := capability.NewChecker(capability.NewSet("fs:read:*", "net:connect:8080"))

	assert.True(t, checker.Check("fs:read:anything").Granted)
	assert.True(t, checker.Check("net:connect:8080").Granted)

	d := checker.Check("net:connect:9090")
	assert.False(t, d.Granted)
	assert.NotEmpty(t, d.Reason)
}

func TestChecker_CheckAll_FirstDenialWins(t *testing.T) {
	checker := capability.NewChecker(capability.NewSet("fs:read:*"))

	d := checker.CheckAll("fs:read:x", "fs:write:x")
	assert.False(t, d.Granted)
	assert.Equal(t, capability.Capability("fs:write:x"), d.Capability)

	d = checker.CheckAll("fs:read:x", "fs:read:y")
	assert.True(t, d.Granted)
}

// TestMonotonicity is invariant 8 (§8): removing a capability from a set
// never increases the set of tools the runtime will dispatch.
func TestMonotonicity(t *testing.T) {
	full := capability.NewChecker(capability.NewSet("fs:read:*", "net:connect:*"))
	reduced := capability.NewChecker(capability.NewSet("fs:read:*"))

	candidates := []capability.Capability{"fs:read:a", "net:connect:b", "db:write:c"}
	for _, c := range candidates {
		if reduced.Check(c).Granted {
			assert.True(t, full.Check(c).Granted, "reduced set granted %s but full set did not", c)
		}
	}
}
