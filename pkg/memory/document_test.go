package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staticpayload/oracle.omen/pkg/memory"
)

func TestDocument_HashIsNonZeroAndStable(t *testing.T) {
	d1 := memory.NewDocument("key", memory.StringValue("value"), 1)
	d2 := memory.NewDocument("key", memory.StringValue("value"), 1)
	assert.False(t, d1.Hash().IsZero())
	assert.Equal(t, d1.Hash(), d2.Hash())
}

func TestDocument_MergeLaterCausalEventWins(t *testing.T) {
	d1 := memory.NewDocument("key", memory.IntValue(10), 1)
	d2 := memory.NewDocument("key", memory.IntValue(20), 2)

	outcome := d1.Merge(d2)
	assert.Equal(t, memory.MergeApplied, outcome)
	assert.Equal(t, int64(20), d1.Value.Int)
}

func TestDocument_MergeOlderCausalEventLoses(t *testing.T) {
	d1 := memory.NewDocument("key", memory.IntValue(20), 2)
	d2 := memory.NewDocument("key", memory.IntValue(10), 1)

	outcome := d1.Merge(d2)
	assert.Equal(t, memory.MergeUnchanged, outcome)
	assert.Equal(t, int64(20), d1.Value.Int)
}

func TestDocument_MergeKeyMismatch(t *testing.T) {
	d1 := memory.NewDocument("key1", memory.IntValue(10), 1)
	d2 := memory.NewDocument("key2", memory.IntValue(20), 2)

	outcome := d1.Merge(d2)
	assert.Equal(t, memory.MergeKeyMismatch, outcome)
}
