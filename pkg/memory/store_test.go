package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/memory"
)

func TestStore_WriteThenRead(t *testing.T) {
	store := memory.NewStore()
	doc := memory.NewDocument("test", memory.StringValue("value"), 1)

	store.Write(doc)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Read("test")
	require.True(t, ok)
	assert.Equal(t, memory.StringValue("value"), got.Value)
}

func TestStore_Provenance(t *testing.T) {
	store := memory.NewStore()
	store.Write(memory.NewDocument("key1", memory.IntValue(10), 1))
	store.Write(memory.NewDocument("key2", memory.IntValue(20), 1))

	keys := store.KeysForEvent(1)
	assert.Equal(t, []string{"key1", "key2"}, keys)
}

func TestStore_Delete(t *testing.T) {
	store := memory.NewStore()
	store.Write(memory.NewDocument("test", memory.StringValue("value"), 1))

	outcome := store.Delete("test", 2)
	assert.Equal(t, memory.Deleted, outcome)
	assert.Equal(t, 0, store.Len())

	keys := store.KeysForEvent(2)
	assert.Equal(t, []string{"!test"}, keys)
}

func TestStore_DeleteNotFound(t *testing.T) {
	store := memory.NewStore()
	assert.Equal(t, memory.NotFound, store.Delete("missing", 1))
}

func TestStore_HashChangesOnWrite(t *testing.T) {
	store := memory.NewStore()
	h1 := store.Hash()

	store.Write(memory.NewDocument("test", memory.StringValue("value"), 1))
	h2 := store.Hash()

	assert.NotEqual(t, h1, h2)
	assert.False(t, h2.IsZero())
}

func TestStore_StateAtEventReturnsUnsupported(t *testing.T) {
	store := memory.NewStore()
	_, err := store.StateAtEvent(1)
	assert.ErrorIs(t, err, memory.ErrTemporalQueryUnsupported)
}

func TestStore_Snapshot(t *testing.T) {
	store := memory.NewStore()
	store.Write(memory.NewDocument("a", memory.IntValue(1), 1))
	store.Write(memory.NewDocument("b", memory.IntValue(2), 2))

	snap := store.Snapshot()
	assert.Len(t, snap.DocumentHashes, 2)
	assert.Equal(t, store.Hash(), snap.StoreHash)
}
