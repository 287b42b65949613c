// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the memory chain

package memory

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/AleutianGateway/services/gateway/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestChain_AppendAndGet(t *testing.T) {
	c := New(chain.NewLog())

	entry, err := c.Append("sky", raw(`"blue"`), TypeFact, TruthTrue)
	require.NoError(t, err)
	assert.Equal(t, "sky", entry.Key)
	assert.Equal(t, TruthTrue, entry.TruthState)
	assert.Equal(t, chain.Genesis, entry.PrevHash)

	got, err := c.Get("sky")
	require.NoError(t, err)
	assert.Equal(t, entry.Hash, got.Hash)
	assert.JSONEq(t, `"blue"`, string(got.Value))
}

func TestChain_RewriteResolvesToNewest(t *testing.T) {
	c := New(chain.NewLog())

	_, err := c.Append("status", raw(`"draft"`), TypeObservation, TruthUnknown)
	require.NoError(t, err)
	second, err := c.Append("status", raw(`"final"`), TypeObservation, TruthTrue)
	require.NoError(t, err)

	got, err := c.Get("status")
	require.NoError(t, err)
	assert.Equal(t, second.Hash, got.Hash)
	assert.JSONEq(t, `"final"`, string(got.Value))

	// Both records remain on the chain.
	entries, total := c.List(0, 0, false)
	assert.Equal(t, 2, total)
	assert.Len(t, entries, 2)
}

func TestChain_DefaultType(t *testing.T) {
	c := New(chain.NewLog())
	entry, err := c.Append("k", raw(`1`), "", TruthUnknown)
	require.NoError(t, err)
	assert.Equal(t, TypeFact, entry.Type)
}

func TestChain_UnknownKey(t *testing.T) {
	c := New(chain.NewLog())
	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownKey)
	_, err = c.Erase("missing")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

// =============================================================================
// Erasure Tests
// =============================================================================

func TestChain_EraseMiddleEntryKeepsChainValid(t *testing.T) {
	c := New(chain.NewLog())

	_, err := c.Append("a", raw(`"a"`), TypeFact, TruthTrue)
	require.NoError(t, err)
	middle, err := c.Append("b", raw(`"b"`), TypeFact, TruthTrue)
	require.NoError(t, err)
	_, err = c.Append("c", raw(`"c"`), TypeFact, TruthTrue)
	require.NoError(t, err)

	before := c.Verify()
	require.True(t, before.Valid)
	require.Equal(t, 3, before.Total)

	erased, err := c.Erase("b")
	require.NoError(t, err)
	assert.True(t, erased.Erased)
	assert.Equal(t, TruthFalse, erased.TruthState)
	assert.Empty(t, erased.Key)

	var marker string
	require.NoError(t, json.Unmarshal(erased.Value, &marker))
	assert.Regexp(t, `^\[ERASED:[0-9a-f]{16}\]$`, marker)

	// The middle record's hash is unchanged, so the third entry still
	// links to it and the chain verifies.
	after := c.Verify()
	assert.True(t, after.Valid)

	all, _ := c.List(0, 0, true)
	require.Len(t, all, 3)
	assert.Equal(t, middle.Hash, all[1].Hash)
	assert.Equal(t, middle.Hash, all[2].PrevHash)

	_, err = c.Get("b")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestChain_ErasedEntriesHiddenFromDefaultListing(t *testing.T) {
	c := New(chain.NewLog())
	_, err := c.Append("a", raw(`"a"`), TypeFact, TruthTrue)
	require.NoError(t, err)
	_, err = c.Append("b", raw(`"b"`), TypeFact, TruthTrue)
	require.NoError(t, err)
	_, err = c.Erase("a")
	require.NoError(t, err)

	visible, total := c.List(0, 0, false)
	assert.Equal(t, 1, total)
	require.Len(t, visible, 1)
	assert.Equal(t, "b", visible[0].Key)

	all, total := c.List(0, 0, true)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)
}

// =============================================================================
// Persistence Tests
// =============================================================================

func TestChain_JournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")

	log, err := chain.OpenLog(path)
	require.NoError(t, err)
	c := New(log)
	_, err = c.Append("sky", raw(`"blue"`), TypeFact, TruthTrue)
	require.NoError(t, err)
	_, err = c.Append("sea", raw(`"green"`), TypeObservation, TruthUnknown)
	require.NoError(t, err)

	reopenedLog, err := chain.OpenLog(path)
	require.NoError(t, err)
	reopened := New(reopenedLog)

	got, err := reopened.Get("sky")
	require.NoError(t, err)
	assert.JSONEq(t, `"blue"`, string(got.Value))
	assert.True(t, reopened.Verify().Valid)
}

func TestChain_ErasedKeyDoesNotResolveAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")

	log, err := chain.OpenLog(path)
	require.NoError(t, err)
	c := New(log)
	_, err = c.Append("secret", raw(`"classified"`), TypeFact, TruthTrue)
	require.NoError(t, err)
	_, err = c.Erase("secret")
	require.NoError(t, err)

	reopenedLog, err := chain.OpenLog(path)
	require.NoError(t, err)
	reopened := New(reopenedLog)

	_, err = reopened.Get("secret")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.True(t, reopened.Verify().Valid)
}
