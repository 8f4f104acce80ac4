package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditEntrySealAndVerify(t *testing.T) {
	e := &AuditEntry{
		ID:           "aud-1",
		Sequence:     1,
		EventType:    AuditEventEntryPosted,
		EntityType:   AggregateTypeJournalEntry,
		EntityID:     "je-1",
		ActorID:      "system",
		Metadata:     map[string]any{"reference": "DEP-001", "lines": 2},
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		PreviousHash: GenesisHash,
	}

	require.NoError(t, e.Seal())
	assert.Len(t, e.CurrentHash, 64)

	ok, err := e.VerifyHash()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuditEntryHashIsDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &AuditEntry{
		EventType:    AuditEventEntryPosted,
		EntityID:     "je-1",
		Metadata:     map[string]any{"b": 2, "a": 1},
		Timestamp:    ts,
		PreviousHash: GenesisHash,
	}
	b := &AuditEntry{
		EventType:    AuditEventEntryPosted,
		EntityID:     "je-1",
		Metadata:     map[string]any{"a": 1, "b": 2},
		Timestamp:    ts,
		PreviousHash: GenesisHash,
	}

	ha, err := a.ComputeHash()
	require.NoError(t, err)
	hb, err := b.ComputeHash()
	require.NoError(t, err)

	assert.Equal(t, ha, hb, "metadata key order must not affect the hash")
}

func TestAuditEntryTamperDetection(t *testing.T) {
	e := &AuditEntry{
		EventType:    AuditEventTransactionCompleted,
		EntityID:     "txn-1",
		Metadata:     map[string]any{"amount": "50.00"},
		Timestamp:    time.Now().UTC(),
		PreviousHash: GenesisHash,
	}
	require.NoError(t, e.Seal())

	e.Metadata["amount"] = "5000.00"

	ok, err := e.VerifyHash()
	require.NoError(t, err)
	assert.False(t, ok, "mutated metadata must fail verification")
}

func TestAuditEntryChainsOnPreviousHash(t *testing.T) {
	first := &AuditEntry{
		EventType:    AuditEventEntryCreated,
		EntityID:     "je-1",
		Timestamp:    time.Now().UTC(),
		PreviousHash: GenesisHash,
	}
	require.NoError(t, first.Seal())

	second := &AuditEntry{
		EventType:    AuditEventEntryPosted,
		EntityID:     "je-1",
		Timestamp:    time.Now().UTC(),
		PreviousHash: first.CurrentHash,
	}
	require.NoError(t, second.Seal())

	// Rewriting history upstream changes the expected previous hash.
	first.EntityID = "je-other"
	rehashed, err := first.ComputeHash()
	require.NoError(t, err)
	assert.NotEqual(t, second.PreviousHash, rehashed)
}
