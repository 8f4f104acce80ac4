package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// GenesisHash is the fixed previous_hash of the first audit entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// AuditEventType names an auditable event.
type AuditEventType string

const (
	AuditEventEntryCreated         AuditEventType = "journal_entry.created"
	AuditEventEntryPosted          AuditEventType = "journal_entry.posted"
	AuditEventEntryReversed        AuditEventType = "journal_entry.reversed"
	AuditEventAccountCreated       AuditEventType = "account.created"
	AuditEventTransactionCompleted AuditEventType = "transaction.completed"
	AuditEventTransactionFailed    AuditEventType = "transaction.failed"
	AuditEventLoanPaymentApplied   AuditEventType = "loan.payment_applied"
	AuditEventLoanStatusChanged    AuditEventType = "loan.status_changed"
)

// AuditEntry is one link of the tamper-evident hash chain. Entries are only
// appended, never updated or deleted; CurrentHash covers PreviousHash, so any
// retroactive edit breaks verification from that point forward.
type AuditEntry struct {
	ID           string
	Sequence     int64
	EventType    AuditEventType
	EntityType   string
	EntityID     string
	ActorID      string
	Metadata     map[string]any
	Timestamp    time.Time
	PreviousHash string
	CurrentHash  string
}

// CanonicalPayload serializes the hashed fields into a stable byte sequence:
// event_type|entity_id|timestamp(RFC3339Nano, UTC)|metadata(JSON, sorted keys).
// encoding/json sorts map keys, which keeps the metadata segment canonical.
func (e *AuditEntry) CanonicalPayload() ([]byte, error) {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(string(e.EventType))
	b.WriteByte('|')
	b.WriteString(e.EntityID)
	b.WriteByte('|')
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.Write(meta)

	return []byte(b.String()), nil
}

// ComputeHash derives the entry's hash from its previous hash and canonical
// payload: SHA-256(previous_hash || payload), hex encoded.
func (e *AuditEntry) ComputeHash() (string, error) {
	payload, err := e.CanonicalPayload()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(e.PreviousHash))
	h.Write(payload)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Seal computes and stores the entry's hash.
func (e *AuditEntry) Seal() error {
	hash, err := e.ComputeHash()
	if err != nil {
		return err
	}
	e.CurrentHash = hash
	return nil
}

// VerifyHash recomputes the hash from the recorded fields and compares it to
// the stored value.
func (e *AuditEntry) VerifyHash() (bool, error) {
	hash, err := e.ComputeHash()
	if err != nil {
		return false, err
	}
	return hash == e.CurrentHash, nil
}

// IntegrityResult is the outcome of an audit chain verification.
type IntegrityResult struct {
	Valid    bool
	BrokenAt string // id of the first broken entry, empty when valid
	Checked  int
}
