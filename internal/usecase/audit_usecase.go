package usecase

import (
	"context"
	"time"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
)

// AuditUseCase maintains the hash-chained, append-only audit trail.
type AuditUseCase struct {
	txManager TransactionManager
	auditRepo AuditRepository
	idGen     IDGenerator
	metrics   *metrics.Metrics
}

// NewAuditUseCase creates a new AuditUseCase. metrics may be nil.
func NewAuditUseCase(txManager TransactionManager, auditRepo AuditRepository, idGen IDGenerator, metrics *metrics.Metrics) *AuditUseCase {
	return &AuditUseCase{
		txManager: txManager,
		auditRepo: auditRepo,
		idGen:     idGen,
		metrics:   metrics,
	}
}

// AppendInput describes an auditable event.
type AppendInput struct {
	EventType  domain.AuditEventType
	EntityType string
	EntityID   string
	ActorID    string
	Metadata   map[string]any
}

// Append records an event as a new chain link in its own transaction.
func (uc *AuditUseCase) Append(ctx context.Context, input AppendInput) (*domain.AuditEntry, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := uc.AppendTx(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return entry, nil
}

// AppendTx records an event inside the caller's transaction, so the audit
// write commits or rolls back together with the ledger write it describes.
// The chain tail is locked for the duration of tx, which keeps sequence
// numbers and previous-hash links race-free under concurrent appends.
func (uc *AuditUseCase) AppendTx(ctx context.Context, tx Transaction, input AppendInput) (*domain.AuditEntry, error) {
	head, err := uc.auditRepo.ChainHead(ctx, tx)
	if err != nil {
		return nil, err
	}

	previousHash := domain.GenesisHash
	var sequence int64 = 1
	if head != nil {
		previousHash = head.CurrentHash
		sequence = head.Sequence + 1
	}

	actor := input.ActorID
	if actor == "" {
		actor = SystemActorID
	}

	entry := &domain.AuditEntry{
		ID:           uc.idGen.Generate(),
		Sequence:     sequence,
		EventType:    input.EventType,
		EntityType:   input.EntityType,
		EntityID:     input.EntityID,
		ActorID:      actor,
		Metadata:     input.Metadata,
		// Truncated to microseconds to match timestamptz precision, so a
		// stored entry hashes identically after a round trip.
		Timestamp:    time.Now().UTC().Truncate(time.Microsecond),
		PreviousHash: previousHash,
	}

	if err := entry.Seal(); err != nil {
		return nil, err
	}

	if err := uc.auditRepo.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AuditEntriesAppended.Inc()
	}

	return entry, nil
}

// VerifyIntegrity recomputes every entry's hash in [fromSeq, toSeq] and
// checks the previous-hash linkage, reporting the first divergence. A zero
// toSeq means "to the end of the chain". Integrity failures are surfaced,
// never repaired.
func (uc *AuditUseCase) VerifyIntegrity(ctx context.Context, fromSeq, toSeq int64) (*domain.IntegrityResult, error) {
	if fromSeq <= 0 {
		fromSeq = 1
	}
	if toSeq <= 0 {
		max, err := uc.auditRepo.MaxSequence(ctx)
		if err != nil {
			return nil, err
		}
		toSeq = max
	}

	result := &domain.IntegrityResult{Valid: true}
	if toSeq < fromSeq {
		uc.countVerification(true)
		return result, nil
	}

	// Fetch one entry before the window to anchor the previous-hash check.
	anchorFrom := fromSeq
	if fromSeq > 1 {
		anchorFrom = fromSeq - 1
	}

	entries, err := uc.auditRepo.ListBySequence(ctx, anchorFrom, toSeq)
	if err != nil {
		return nil, err
	}

	var previous *domain.AuditEntry
	for _, entry := range entries {
		if entry.Sequence < fromSeq {
			previous = entry
			continue
		}

		expectedPrevious := domain.GenesisHash
		if previous != nil {
			expectedPrevious = previous.CurrentHash
		}

		ok, err := entry.VerifyHash()
		if err != nil {
			return nil, err
		}

		if !ok || entry.PreviousHash != expectedPrevious {
			result.Valid = false
			result.BrokenAt = entry.ID
			uc.countVerification(false)
			return result, nil
		}

		result.Checked++
		previous = entry
	}

	uc.countVerification(true)
	return result, nil
}

func (uc *AuditUseCase) countVerification(valid bool) {
	if uc.metrics == nil {
		return
	}
	label := "valid"
	if !valid {
		label = "broken"
	}
	uc.metrics.ChainVerifications.WithLabelValues(label).Inc()
}

// Export returns entries in insertion order for the given time window. It is
// a read-only projection; integrity guarantees come from VerifyIntegrity.
func (uc *AuditUseCase) Export(ctx context.Context, start, end time.Time) ([]*domain.AuditEntry, error) {
	return uc.auditRepo.ListByTimeRange(ctx, start, end)
}
