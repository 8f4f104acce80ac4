package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// AuditRepository implements usecase.AuditRepository. The audit_log table is
// append-only: no UPDATE or DELETE statement exists in this file, and the
// schema enforces the same at the database level.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append inserts a sealed audit entry within a transaction.
func (r *AuditRepository) Append(ctx context.Context, tx usecase.Transaction, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	var metadata []byte
	if entry.Metadata != nil {
		var err error

		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO audit_log (
			id, sequence, event_type, entity_type, entity_id, actor_id,
			metadata, recorded_at, previous_hash, current_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := conn(tx).Exec(ctx, query,
		entry.ID,
		entry.Sequence,
		string(entry.EventType),
		entry.EntityType,
		entry.EntityID,
		entry.ActorID,
		metadata,
		timeToPgTimestamptz(entry.Timestamp),
		entry.PreviousHash,
		entry.CurrentHash,
	)

	return err
}

// ChainHead returns the highest-sequence entry, locked FOR UPDATE so
// concurrent appends serialize on the chain tail. Returns nil when the chain
// is empty.
func (r *AuditRepository) ChainHead(ctx context.Context, tx usecase.Transaction) (*domain.AuditEntry, error) {
	query := auditSelectColumns + `
		FROM audit_log
		ORDER BY sequence DESC
		LIMIT 1
		FOR UPDATE
	`

	entry, err := scanAuditEntry(conn(tx).QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return entry, nil
}

// ListBySequence retrieves entries in a sequence window, ascending.
func (r *AuditRepository) ListBySequence(ctx context.Context, fromSeq, toSeq int64) ([]*domain.AuditEntry, error) {
	query := auditSelectColumns + `
		FROM audit_log
		WHERE sequence >= $1 AND sequence <= $2
		ORDER BY sequence
	`

	return r.list(ctx, query, fromSeq, toSeq)
}

// ListByTimeRange retrieves entries in a time window, ascending by sequence.
func (r *AuditRepository) ListByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.AuditEntry, error) {
	query := auditSelectColumns + `
		FROM audit_log
		WHERE recorded_at >= $1 AND recorded_at <= $2
		ORDER BY sequence
	`

	return r.list(ctx, query, timeToPgTimestamptz(start), timeToPgTimestamptz(end))
}

// MaxSequence returns the highest sequence number, zero when empty.
func (r *AuditRepository) MaxSequence(ctx context.Context) (int64, error) {
	var max int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM audit_log`).Scan(&max)

	return max, err
}

func (r *AuditRepository) list(ctx context.Context, query string, args ...any) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

const auditSelectColumns = `
		SELECT id, sequence, event_type, entity_type, entity_id, actor_id,
		       metadata, recorded_at, previous_hash, current_hash`

func scanAuditEntry(row pgx.Row) (*domain.AuditEntry, error) {
	var (
		entry     domain.AuditEntry
		eventType string
		metadata  []byte
	)

	if err := row.Scan(
		&entry.ID,
		&entry.Sequence,
		&eventType,
		&entry.EntityType,
		&entry.EntityID,
		&entry.ActorID,
		&metadata,
		&entry.Timestamp,
		&entry.PreviousHash,
		&entry.CurrentHash,
	); err != nil {
		return nil, err
	}

	entry.EventType = domain.AuditEventType(eventType)
	if metadata != nil {
		_ = json.Unmarshal(metadata, &entry.Metadata)
	}

	return &entry, nil
}
