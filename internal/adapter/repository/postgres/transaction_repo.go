package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

const pgErrUniqueViolation = "23505"

// TransactionRepository implements usecase.TransactionRepository. The unique
// constraint on idempotency_key is the authoritative duplicate detector;
// caches are a fast path only.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create inserts a transaction within a storage transaction. A duplicate
// idempotency key surfaces as domain.ErrDuplicateIdempotency.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	var metadata []byte
	if txn.Metadata != nil {
		var err error

		metadata, err = json.Marshal(txn.Metadata)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO transactions (
			id, type, from_account_id, to_account_id, amount, currency,
			description, reference, idempotency_key, status,
			journal_entry_id, metadata, created_at, completed_at
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''), $10, NULLIF($11, ''), $12, $13, $14)
	`

	_, err := conn(tx).Exec(ctx, query,
		txn.ID,
		string(txn.Type),
		txn.FromAccountID,
		txn.ToAccountID,
		decimalToNumeric(txn.Amount.Amount),
		string(txn.Amount.Currency),
		txn.Description,
		txn.Reference,
		txn.IdempotencyKey,
		string(txn.Status),
		txn.JournalEntryID,
		metadata,
		timeToPgTimestamptz(txn.CreatedAt),
		timePtrToPgTimestamptz(txn.CompletedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrDuplicateIdempotency
		}

		return err
	}

	return nil
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getBy(ctx, `id = $1`, id)
}

// GetByIdempotencyKey retrieves a transaction by idempotency key.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.getBy(ctx, `idempotency_key = $1`, key)
}

func (r *TransactionRepository) getBy(ctx context.Context, where string, arg any) (*domain.Transaction, error) {
	query := `
		SELECT id, type, COALESCE(from_account_id, ''), COALESCE(to_account_id, ''),
		       amount, currency, description, reference,
		       COALESCE(idempotency_key, ''), status, COALESCE(journal_entry_id, ''),
		       metadata, created_at, completed_at
		FROM transactions
		WHERE ` + where

	var (
		txn          domain.Transaction
		txnType      string
		amount       pgtype.Numeric
		currencyCode string
		status       string
		metadata     []byte
		completedAt  pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&txn.ID,
		&txnType,
		&txn.FromAccountID,
		&txn.ToAccountID,
		&amount,
		&currencyCode,
		&txn.Description,
		&txn.Reference,
		&txn.IdempotencyKey,
		&status,
		&txn.JournalEntryID,
		&metadata,
		&txn.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	currency, err := domain.ParseCurrency(currencyCode)
	if err != nil {
		return nil, err
	}

	txn.Type = domain.TransactionType(txnType)
	txn.Amount = domain.Money{Amount: numericToDecimal(amount), Currency: currency}
	txn.Status = domain.TransactionStatus(status)
	if metadata != nil {
		_ = json.Unmarshal(metadata, &txn.Metadata)
	}
	if completedAt.Valid {
		t := completedAt.Time
		txn.CompletedAt = &t
	}

	return &txn, nil
}

// PurgeIdempotencyKeys clears keys from transactions created before the
// cutoff. The transaction rows themselves are kept for audit purposes.
func (r *TransactionRepository) PurgeIdempotencyKeys(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE transactions
		SET idempotency_key = NULL
		WHERE idempotency_key IS NOT NULL AND created_at < $1
	`

	tag, err := r.pool.Exec(ctx, query, timeToPgTimestamptz(before))
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}
