package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/corebank/ledger/internal/domain"
)

func TestTransactionCreateMapsUniqueViolation(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO transactions").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "transactions_idempotency_key_key"})
	mockPool.ExpectRollback()

	manager := newTxManagerWithPool(mockPool)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(context.Background())

	repo := &TransactionRepository{}
	now := time.Now().UTC()
	err = repo.Create(context.Background(), tx, &domain.Transaction{
		ID:             "txn-1",
		Type:           domain.TransactionTypeDeposit,
		ToAccountID:    "acct-1",
		Amount:         domain.MustMoney("100.00", domain.USD),
		Reference:      "DEP-1",
		IdempotencyKey: "key-1",
		Status:         domain.TransactionStatusCompleted,
		JournalEntryID: "entry-1",
		CreatedAt:      now,
		CompletedAt:    &now,
	})

	if !errors.Is(err, domain.ErrDuplicateIdempotency) {
		t.Fatalf("expected ErrDuplicateIdempotency, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestTransactionCreatePassesThroughOtherErrors(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	storageErr := errors.New("connection reset")
	mockPool.ExpectExec("INSERT INTO transactions").WillReturnError(storageErr)
	mockPool.ExpectRollback()

	manager := newTxManagerWithPool(mockPool)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(context.Background())

	repo := &TransactionRepository{}
	err = repo.Create(context.Background(), tx, &domain.Transaction{
		ID:     "txn-1",
		Type:   domain.TransactionTypeDeposit,
		Amount: domain.MustMoney("100.00", domain.USD),
	})

	if !errors.Is(err, storageErr) {
		t.Fatalf("expected storage error, got %v", err)
	}

	assertExpectations(t, mockPool)
}
