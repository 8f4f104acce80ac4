package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/ledger/internal/domain"
)

// ErrCacheMiss is returned by Cache implementations when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// AccountRepository defines data access for the chart of accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// JournalRepository defines data access for journal entries and their lines.
type JournalRepository interface {
	CreateEntry(ctx context.Context, tx Transaction, entry *domain.JournalEntry) error
	GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error)
	GetEntryForUpdate(ctx context.Context, tx Transaction, id string) (*domain.JournalEntry, error)
	MarkPosted(ctx context.Context, tx Transaction, id string, postedAt time.Time) error
	MarkReversed(ctx context.Context, tx Transaction, id, reversalID string) error
	// SumPostedLines folds debit and credit totals over posted lines for one
	// account and currency up to asOf (zero time means no upper bound).
	SumPostedLines(ctx context.Context, accountID string, currency domain.Currency, asOf time.Time) (debits, credits decimal.Decimal, err error)
	// SumPostedLinesTx is SumPostedLines inside an open transaction, used for
	// commit-time re-verification of balances.
	SumPostedLinesTx(ctx context.Context, tx Transaction, accountID string, currency domain.Currency, asOf time.Time) (debits, credits decimal.Decimal, err error)
	// LedgerTotals returns ledger-wide posted debit and credit totals.
	LedgerTotals(ctx context.Context) (debits, credits decimal.Decimal, err error)
	ListEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.JournalEntry, error)
}

// TransactionRepository defines data access for processed transactions.
// Create must surface domain.ErrDuplicateIdempotency when the idempotency key
// unique constraint is violated.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	// PurgeIdempotencyKeys clears keys from transactions completed before the
	// cutoff, ending their retention window. Transaction rows are kept.
	PurgeIdempotencyKeys(ctx context.Context, before time.Time) (int64, error)
}

// AuditRepository defines data access for the hash-chained audit log.
// Append is the only write; no update or delete exists.
type AuditRepository interface {
	Append(ctx context.Context, tx Transaction, entry *domain.AuditEntry) error
	// ChainHead returns the highest-sequence entry, locking it against
	// concurrent appends for the duration of tx. Returns nil when empty.
	ChainHead(ctx context.Context, tx Transaction) (*domain.AuditEntry, error)
	ListBySequence(ctx context.Context, fromSeq, toSeq int64) ([]*domain.AuditEntry, error)
	ListByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.AuditEntry, error)
	MaxSequence(ctx context.Context) (int64, error)
}

// LoanRepository defines data access for loans.
type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	GetByID(ctx context.Context, id string) (*domain.Loan, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Loan, error)
	UpdateAfterPayment(ctx context.Context, tx Transaction, id string, balance domain.Money, status domain.LoanStatus, paidAt time.Time) error
}

// OutboxRepository defines data access for staged domain events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles storage transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations. Implementations return ErrCacheMiss for
// absent keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Retrier retries an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// ComplianceVerdict is the outcome of an external compliance check.
type ComplianceVerdict string

const (
	ComplianceAllow  ComplianceVerdict = "allow"
	ComplianceReview ComplianceVerdict = "review"
	ComplianceBlock  ComplianceVerdict = "block"
)

// ComplianceChecker is the external compliance collaborator. It is invoked
// before the write transaction is opened and must never hold it open.
type ComplianceChecker interface {
	Check(ctx context.Context, req *TransactionRequest) (ComplianceVerdict, error)
}

// TransactionProcessor is the sole money-movement entry point consumed by the
// interest engine and external callers.
type TransactionProcessor interface {
	Process(ctx context.Context, req *TransactionRequest) (*TransactionResult, error)
}
