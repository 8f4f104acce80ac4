package domain

import (
	"fmt"
	"time"
)

// TransactionType is the closed set of money-movement operations. Each type
// maps to exactly one journal-entry construction strategy in the processor.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeFee        TransactionType = "fee"
	TransactionTypeInterest   TransactionType = "interest"
)

// ParseTransactionType validates a transaction type string.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer,
		TransactionTypeFee, TransactionTypeInterest:
		return TransactionType(s), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTransactionType, s)
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is the record of one processed money-movement request. One
// transaction maps to exactly one journal entry. Once completed it is
// immutable; undoing it requires a reversal of its journal entry.
type Transaction struct {
	ID             string
	Type           TransactionType
	FromAccountID  string
	ToAccountID    string
	Amount         Money
	Description    string
	Reference      string
	IdempotencyKey string
	Status         TransactionStatus
	JournalEntryID string
	Metadata       map[string]any
	CreatedAt      time.Time
	CompletedAt    *time.Time
}
