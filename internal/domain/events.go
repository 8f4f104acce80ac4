package domain

import "time"

// Event types
const (
	EventTypeEntryPosted          = "journal_entry.posted"
	EventTypeEntryReversed        = "journal_entry.reversed"
	EventTypeTransactionCompleted = "transaction.completed"
	EventTypeLoanPaymentApplied   = "loan.payment_applied"
	EventTypeAccountCreated       = "account.created"
)

// Aggregate types
const (
	AggregateTypeJournalEntry = "journal_entry"
	AggregateTypeTransaction  = "transaction"
	AggregateTypeAccount      = "account"
	AggregateTypeLoan         = "loan"
)

// OutboxEvent represents a domain event staged in the same storage
// transaction as the write it describes, published after commit.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// EntryPostedEvent payload
type EntryPostedEvent struct {
	EntryID   string `json:"entry_id"`
	Reference string `json:"reference"`
	LineCount int    `json:"line_count"`
	PostedAt  string `json:"posted_at"`
}

// EntryReversedEvent payload
type EntryReversedEvent struct {
	ReversalEntryID string `json:"reversal_entry_id"`
	OriginalEntryID string `json:"original_entry_id"`
	Reason          string `json:"reason"`
}

// TransactionCompletedEvent payload
type TransactionCompletedEvent struct {
	TransactionID  string `json:"transaction_id"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	JournalEntryID string `json:"journal_entry_id"`
}

// LoanPaymentAppliedEvent payload
type LoanPaymentAppliedEvent struct {
	LoanID           string `json:"loan_id"`
	TransactionID    string `json:"transaction_id"`
	InterestPortion  string `json:"interest_portion"`
	PrincipalPortion string `json:"principal_portion"`
	RemainingBalance string `json:"remaining_balance"`
}
