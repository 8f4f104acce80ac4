package domain

import "errors"

var (
	// Money errors
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrInvalidAmount    = errors.New("amount must be positive")

	// Journal entry errors
	ErrUnbalancedEntry   = errors.New("journal entry debits do not equal credits")
	ErrInsufficientLines = errors.New("journal entry requires at least two lines")
	ErrInvalidLine       = errors.New("journal line must carry exactly one non-zero side")
	ErrAlreadyPosted     = errors.New("journal entry already posted")
	ErrNotPosted         = errors.New("journal entry is not posted")
	ErrEntryNotFound     = errors.New("journal entry not found")

	// Account errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrSameAccount        = errors.New("cannot move money between the same account")
	ErrInsufficientFunds  = errors.New("insufficient funds")

	// Transaction errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrDuplicateIdempotency   = errors.New("idempotency key already in use")
	ErrComplianceBlocked      = errors.New("transaction blocked by compliance check")
	ErrUnknownTransactionType = errors.New("unknown transaction type")

	// Audit errors
	ErrAuditChainBroken   = errors.New("audit chain integrity violation")
	ErrAuditEntryNotFound = errors.New("audit entry not found")

	// Loan errors
	ErrLoanNotFound           = errors.New("loan not found")
	ErrInvalidTerms           = errors.New("invalid loan terms")
	ErrRoundingReconciliation = errors.New("amortization schedule does not reconcile to zero")
	ErrInvalidLoanTransition  = errors.New("invalid loan status transition")
	ErrLoanNotPayable         = errors.New("loan does not accept payments in its current status")
)
