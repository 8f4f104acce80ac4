package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryState is the lifecycle state of a journal entry.
type EntryState string

const (
	EntryStatePending  EntryState = "pending"
	EntryStatePosted   EntryState = "posted"
	EntryStateReversed EntryState = "reversed"
)

// JournalEntryLine is a single debit or credit against one account.
// Exactly one of Debit/Credit is non-zero; the other side carries a zero
// placeholder of the same currency.
type JournalEntryLine struct {
	ID          string
	EntryID     string
	AccountID   string
	Description string
	Debit       Money
	Credit      Money
}

// Validate checks the single-sided invariant and currency coherence of a line.
func (l *JournalEntryLine) Validate() error {
	if l.AccountID == "" {
		return fmt.Errorf("%w: missing account id", ErrInvalidLine)
	}
	if l.Debit.Currency != l.Credit.Currency {
		return fmt.Errorf("%w: debit %s vs credit %s", ErrCurrencyMismatch, l.Debit.Currency, l.Credit.Currency)
	}
	if !l.Debit.Currency.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, l.Debit.Currency)
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return fmt.Errorf("%w: line amounts must not be negative", ErrInvalidLine)
	}
	if l.Debit.IsZero() == l.Credit.IsZero() {
		return ErrInvalidLine
	}
	return nil
}

// Currency returns the currency carried by the line.
func (l *JournalEntryLine) LineCurrency() Currency {
	return l.Debit.Currency
}

// JournalEntry is a balanced set of debit/credit lines representing one
// atomic financial event. Once posted it is immutable; the only way to undo
// it is a compensating reversal entry.
type JournalEntry struct {
	ID          string
	Reference   string
	Description string
	Lines       []JournalEntryLine
	State       EntryState
	ReversalOf  string
	ReversedBy  string
	CreatedAt   time.Time
	PostedAt    *time.Time
}

// Validate enforces the double-entry invariants: at least two lines, every
// line single-sided, and debits equal to credits for every currency present.
func (e *JournalEntry) Validate() error {
	if len(e.Lines) < 2 {
		return ErrInsufficientLines
	}

	debits := make(map[Currency]decimal.Decimal)
	credits := make(map[Currency]decimal.Decimal)

	for i := range e.Lines {
		line := &e.Lines[i]
		if err := line.Validate(); err != nil {
			return err
		}

		cur := line.LineCurrency()
		debits[cur] = debits[cur].Add(line.Debit.Amount)
		credits[cur] = credits[cur].Add(line.Credit.Amount)
	}

	for cur, debit := range debits {
		if !debit.Equal(credits[cur]) {
			return fmt.Errorf("%w: %s debits=%s credits=%s",
				ErrUnbalancedEntry, cur, debit.String(), credits[cur].String())
		}
	}

	return nil
}

// BuildReversal constructs the compensating entry for a posted entry: every
// line's debit and credit sides are swapped and the new entry links back to
// the original. The original entry is never mutated.
func (e *JournalEntry) BuildReversal(id, reason string, now time.Time) *JournalEntry {
	lines := make([]JournalEntryLine, 0, len(e.Lines))
	for _, l := range e.Lines {
		lines = append(lines, JournalEntryLine{
			EntryID:     id,
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       l.Credit,
			Credit:      l.Debit,
		})
	}

	return &JournalEntry{
		ID:          id,
		Reference:   "REV-" + e.Reference,
		Description: reason,
		Lines:       lines,
		State:       EntryStatePending,
		ReversalOf:  e.ID,
		CreatedAt:   now,
	}
}

// DebitLine builds a line debiting the account, with a zero credit
// placeholder of the same currency.
func DebitLine(accountID, description string, amount Money) JournalEntryLine {
	return JournalEntryLine{
		AccountID:   accountID,
		Description: description,
		Debit:       amount,
		Credit:      Zero(amount.Currency),
	}
}

// CreditLine builds a line crediting the account, with a zero debit
// placeholder of the same currency.
func CreditLine(accountID, description string, amount Money) JournalEntryLine {
	return JournalEntryLine{
		AccountID:   accountID,
		Description: description,
		Debit:       Zero(amount.Currency),
		Credit:      amount,
	}
}
