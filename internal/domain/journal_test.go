package domain

import (
	"errors"
	"testing"
	"time"
)

func balancedEntry() *JournalEntry {
	amount := MustMoney("2500.00", USD)
	return &JournalEntry{
		ID:        "je-1",
		Reference: "DEP-001",
		Lines: []JournalEntryLine{
			DebitLine("acct-cash", "cash clearing", amount),
			CreditLine("acct-customer", "customer deposit", amount),
		},
		State:     EntryStatePending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestJournalEntryValidate(t *testing.T) {
	if err := balancedEntry().Validate(); err != nil {
		t.Fatalf("balanced entry should validate: %v", err)
	}
}

func TestJournalEntryValidateUnbalanced(t *testing.T) {
	e := balancedEntry()
	e.Lines[1].Credit = MustMoney("2400.00", USD)

	if err := e.Validate(); !errors.Is(err, ErrUnbalancedEntry) {
		t.Errorf("expected ErrUnbalancedEntry, got %v", err)
	}
}

func TestJournalEntryValidateTooFewLines(t *testing.T) {
	e := balancedEntry()
	e.Lines = e.Lines[:1]

	if err := e.Validate(); !errors.Is(err, ErrInsufficientLines) {
		t.Errorf("expected ErrInsufficientLines, got %v", err)
	}
}

func TestJournalEntryValidatePerCurrency(t *testing.T) {
	// Balanced within each currency, mixed in one entry.
	usd := MustMoney("100.00", USD)
	eur := MustMoney("80.00", EUR)
	e := &JournalEntry{
		ID: "je-multi",
		Lines: []JournalEntryLine{
			DebitLine("a1", "", usd),
			CreditLine("a2", "", usd),
			DebitLine("a3", "", eur),
			CreditLine("a4", "", eur),
		},
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("per-currency balanced entry should validate: %v", err)
	}

	// Unbalance only the EUR leg.
	e.Lines[3].Credit = MustMoney("79.00", EUR)
	if err := e.Validate(); !errors.Is(err, ErrUnbalancedEntry) {
		t.Errorf("expected ErrUnbalancedEntry, got %v", err)
	}
}

func TestJournalEntryLineBothSides(t *testing.T) {
	amount := MustMoney("10.00", USD)
	line := JournalEntryLine{
		AccountID: "a1",
		Debit:     amount,
		Credit:    amount,
	}
	if err := line.Validate(); !errors.Is(err, ErrInvalidLine) {
		t.Errorf("expected ErrInvalidLine for double-sided line, got %v", err)
	}

	line = JournalEntryLine{
		AccountID: "a1",
		Debit:     Zero(USD),
		Credit:    Zero(USD),
	}
	if err := line.Validate(); !errors.Is(err, ErrInvalidLine) {
		t.Errorf("expected ErrInvalidLine for zero-sided line, got %v", err)
	}
}

func TestBuildReversalSwapsSides(t *testing.T) {
	original := balancedEntry()
	now := time.Now().UTC()

	rev := original.BuildReversal("je-2", "operator error", now)

	if rev.ReversalOf != original.ID {
		t.Errorf("reversal should link to original, got %q", rev.ReversalOf)
	}
	if err := rev.Validate(); err != nil {
		t.Fatalf("reversal should be balanced: %v", err)
	}

	for i, l := range rev.Lines {
		if !l.Debit.Equal(original.Lines[i].Credit) || !l.Credit.Equal(original.Lines[i].Debit) {
			t.Errorf("line %d sides not swapped", i)
		}
	}

	if original.State != EntryStatePending {
		t.Error("original entry must not be mutated")
	}
}
