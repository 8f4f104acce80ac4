package domain

import (
	"errors"
	"testing"
	"time"
)

func TestLoanStatusTransitions(t *testing.T) {
	tests := []struct {
		from    LoanStatus
		to      LoanStatus
		allowed bool
	}{
		{LoanStatusOriginated, LoanStatusDisbursed, true},
		{LoanStatusOriginated, LoanStatusCancelled, true},
		{LoanStatusOriginated, LoanStatusActive, false},
		{LoanStatusDisbursed, LoanStatusActive, true},
		{LoanStatusActive, LoanStatusPaidOff, true},
		{LoanStatusActive, LoanStatusDefaulted, true},
		{LoanStatusDefaulted, LoanStatusActive, true},
		{LoanStatusDefaulted, LoanStatusWrittenOff, true},
		{LoanStatusPaidOff, LoanStatusActive, false},
		{LoanStatusWrittenOff, LoanStatusActive, false},
		{LoanStatusCancelled, LoanStatusDisbursed, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestLoanTransitionRejectsIllegalStep(t *testing.T) {
	loan := &Loan{Status: LoanStatusPaidOff}
	err := loan.Transition(LoanStatusActive)
	if !errors.Is(err, ErrInvalidLoanTransition) {
		t.Errorf("expected ErrInvalidLoanTransition, got %v", err)
	}
	if loan.Status != LoanStatusPaidOff {
		t.Error("status must not change on a rejected transition")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []LoanStatus{LoanStatusPaidOff, LoanStatusWrittenOff, LoanStatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if LoanStatusDefaulted.Terminal() {
		t.Error("defaulted is curable and not terminal")
	}
}

func TestPaymentFrequency(t *testing.T) {
	if got := FrequencyMonthly.PeriodsPerYear(); got != 12 {
		t.Errorf("monthly periods = %d, want 12", got)
	}
	if got := FrequencyQuarterly.PeriodsPerYear(); got != 4 {
		t.Errorf("quarterly periods = %d, want 4", got)
	}

	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	next := FrequencyMonthly.AddPeriod(start)
	if next.Before(start.AddDate(0, 0, 28)) {
		t.Errorf("AddPeriod moved less than a month: %s", next)
	}
}
