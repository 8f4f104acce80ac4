package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the loan lifecycle state. The lifecycle itself is owned by an
// external collaborator; the interest engine only consumes and advances it.
type LoanStatus string

const (
	LoanStatusOriginated LoanStatus = "originated"
	LoanStatusDisbursed  LoanStatus = "disbursed"
	LoanStatusActive     LoanStatus = "active"
	LoanStatusPaidOff    LoanStatus = "paid_off"
	LoanStatusDefaulted  LoanStatus = "defaulted"
	LoanStatusWrittenOff LoanStatus = "written_off"
	LoanStatusCancelled  LoanStatus = "cancelled"
)

var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusOriginated: {LoanStatusDisbursed, LoanStatusCancelled},
	LoanStatusDisbursed:  {LoanStatusActive, LoanStatusCancelled},
	LoanStatusActive:     {LoanStatusPaidOff, LoanStatusDefaulted},
	LoanStatusDefaulted:  {LoanStatusActive, LoanStatusWrittenOff},
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Terminal states (PaidOff, WrittenOff, Cancelled) have no exits.
func (s LoanStatus) CanTransition(next LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s LoanStatus) Terminal() bool {
	return len(loanTransitions[s]) == 0
}

// PaymentFrequency is the schedule cadence of a loan.
type PaymentFrequency string

const (
	FrequencyMonthly   PaymentFrequency = "monthly"
	FrequencyQuarterly PaymentFrequency = "quarterly"
	FrequencyAnnually  PaymentFrequency = "annually"
)

// PeriodsPerYear returns the number of payment periods in a year.
func (f PaymentFrequency) PeriodsPerYear() int {
	switch f {
	case FrequencyQuarterly:
		return 4
	case FrequencyAnnually:
		return 1
	default:
		return 12
	}
}

// AddPeriod advances a due date by one period.
func (f PaymentFrequency) AddPeriod(t time.Time) time.Time {
	switch f {
	case FrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	case FrequencyAnnually:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// Loan carries the terms and running state the interest engine operates on.
// CustomerAccountID is the deposit account payments are drawn from;
// PrincipalAccountID is the ledger account holding the outstanding principal.
type Loan struct {
	ID                 string
	Reference          string
	CustomerAccountID  string
	PrincipalAccountID string
	Principal          Money
	RemainingBalance   Money
	AnnualRate         decimal.Decimal
	TermMonths         int
	Frequency          PaymentFrequency
	Status             LoanStatus
	FirstPaymentDate   time.Time
	LastPaymentDate    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Transition validates and applies a status change.
func (l *Loan) Transition(next LoanStatus) error {
	if !l.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidLoanTransition, l.Status, next)
	}
	l.Status = next
	return nil
}

// AcceptsPayments reports whether the loan may receive payments.
func (l *Loan) AcceptsPayments() bool {
	return l.Status == LoanStatusActive || l.Status == LoanStatusDisbursed
}

// ScheduleLine is one row of an amortization schedule. Schedules are derived
// deterministically from loan terms and are not a persisted source of truth.
type ScheduleLine struct {
	PaymentNumber      int
	DueDate            time.Time
	PaymentAmount      Money
	PrincipalComponent Money
	InterestComponent  Money
	RemainingBalance   Money
}
