package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
)

// DayCountBasis selects the denominator for simple daily accrual.
type DayCountBasis int

const (
	BasisActual365 DayCountBasis = 365
	BasisActual360 DayCountBasis = 360
)

// InterestUseCase implements accrual math, amortization schedules and loan
// payment application.
type InterestUseCase struct {
	txManager TransactionManager
	loanRepo  LoanRepository
	outbox    OutboxRepository
	audit     *AuditUseCase
	processor TransactionProcessor
	idGen     IDGenerator
	metrics   *metrics.Metrics
}

// NewInterestUseCase creates a new InterestUseCase. metrics may be nil.
func NewInterestUseCase(
	txManager TransactionManager,
	loanRepo LoanRepository,
	outbox OutboxRepository,
	audit *AuditUseCase,
	processor TransactionProcessor,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *InterestUseCase {
	return &InterestUseCase{
		txManager: txManager,
		loanRepo:  loanRepo,
		outbox:    outbox,
		audit:     audit,
		processor: processor,
		idGen:     idGen,
		metrics:   metrics,
	}
}

// CalculateAccrual computes simple interest for a number of elapsed days:
// principal * annualRate / basis * days. The amount accrues at full precision
// and is rounded once at the end, never per day.
func (uc *InterestUseCase) CalculateAccrual(principal domain.Money, annualRate decimal.Decimal, days int, basis DayCountBasis) (domain.Money, error) {
	if !principal.IsPositive() {
		return domain.Money{}, fmt.Errorf("%w: principal must be positive", domain.ErrInvalidTerms)
	}
	if annualRate.IsNegative() {
		return domain.Money{}, fmt.Errorf("%w: rate must not be negative", domain.ErrInvalidTerms)
	}
	if days < 0 {
		return domain.Money{}, fmt.Errorf("%w: days must not be negative", domain.ErrInvalidTerms)
	}
	if basis != BasisActual365 && basis != BasisActual360 {
		return domain.Money{}, fmt.Errorf("%w: unsupported day-count basis %d", domain.ErrInvalidTerms, basis)
	}

	accrued := principal.Amount.
		Mul(annualRate).
		Mul(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(int64(basis)))

	return domain.Money{Amount: accrued, Currency: principal.Currency}.Round(), nil
}

// CalculateCompound computes compound interest earned over whole years:
// principal * (1 + annualRate/periodsPerYear)^(periodsPerYear*years) minus
// the principal, rounded once.
func (uc *InterestUseCase) CalculateCompound(principal domain.Money, annualRate decimal.Decimal, periodsPerYear, years int) (domain.Money, error) {
	if !principal.IsPositive() {
		return domain.Money{}, fmt.Errorf("%w: principal must be positive", domain.ErrInvalidTerms)
	}
	if annualRate.IsNegative() || periodsPerYear <= 0 || years <= 0 {
		return domain.Money{}, fmt.Errorf("%w: rate, periods and years must be positive", domain.ErrInvalidTerms)
	}

	periodRate := annualRate.Div(decimal.NewFromInt(int64(periodsPerYear)))
	periods := int64(periodsPerYear) * int64(years)

	factor := decimal.NewFromInt(1).Add(periodRate).Pow(decimal.NewFromInt(periods))
	final := principal.Amount.Mul(factor)

	return domain.Money{Amount: final.Sub(principal.Amount), Currency: principal.Currency}.Round(), nil
}

// ScheduleTerms are the inputs of an amortization schedule.
type ScheduleTerms struct {
	Principal        domain.Money
	AnnualRate       decimal.Decimal
	TermMonths       int
	FirstPaymentDate time.Time
	Frequency        domain.PaymentFrequency
}

func (t *ScheduleTerms) periods() (int, error) {
	ppy := t.Frequency.PeriodsPerYear()
	if t.TermMonths*ppy%12 != 0 {
		return 0, fmt.Errorf("%w: term of %d months does not divide into %s periods",
			domain.ErrInvalidTerms, t.TermMonths, t.Frequency)
	}
	return t.TermMonths * ppy / 12, nil
}

// BuildAmortizationSchedule produces the level-payment schedule for the
// terms. The payment is the standard annuity amount
// PMT = P * r(1+r)^n / ((1+r)^n - 1); a zero rate falls back to equal
// principal division. Each period's interest is charged on the remaining
// balance and the final period zeroes out any residual cent of rounding
// drift, so the principal components always sum to exactly the principal.
func (uc *InterestUseCase) BuildAmortizationSchedule(terms ScheduleTerms) ([]domain.ScheduleLine, error) {
	if !terms.Principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", domain.ErrInvalidTerms)
	}
	if terms.AnnualRate.IsNegative() {
		return nil, fmt.Errorf("%w: rate must not be negative", domain.ErrInvalidTerms)
	}
	if terms.TermMonths <= 0 {
		return nil, fmt.Errorf("%w: term must be positive", domain.ErrInvalidTerms)
	}

	n, err := terms.periods()
	if err != nil {
		return nil, err
	}

	currency := terms.Principal.Currency
	principal := terms.Principal.Round().Amount
	periodRate := terms.AnnualRate.Div(decimal.NewFromInt(int64(terms.Frequency.PeriodsPerYear())))

	payment := levelPayment(principal, periodRate, n, currency)

	schedule := make([]domain.ScheduleLine, 0, n)
	balance := principal
	due := terms.FirstPaymentDate

	for i := 1; i <= n; i++ {
		interest := domain.Money{Amount: balance.Mul(periodRate), Currency: currency}.Round().Amount

		var principalPart, paymentAmount decimal.Decimal
		if i == n {
			// Force the final period to clear the balance exactly.
			principalPart = balance
			paymentAmount = principalPart.Add(interest)
		} else {
			principalPart = payment.Sub(interest)
			if principalPart.GreaterThan(balance) {
				principalPart = balance
			}
			paymentAmount = principalPart.Add(interest)
		}

		balance = balance.Sub(principalPart)

		schedule = append(schedule, domain.ScheduleLine{
			PaymentNumber:      i,
			DueDate:            due,
			PaymentAmount:      domain.Money{Amount: paymentAmount, Currency: currency},
			PrincipalComponent: domain.Money{Amount: principalPart, Currency: currency},
			InterestComponent:  domain.Money{Amount: interest, Currency: currency},
			RemainingBalance:   domain.Money{Amount: balance, Currency: currency},
		})

		due = terms.Frequency.AddPeriod(due)
	}

	if !balance.IsZero() {
		return nil, fmt.Errorf("%w: residual balance %s", domain.ErrRoundingReconciliation, balance.String())
	}

	return schedule, nil
}

// levelPayment computes the per-period annuity payment, rounded half-up at
// the currency exponent.
func levelPayment(principal, periodRate decimal.Decimal, n int, currency domain.Currency) decimal.Decimal {
	if periodRate.IsZero() {
		return domain.Money{
			Amount:   principal.Div(decimal.NewFromInt(int64(n))),
			Currency: currency,
		}.Round().Amount
	}

	one := decimal.NewFromInt(1)
	factor := one.Add(periodRate).Pow(decimal.NewFromInt(int64(n)))
	raw := principal.Mul(periodRate).Mul(factor).Div(factor.Sub(one))

	return domain.Money{Amount: raw, Currency: currency}.Round().Amount
}

// PaymentResult is the outcome of applying a loan payment.
type PaymentResult struct {
	LoanID            string
	TransactionID     string
	AppliedAmount     domain.Money
	InterestPortion   domain.Money
	PrincipalPortion  domain.Money
	RemainingBalance  domain.Money
	InterestShortfall domain.Money
	Applied           bool
	Replayed          bool
	PaidOff           bool
}

// ApplyPayment splits a payment interest-first, posts it through the
// transaction processor and advances the loan. A payment that does not cover
// the period's accrued interest is reported without being applied, so the
// caller can run late-fee or grace-period policy. A resubmission under an
// already-used idempotency key reports the original application and leaves
// the loan untouched.
func (uc *InterestUseCase) ApplyPayment(ctx context.Context, loanID string, amount domain.Money, date time.Time, idempotencyKey string) (*PaymentResult, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	loan, err := uc.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.AcceptsPayments() {
		return nil, fmt.Errorf("%w: status %s", domain.ErrLoanNotPayable, loan.Status)
	}
	if amount.Currency != loan.RemainingBalance.Currency {
		return nil, fmt.Errorf("%w: payment %s vs loan %s",
			domain.ErrCurrencyMismatch, amount.Currency, loan.RemainingBalance.Currency)
	}

	interest := uc.periodInterest(loan)

	if cmp := amount.Amount.Cmp(interest.Amount); cmp < 0 {
		shortfall, _ := interest.Sub(amount)
		return &PaymentResult{
			LoanID:            loan.ID,
			InterestPortion:   interest,
			InterestShortfall: shortfall,
			RemainingBalance:  loan.RemainingBalance,
			Applied:           false,
		}, nil
	}

	principalPart, _ := amount.Sub(interest)
	if principalPart.Amount.GreaterThan(loan.RemainingBalance.Amount) {
		principalPart = loan.RemainingBalance
	}
	applied, _ := interest.Add(principalPart)

	result, err := uc.processor.Process(ctx, &TransactionRequest{
		Type:           domain.TransactionTypeInterest,
		FromAccountID:  loan.CustomerAccountID,
		ToAccountID:    loan.PrincipalAccountID,
		Amount:         applied,
		Description:    fmt.Sprintf("loan payment %s", loan.Reference),
		Reference:      fmt.Sprintf("LOAN-%s-%s", loan.Reference, date.Format("20060102")),
		IdempotencyKey: idempotencyKey,
		Metadata: map[string]any{
			"loan_id":          loan.ID,
			"interest_amount":  interest.Amount.String(),
			"principal_amount": principalPart.Amount.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	// The key was already used: the posting and the loan advance happened on
	// the original submission, so the recomputed split above is stale and
	// must not be applied a second time.
	if result.Replayed {
		return uc.replayedPayment(ctx, loan.ID, result)
	}

	newBalance, _ := loan.RemainingBalance.Sub(principalPart)
	paidOff := newBalance.IsZero()

	if err := uc.advanceLoan(ctx, loan, newBalance, result.TransactionID, interest, principalPart, date, paidOff); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.LoanPaymentsApplied.Inc()
		if paidOff {
			uc.metrics.LoansPaidOff.Inc()
		}
	}

	return &PaymentResult{
		LoanID:           loan.ID,
		TransactionID:    result.TransactionID,
		AppliedAmount:    applied,
		InterestPortion:  interest,
		PrincipalPortion: principalPart,
		RemainingBalance: newBalance,
		Applied:          true,
		PaidOff:          paidOff,
	}, nil
}

// replayedPayment reports a payment that already went through under the same
// idempotency key. The loan advanced when the original posting committed, so
// the row is re-read, never advanced again.
func (uc *InterestUseCase) replayedPayment(ctx context.Context, loanID string, result *TransactionResult) (*PaymentResult, error) {
	current, err := uc.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	applied := domain.Money{Amount: decimal.Zero, Currency: current.RemainingBalance.Currency}
	if amount, perr := decimal.NewFromString(result.Amount); perr == nil {
		applied = domain.Money{Amount: amount, Currency: result.Currency}
	}

	return &PaymentResult{
		LoanID:           current.ID,
		TransactionID:    result.TransactionID,
		AppliedAmount:    applied,
		RemainingBalance: current.RemainingBalance,
		Applied:          true,
		Replayed:         true,
		PaidOff:          current.Status == domain.LoanStatusPaidOff,
	}, nil
}

// periodInterest is the interest accrued for one payment period on the
// remaining balance.
func (uc *InterestUseCase) periodInterest(loan *domain.Loan) domain.Money {
	periodRate := loan.AnnualRate.Div(decimal.NewFromInt(int64(loan.Frequency.PeriodsPerYear())))
	return loan.RemainingBalance.Mul(periodRate).Round()
}

// advanceLoan updates the loan's balance and status atomically with its
// audit record and outbox event.
func (uc *InterestUseCase) advanceLoan(
	ctx context.Context,
	loan *domain.Loan,
	newBalance domain.Money,
	transactionID string,
	interest, principalPart domain.Money,
	date time.Time,
	paidOff bool,
) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	locked, err := uc.loanRepo.GetByIDForUpdate(ctx, tx, loan.ID)
	if err != nil {
		return err
	}

	status := locked.Status
	if status == domain.LoanStatusDisbursed {
		if err := locked.Transition(domain.LoanStatusActive); err != nil {
			return err
		}
		status = locked.Status
	}
	if paidOff {
		if err := locked.Transition(domain.LoanStatusPaidOff); err != nil {
			return err
		}
		status = locked.Status
	}

	if err := uc.loanRepo.UpdateAfterPayment(ctx, tx, loan.ID, newBalance, status, date); err != nil {
		return err
	}

	_, err = uc.audit.AppendTx(ctx, tx, AppendInput{
		EventType:  domain.AuditEventLoanPaymentApplied,
		EntityType: domain.AggregateTypeLoan,
		EntityID:   loan.ID,
		Metadata: map[string]any{
			"transaction_id":    transactionID,
			"interest_portion":  interest.Amount.String(),
			"principal_portion": principalPart.Amount.String(),
			"remaining_balance": newBalance.Amount.String(),
		},
	})
	if err != nil {
		return err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   loan.ID,
		AggregateType: domain.AggregateTypeLoan,
		EventType:     domain.EventTypeLoanPaymentApplied,
		Payload: map[string]any{
			"loan_id":           loan.ID,
			"transaction_id":    transactionID,
			"interest_portion":  interest.Amount.String(),
			"principal_portion": principalPart.Amount.String(),
			"remaining_balance": newBalance.Amount.String(),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.outbox.Create(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CreateLoan registers a loan in Originated status.
type CreateLoanInput struct {
	Reference          string
	CustomerAccountID  string
	PrincipalAccountID string
	Principal          domain.Money
	AnnualRate         decimal.Decimal
	TermMonths         int
	Frequency          domain.PaymentFrequency
	FirstPaymentDate   time.Time
}

// CreateLoan validates terms and persists a new loan.
func (uc *InterestUseCase) CreateLoan(ctx context.Context, input CreateLoanInput) (*domain.Loan, error) {
	if !input.Principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", domain.ErrInvalidTerms)
	}
	if input.AnnualRate.IsNegative() {
		return nil, fmt.Errorf("%w: rate must not be negative", domain.ErrInvalidTerms)
	}
	if input.TermMonths <= 0 {
		return nil, fmt.Errorf("%w: term must be positive", domain.ErrInvalidTerms)
	}

	now := time.Now().UTC()
	loan := &domain.Loan{
		ID:                 uc.idGen.Generate(),
		Reference:          input.Reference,
		CustomerAccountID:  input.CustomerAccountID,
		PrincipalAccountID: input.PrincipalAccountID,
		Principal:          input.Principal.Round(),
		RemainingBalance:   input.Principal.Round(),
		AnnualRate:         input.AnnualRate,
		TermMonths:         input.TermMonths,
		Frequency:          input.Frequency,
		Status:             domain.LoanStatusOriginated,
		FirstPaymentDate:   input.FirstPaymentDate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := uc.loanRepo.Create(ctx, loan); err != nil {
		return nil, err
	}

	return loan, nil
}

// GetLoan retrieves a loan by ID.
func (uc *InterestUseCase) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	return uc.loanRepo.GetByID(ctx, id)
}
