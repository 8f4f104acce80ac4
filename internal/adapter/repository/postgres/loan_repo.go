package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// LoanRepository implements usecase.LoanRepository.
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

// Create inserts a new loan.
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (
			id, reference, customer_account_id, principal_account_id,
			principal, remaining_balance, currency, annual_rate, term_months,
			frequency, status, first_payment_date, last_payment_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.pool.Exec(ctx, query,
		loan.ID,
		loan.Reference,
		loan.CustomerAccountID,
		loan.PrincipalAccountID,
		decimalToNumeric(loan.Principal.Amount),
		decimalToNumeric(loan.RemainingBalance.Amount),
		string(loan.Principal.Currency),
		decimalToNumeric(loan.AnnualRate),
		loan.TermMonths,
		string(loan.Frequency),
		string(loan.Status),
		timeToPgTimestamptz(loan.FirstPaymentDate),
		timePtrToPgTimestamptz(loan.LastPaymentDate),
		timeToPgTimestamptz(loan.CreatedAt),
		timeToPgTimestamptz(loan.UpdatedAt),
	)

	return err
}

// GetByID retrieves a loan by ID.
func (r *LoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	return getLoan(ctx, r.pool, id, false)
}

// GetByIDForUpdate retrieves a loan with a FOR UPDATE lock, serializing
// concurrent payment applications.
func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Loan, error) {
	return getLoan(ctx, conn(tx), id, true)
}

func getLoan(ctx context.Context, db dbtx, id string, forUpdate bool) (*domain.Loan, error) {
	query := `
		SELECT id, reference, customer_account_id, principal_account_id,
		       principal, remaining_balance, currency, annual_rate, term_months,
		       frequency, status, first_payment_date, last_payment_date,
		       created_at, updated_at
		FROM loans
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		loan            domain.Loan
		principal       pgtype.Numeric
		balance         pgtype.Numeric
		currencyCode    string
		annualRate      pgtype.Numeric
		frequency       string
		status          string
		lastPaymentDate pgtype.Timestamptz
	)

	err := db.QueryRow(ctx, query, id).Scan(
		&loan.ID,
		&loan.Reference,
		&loan.CustomerAccountID,
		&loan.PrincipalAccountID,
		&principal,
		&balance,
		&currencyCode,
		&annualRate,
		&loan.TermMonths,
		&frequency,
		&status,
		&loan.FirstPaymentDate,
		&lastPaymentDate,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}

		return nil, err
	}

	currency, err := domain.ParseCurrency(currencyCode)
	if err != nil {
		return nil, err
	}

	loan.Principal = domain.Money{Amount: numericToDecimal(principal), Currency: currency}
	loan.RemainingBalance = domain.Money{Amount: numericToDecimal(balance), Currency: currency}
	loan.AnnualRate = numericToDecimal(annualRate)
	loan.Frequency = domain.PaymentFrequency(frequency)
	loan.Status = domain.LoanStatus(status)
	if lastPaymentDate.Valid {
		t := lastPaymentDate.Time
		loan.LastPaymentDate = &t
	}

	return &loan, nil
}

// UpdateAfterPayment advances the loan's balance and status after a payment.
func (r *LoanRepository) UpdateAfterPayment(ctx context.Context, tx usecase.Transaction, id string, balance domain.Money, status domain.LoanStatus, paidAt time.Time) error {
	query := `
		UPDATE loans
		SET remaining_balance = $2, status = $3, last_payment_date = $4, updated_at = now()
		WHERE id = $1
	`

	tag, err := conn(tx).Exec(ctx, query,
		id,
		decimalToNumeric(balance.Amount),
		string(status),
		timeToPgTimestamptz(paidAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanNotFound
	}

	return nil
}
