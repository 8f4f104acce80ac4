package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// JournalRepository implements usecase.JournalRepository. Journal entries and
// their lines are append-only; the only mutations are the pending->posted and
// posted->reversed state changes.
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

// CreateEntry inserts an entry and its lines within a transaction.
func (r *JournalRepository) CreateEntry(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	db := conn(tx)

	entryQuery := `
		INSERT INTO journal_entries (id, reference, description, state, reversal_of, created_at, posted_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`

	_, err := db.Exec(ctx, entryQuery,
		entry.ID,
		entry.Reference,
		entry.Description,
		string(entry.State),
		entry.ReversalOf,
		timeToPgTimestamptz(entry.CreatedAt),
		timePtrToPgTimestamptz(entry.PostedAt),
	)
	if err != nil {
		return err
	}

	lineQuery := `
		INSERT INTO journal_lines (id, entry_id, account_id, description, debit, credit, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i := range entry.Lines {
		line := &entry.Lines[i]
		_, err := db.Exec(ctx, lineQuery,
			line.ID,
			line.EntryID,
			line.AccountID,
			line.Description,
			decimalToNumeric(line.Debit.Amount),
			decimalToNumeric(line.Credit.Amount),
			string(line.LineCurrency()),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetEntry retrieves an entry with its lines.
func (r *JournalRepository) GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return r.getEntry(ctx, r.pool, id, false)
}

// GetEntryForUpdate retrieves an entry with a FOR UPDATE lock on the entry
// row, serializing concurrent post and reverse attempts.
func (r *JournalRepository) GetEntryForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error) {
	return r.getEntry(ctx, conn(tx), id, true)
}

func (r *JournalRepository) getEntry(ctx context.Context, db dbtx, id string, forUpdate bool) (*domain.JournalEntry, error) {
	query := `
		SELECT id, reference, description, state,
		       COALESCE(reversal_of, ''), COALESCE(reversed_by, ''),
		       created_at, posted_at
		FROM journal_entries
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		entry    domain.JournalEntry
		state    string
		postedAt pgtype.Timestamptz
	)

	err := db.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.Reference,
		&entry.Description,
		&state,
		&entry.ReversalOf,
		&entry.ReversedBy,
		&entry.CreatedAt,
		&postedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}

		return nil, err
	}

	entry.State = domain.EntryState(state)
	if postedAt.Valid {
		t := postedAt.Time
		entry.PostedAt = &t
	}

	lines, err := r.loadLines(ctx, db, id)
	if err != nil {
		return nil, err
	}
	entry.Lines = lines

	return &entry, nil
}

func (r *JournalRepository) loadLines(ctx context.Context, db dbtx, entryID string) ([]domain.JournalEntryLine, error) {
	query := `
		SELECT id, entry_id, account_id, description, debit, credit, currency
		FROM journal_lines
		WHERE entry_id = $1
		ORDER BY id
	`

	rows, err := db.Query(ctx, query, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.JournalEntryLine
	for rows.Next() {
		var (
			line         domain.JournalEntryLine
			debit        pgtype.Numeric
			credit       pgtype.Numeric
			currencyCode string
		)

		if err := rows.Scan(
			&line.ID,
			&line.EntryID,
			&line.AccountID,
			&line.Description,
			&debit,
			&credit,
			&currencyCode,
		); err != nil {
			return nil, err
		}

		currency, err := domain.ParseCurrency(currencyCode)
		if err != nil {
			return nil, err
		}
		line.Debit = domain.Money{Amount: numericToDecimal(debit), Currency: currency}
		line.Credit = domain.Money{Amount: numericToDecimal(credit), Currency: currency}

		lines = append(lines, line)
	}

	return lines, rows.Err()
}

// MarkPosted transitions a pending entry to posted.
func (r *JournalRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	query := `
		UPDATE journal_entries
		SET state = $2, posted_at = $3
		WHERE id = $1
	`

	tag, err := conn(tx).Exec(ctx, query, id, string(domain.EntryStatePosted), timeToPgTimestamptz(postedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// MarkReversed transitions a posted entry to reversed and links the reversal.
func (r *JournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id, reversalID string) error {
	query := `
		UPDATE journal_entries
		SET state = $2, reversed_by = $3
		WHERE id = $1
	`

	tag, err := conn(tx).Exec(ctx, query, id, string(domain.EntryStateReversed), reversalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// SumPostedLines folds debit and credit totals over posted lines for one
// account and currency. A zero asOf means no upper bound.
func (r *JournalRepository) SumPostedLines(ctx context.Context, accountID string, currency domain.Currency, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return sumPostedLines(ctx, r.pool, accountID, currency, asOf)
}

// SumPostedLinesTx is SumPostedLines inside an open transaction.
func (r *JournalRepository) SumPostedLinesTx(ctx context.Context, tx usecase.Transaction, accountID string, currency domain.Currency, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return sumPostedLines(ctx, conn(tx), accountID, currency, asOf)
}

func sumPostedLines(ctx context.Context, db dbtx, accountID string, currency domain.Currency, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE l.account_id = $1
		  AND l.currency = $2
		  AND e.posted_at IS NOT NULL
		  AND ($3::timestamptz IS NULL OR e.posted_at <= $3)
	`

	var cutoff pgtype.Timestamptz
	if !asOf.IsZero() {
		cutoff = timeToPgTimestamptz(asOf)
	}

	var debits, credits pgtype.Numeric
	err := db.QueryRow(ctx, query, accountID, string(currency), cutoff).Scan(&debits, &credits)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return numericToDecimal(debits), numericToDecimal(credits), nil
}

// LedgerTotals returns ledger-wide posted debit and credit totals.
func (r *JournalRepository) LedgerTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.posted_at IS NOT NULL
	`

	var debits, credits pgtype.Numeric
	if err := r.pool.QueryRow(ctx, query).Scan(&debits, &credits); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return numericToDecimal(debits), numericToDecimal(credits), nil
}

// ListEntriesByAccount retrieves entries touching an account, with lines.
func (r *JournalRepository) ListEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.JournalEntry, error) {
	query := `
		SELECT DISTINCT e.id
		FROM journal_entries e
		JOIN journal_lines l ON l.entry_id = e.id
		WHERE l.account_id = $1
		ORDER BY e.id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]*domain.JournalEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := r.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
