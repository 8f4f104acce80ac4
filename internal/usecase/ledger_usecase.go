package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
)

// LedgerUseCase implements the general ledger: balanced journal entries,
// posting, reversal, and derived balances.
type LedgerUseCase struct {
	txManager   TransactionManager
	journalRepo JournalRepository
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	audit       *AuditUseCase
	cache       Cache
	idGen       IDGenerator
	metrics     *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase. cache may be nil, in which
// case every balance read replays the journal. metrics may be nil.
func NewLedgerUseCase(
	txManager TransactionManager,
	journalRepo JournalRepository,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	audit *AuditUseCase,
	cache Cache,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:   txManager,
		journalRepo: journalRepo,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		audit:       audit,
		cache:       cache,
		idGen:       idGen,
		metrics:     metrics,
	}
}

// CreateAccountInput represents input for creating a ledger account.
type CreateAccountInput struct {
	Name     string
	Type     domain.AccountType
	Currency domain.Currency
	ActorID  string
}

// CreateAccount adds an account to the chart of accounts.
func (uc *LedgerUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if _, err := domain.ParseAccountType(string(input.Type)); err != nil {
		return nil, err
	}
	if !input.Currency.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCurrency, input.Currency)
	}

	account := &domain.Account{
		ID:        uc.idGen.Generate(),
		Name:      input.Name,
		Type:      input.Type,
		Currency:  input.Currency,
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	_, err := uc.audit.Append(ctx, AppendInput{
		EventType:  domain.AuditEventAccountCreated,
		EntityType: domain.AggregateTypeAccount,
		EntityID:   account.ID,
		ActorID:    input.ActorID,
		Metadata:   map[string]any{"name": account.Name, "type": string(account.Type)},
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *LedgerUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// CreateEntryInput represents input for creating a journal entry.
type CreateEntryInput struct {
	Reference   string
	Description string
	Lines       []domain.JournalEntryLine
	ActorID     string
}

// CreateEntry validates and persists a pending journal entry. The entry is
// invisible to balance computation until posted.
func (uc *LedgerUseCase) CreateEntry(ctx context.Context, input CreateEntryInput) (*domain.JournalEntry, error) {
	entry := &domain.JournalEntry{
		ID:          uc.idGen.Generate(),
		Reference:   input.Reference,
		Description: input.Description,
		Lines:       input.Lines,
		State:       domain.EntryStatePending,
		CreatedAt:   time.Now().UTC(),
	}
	for i := range entry.Lines {
		entry.Lines[i].ID = uc.idGen.Generate()
		entry.Lines[i].EntryID = entry.ID
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	for i := range entry.Lines {
		if _, err := uc.accountRepo.GetByID(ctx, entry.Lines[i].AccountID); err != nil {
			return nil, err
		}
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.createEntryTx(ctx, tx, entry, input.ActorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return entry, nil
}

// createEntryTx persists an entry and its creation audit record inside tx.
func (uc *LedgerUseCase) createEntryTx(ctx context.Context, tx Transaction, entry *domain.JournalEntry, actorID string) error {
	if err := uc.journalRepo.CreateEntry(ctx, tx, entry); err != nil {
		return err
	}

	_, err := uc.audit.AppendTx(ctx, tx, AppendInput{
		EventType:  domain.AuditEventEntryCreated,
		EntityType: domain.AggregateTypeJournalEntry,
		EntityID:   entry.ID,
		ActorID:    actorID,
		Metadata: map[string]any{
			"reference": entry.Reference,
			"lines":     len(entry.Lines),
		},
	})
	return err
}

// PostEntry transitions a pending entry to posted, making it authoritative
// for balance computation. Posting is the only visibility boundary.
func (uc *LedgerUseCase) PostEntry(ctx context.Context, id, actorID string) (*domain.JournalEntry, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := uc.postEntryTx(ctx, tx, id, actorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateBalances(ctx, entry)
	if uc.metrics != nil {
		uc.metrics.EntriesPosted.Inc()
	}

	return entry, nil
}

func (uc *LedgerUseCase) postEntryTx(ctx context.Context, tx Transaction, id, actorID string) (*domain.JournalEntry, error) {
	entry, err := uc.journalRepo.GetEntryForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if entry.State != domain.EntryStatePending {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyPosted, id)
	}

	now := time.Now().UTC()
	if err := uc.journalRepo.MarkPosted(ctx, tx, id, now); err != nil {
		return nil, err
	}
	entry.State = domain.EntryStatePosted
	entry.PostedAt = &now

	_, err = uc.audit.AppendTx(ctx, tx, AppendInput{
		EventType:  domain.AuditEventEntryPosted,
		EntityType: domain.AggregateTypeJournalEntry,
		EntityID:   entry.ID,
		ActorID:    actorID,
		Metadata:   map[string]any{"reference": entry.Reference},
	})
	if err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   entry.ID,
		AggregateType: domain.AggregateTypeJournalEntry,
		EventType:     domain.EventTypeEntryPosted,
		Payload: map[string]any{
			"entry_id":   entry.ID,
			"reference":  entry.Reference,
			"line_count": len(entry.Lines),
			"posted_at":  now.Format(time.RFC3339Nano),
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	return entry, nil
}

// ReverseEntry produces and posts a compensating entry for a posted entry.
// The original is never mutated beyond its reversal link.
func (uc *LedgerUseCase) ReverseEntry(ctx context.Context, id, reason, actorID string) (*domain.JournalEntry, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	original, err := uc.journalRepo.GetEntryForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if original.State != domain.EntryStatePosted {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrNotPosted, id, original.State)
	}

	now := time.Now().UTC()
	reversal := original.BuildReversal(uc.idGen.Generate(), reason, now)
	for i := range reversal.Lines {
		reversal.Lines[i].ID = uc.idGen.Generate()
	}

	if err := uc.journalRepo.CreateEntry(ctx, tx, reversal); err != nil {
		return nil, err
	}
	if err := uc.journalRepo.MarkPosted(ctx, tx, reversal.ID, now); err != nil {
		return nil, err
	}
	reversal.State = domain.EntryStatePosted
	reversal.PostedAt = &now

	if err := uc.journalRepo.MarkReversed(ctx, tx, original.ID, reversal.ID); err != nil {
		return nil, err
	}

	_, err = uc.audit.AppendTx(ctx, tx, AppendInput{
		EventType:  domain.AuditEventEntryReversed,
		EntityType: domain.AggregateTypeJournalEntry,
		EntityID:   original.ID,
		ActorID:    actorID,
		Metadata: map[string]any{
			"reversal_entry_id": reversal.ID,
			"reason":            reason,
		},
	})
	if err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   reversal.ID,
		AggregateType: domain.AggregateTypeJournalEntry,
		EventType:     domain.EventTypeEntryReversed,
		Payload: map[string]any{
			"reversal_entry_id": reversal.ID,
			"original_entry_id": original.ID,
			"reason":            reason,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateBalances(ctx, reversal)
	if uc.metrics != nil {
		uc.metrics.EntriesReversed.Inc()
	}

	return reversal, nil
}

// GetEntry retrieves a journal entry with its lines.
func (uc *LedgerUseCase) GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return uc.journalRepo.GetEntry(ctx, id)
}

// GetBalance derives an account balance by folding over posted journal lines
// up to asOf (nil means now). The replayed ledger is the single source of
// truth; the cache only serves current balances and is invalidated on every
// posting.
func (uc *LedgerUseCase) GetBalance(ctx context.Context, accountID string, currency domain.Currency, asOf *time.Time) (domain.Money, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return domain.Money{}, err
	}
	if !currency.Valid() {
		return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrInvalidCurrency, currency)
	}

	current := asOf == nil
	if current && uc.cache != nil {
		if cached, err := uc.cache.Get(ctx, balanceCacheKey(accountID, currency)); err == nil {
			if amount, derr := decimal.NewFromString(string(cached)); derr == nil {
				if uc.metrics != nil {
					uc.metrics.BalanceCacheHits.Inc()
				}
				return domain.Money{Amount: amount, Currency: currency}, nil
			}
		}
		if uc.metrics != nil {
			uc.metrics.BalanceCacheMisses.Inc()
		}
	}

	cutoff := time.Time{}
	if asOf != nil {
		cutoff = *asOf
	}

	debits, credits, err := uc.journalRepo.SumPostedLines(ctx, accountID, currency, cutoff)
	if err != nil {
		return domain.Money{}, err
	}

	balance := signedBalance(account.Type, debits, credits)
	money := domain.Money{Amount: balance, Currency: currency}

	if current && uc.cache != nil {
		_ = uc.cache.Set(ctx, balanceCacheKey(accountID, currency), []byte(balance.String()), BalanceCacheTTL)
	}

	return money, nil
}

// signedBalance applies the account-type sign convention: debit-normal
// accounts grow with debits, credit-normal accounts with credits.
func signedBalance(accountType domain.AccountType, debits, credits decimal.Decimal) decimal.Decimal {
	if accountType.DebitNormal() {
		return debits.Sub(credits)
	}
	return credits.Sub(debits)
}

func balanceCacheKey(accountID string, currency domain.Currency) string {
	return "balance:" + accountID + ":" + string(currency)
}

// invalidateBalances drops cached balances for every account the entry
// touches.
func (uc *LedgerUseCase) invalidateBalances(ctx context.Context, entry *domain.JournalEntry) {
	if uc.cache == nil {
		return
	}
	for i := range entry.Lines {
		line := &entry.Lines[i]
		_ = uc.cache.Delete(ctx, balanceCacheKey(line.AccountID, line.LineCurrency()))
	}
}
