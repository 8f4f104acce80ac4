package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
)

// SystemAccounts names the ledger accounts the processor posts against when
// a transaction has only one customer-side leg.
type SystemAccounts struct {
	CashClearingID   string
	FeeIncomeID      string
	InterestIncomeID string
}

// ProcessorUseCase is the sole money-movement entry point. It turns a
// transaction request into exactly one posted journal entry, atomically with
// the transaction record, the audit appends and the outbox event.
type ProcessorUseCase struct {
	txManager   TransactionManager
	journalRepo JournalRepository
	accountRepo AccountRepository
	txnRepo     TransactionRepository
	outboxRepo  OutboxRepository
	audit       *AuditUseCase
	cache       Cache
	compliance  ComplianceChecker
	retrier     Retrier
	idGen       IDGenerator
	metrics     *metrics.Metrics
	system      SystemAccounts
}

// NewProcessorUseCase creates a new ProcessorUseCase. cache, retrier and
// metrics may be nil.
func NewProcessorUseCase(
	txManager TransactionManager,
	journalRepo JournalRepository,
	accountRepo AccountRepository,
	txnRepo TransactionRepository,
	outboxRepo OutboxRepository,
	audit *AuditUseCase,
	cache Cache,
	compliance ComplianceChecker,
	retrier Retrier,
	idGen IDGenerator,
	metrics *metrics.Metrics,
	system SystemAccounts,
) *ProcessorUseCase {
	return &ProcessorUseCase{
		txManager:   txManager,
		journalRepo: journalRepo,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		outboxRepo:  outboxRepo,
		audit:       audit,
		cache:       cache,
		compliance:  compliance,
		retrier:     retrier,
		idGen:       idGen,
		metrics:     metrics,
		system:      system,
	}
}

// TransactionRequest is a money-movement request submitted by a caller.
type TransactionRequest struct {
	Type           domain.TransactionType
	FromAccountID  string
	ToAccountID    string
	Amount         domain.Money
	Description    string
	Reference      string
	IdempotencyKey string
	ActorID        string
	Metadata       map[string]any
}

// TransactionResult is the outcome of a processed request. Replays under the
// same idempotency key return identical results.
type TransactionResult struct {
	TransactionID  string                   `json:"transaction_id"`
	Status         domain.TransactionStatus `json:"status"`
	Type           domain.TransactionType   `json:"type"`
	Amount         string                   `json:"amount"`
	Currency       domain.Currency          `json:"currency"`
	Reference      string                   `json:"reference"`
	JournalEntryID string                   `json:"journal_entry_id"`
	CreatedAt      time.Time                `json:"created_at"`

	// Replayed reports that the result was answered from an earlier
	// submission with the same idempotency key, so this call posted nothing
	// new. It is derived per call and never stored.
	Replayed bool `json:"-"`
}

func (uc *ProcessorUseCase) validate(req *TransactionRequest) error {
	if _, err := domain.ParseTransactionType(string(req.Type)); err != nil {
		return err
	}
	if req.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency key is required", domain.ErrInvalidAmount)
	}
	if !req.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if !req.Amount.Currency.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidCurrency, req.Amount.Currency)
	}

	switch req.Type {
	case domain.TransactionTypeDeposit:
		if req.ToAccountID == "" {
			return fmt.Errorf("%w: deposit requires a target account", domain.ErrAccountNotFound)
		}
	case domain.TransactionTypeWithdrawal, domain.TransactionTypeFee:
		if req.FromAccountID == "" {
			return fmt.Errorf("%w: %s requires a source account", domain.ErrAccountNotFound, req.Type)
		}
	case domain.TransactionTypeTransfer:
		if req.FromAccountID == "" || req.ToAccountID == "" {
			return fmt.Errorf("%w: transfer requires both accounts", domain.ErrAccountNotFound)
		}
		if req.FromAccountID == req.ToAccountID {
			return domain.ErrSameAccount
		}
	case domain.TransactionTypeInterest:
		if req.ToAccountID == "" {
			return fmt.Errorf("%w: interest requires a target account", domain.ErrAccountNotFound)
		}
	}

	return nil
}

// buildLines constructs the balanced journal lines for the request. The
// transaction types form a closed set; every variant is handled here.
func (uc *ProcessorUseCase) buildLines(req *TransactionRequest) ([]domain.JournalEntryLine, error) {
	amount := req.Amount.Round()
	desc := req.Description

	switch req.Type {
	case domain.TransactionTypeDeposit:
		return []domain.JournalEntryLine{
			domain.DebitLine(uc.system.CashClearingID, desc, amount),
			domain.CreditLine(req.ToAccountID, desc, amount),
		}, nil

	case domain.TransactionTypeWithdrawal:
		return []domain.JournalEntryLine{
			domain.DebitLine(req.FromAccountID, desc, amount),
			domain.CreditLine(uc.system.CashClearingID, desc, amount),
		}, nil

	case domain.TransactionTypeTransfer:
		// A transfer is one entry with lines on both accounts, so it can
		// never partially apply.
		return []domain.JournalEntryLine{
			domain.DebitLine(req.FromAccountID, desc, amount),
			domain.CreditLine(req.ToAccountID, desc, amount),
		}, nil

	case domain.TransactionTypeFee:
		return []domain.JournalEntryLine{
			domain.DebitLine(req.FromAccountID, desc, amount),
			domain.CreditLine(uc.system.FeeIncomeID, desc, amount),
		}, nil

	case domain.TransactionTypeInterest:
		return uc.buildInterestLines(req, amount)
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTransactionType, req.Type)
}

// buildInterestLines covers the two interest shapes: a loan payment split
// into principal and interest portions (metadata carries the split), or a
// plain accrual against the target account.
func (uc *ProcessorUseCase) buildInterestLines(req *TransactionRequest, amount domain.Money) ([]domain.JournalEntryLine, error) {
	interestPortion, hasInterest := metadataMoney(req.Metadata, "interest_amount", amount.Currency)
	principalPortion, hasPrincipal := metadataMoney(req.Metadata, "principal_amount", amount.Currency)

	if hasInterest && hasPrincipal && req.FromAccountID != "" {
		total, err := interestPortion.Add(principalPortion)
		if err != nil {
			return nil, err
		}
		if !total.Equal(amount) {
			return nil, fmt.Errorf("%w: split %s does not match amount %s",
				domain.ErrUnbalancedEntry, total, amount)
		}

		lines := []domain.JournalEntryLine{
			domain.DebitLine(req.FromAccountID, req.Description, amount),
		}
		if principalPortion.IsPositive() {
			lines = append(lines, domain.CreditLine(req.ToAccountID, "principal", principalPortion))
		}
		if interestPortion.IsPositive() {
			lines = append(lines, domain.CreditLine(uc.system.InterestIncomeID, "interest", interestPortion))
		}
		return lines, nil
	}

	return []domain.JournalEntryLine{
		domain.DebitLine(req.ToAccountID, req.Description, amount),
		domain.CreditLine(uc.system.InterestIncomeID, req.Description, amount),
	}, nil
}

func metadataMoney(metadata map[string]any, key string, currency domain.Currency) (domain.Money, bool) {
	raw, ok := metadata[key].(string)
	if !ok {
		return domain.Money{}, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.Money{}, false
	}
	m, err := domain.NewMoney(amount, currency)
	if err != nil {
		return domain.Money{}, false
	}
	return m, true
}

// Process applies one money-movement request end to end: idempotency check,
// compliance check, journal construction, and the atomic create+post+record
// unit. A request that fails after the compliance step leaves no ledger
// trace.
func (uc *ProcessorUseCase) Process(ctx context.Context, req *TransactionRequest) (*TransactionResult, error) {
	if err := uc.validate(req); err != nil {
		return nil, err
	}
	start := time.Now()

	// (a) Idempotency: replay a prior result unchanged, no new mutation.
	if result, err := uc.replay(ctx, req.IdempotencyKey); result != nil || err != nil {
		return result, err
	}

	// (b) Compliance runs before the write transaction so a slow or
	// unavailable checker can never hold storage locks.
	verdict, err := uc.compliance.Check(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("compliance check failed: %w", err)
	}
	if uc.metrics != nil {
		uc.metrics.ComplianceVerdicts.WithLabelValues(string(verdict)).Inc()
	}

	switch verdict {
	case ComplianceBlock:
		if err := uc.recordBlocked(ctx, req); err != nil {
			return nil, err
		}
		if uc.metrics != nil {
			uc.metrics.TransactionsProcessed.WithLabelValues(string(req.Type), string(domain.TransactionStatusFailed)).Inc()
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrComplianceBlocked, req.Reference)
	case ComplianceReview:
		if req.Metadata == nil {
			req.Metadata = map[string]any{}
		}
		req.Metadata["compliance_review"] = true
	}

	// (c) Journal construction per variant.
	lines, err := uc.buildLines(req)
	if err != nil {
		return nil, err
	}

	// (d) Atomic unit: entry create+post, transaction record, audit appends
	// and outbox event all commit together or not at all.
	var result *TransactionResult
	operation := func() error {
		var opErr error
		result, opErr = uc.processOnce(ctx, req, lines)
		return opErr
	}

	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, operation)
	} else {
		err = operation()
	}

	if errors.Is(err, domain.ErrDuplicateIdempotency) {
		// Lost a race with a concurrent submission holding the same key; the
		// winner's result is the result.
		return uc.replay(ctx, req.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}

	// (e) Cache the result for the retention window.
	uc.cacheResult(ctx, req.IdempotencyKey, result)

	if uc.metrics != nil {
		uc.metrics.TransactionsProcessed.WithLabelValues(string(result.Type), string(result.Status)).Inc()
		uc.metrics.TransactionAmount.WithLabelValues(string(result.Type)).Observe(req.Amount.Round().Amount.InexactFloat64())
		uc.metrics.TransactionDuration.Observe(time.Since(start).Seconds())
	}

	return result, nil
}

// replay returns the cached or stored result for an idempotency key, or
// (nil, nil) when the key is unused. Returned results carry the Replayed
// mark so callers can tell no new posting happened.
func (uc *ProcessorUseCase) replay(ctx context.Context, key string) (*TransactionResult, error) {
	if uc.cache != nil {
		if raw, err := uc.cache.Get(ctx, resultCacheKey(key)); err == nil {
			var result TransactionResult
			if jerr := json.Unmarshal(raw, &result); jerr == nil {
				result.Replayed = true
				uc.countReplay()
				return &result, nil
			}
		}
	}

	txn, err := uc.txnRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	result := resultFromTransaction(txn)
	result.Replayed = true
	uc.countReplay()
	if txn.Status == domain.TransactionStatusFailed {
		return result, fmt.Errorf("%w: %s", domain.ErrComplianceBlocked, txn.Reference)
	}

	uc.cacheResult(ctx, key, result)
	return result, nil
}

func (uc *ProcessorUseCase) countReplay() {
	if uc.metrics != nil {
		uc.metrics.IdempotentReplays.Inc()
	}
}

// processOnce executes the atomic unit inside one storage transaction.
func (uc *ProcessorUseCase) processOnce(ctx context.Context, req *TransactionRequest, lines []domain.JournalEntryLine) (*TransactionResult, error) {
	now := time.Now().UTC()

	entry := &domain.JournalEntry{
		ID:          uc.idGen.Generate(),
		Reference:   req.Reference,
		Description: req.Description,
		Lines:       lines,
		State:       domain.EntryStatePending,
		CreatedAt:   now,
	}
	for i := range entry.Lines {
		entry.Lines[i].ID = uc.idGen.Generate()
		entry.Lines[i].EntryID = entry.ID
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Re-verify the source balance against the authoritative ledger inside
	// the same transaction that posts the debit. Pre-transaction balance
	// reads are advisory only.
	if err := uc.checkSourceBalance(ctx, tx, req); err != nil {
		return nil, err
	}

	if err := uc.journalRepo.CreateEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := uc.journalRepo.MarkPosted(ctx, tx, entry.ID, now); err != nil {
		return nil, err
	}
	entry.State = domain.EntryStatePosted
	entry.PostedAt = &now

	txn := &domain.Transaction{
		ID:             uc.idGen.Generate(),
		Type:           req.Type,
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount.Round(),
		Description:    req.Description,
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
		Status:         domain.TransactionStatusCompleted,
		JournalEntryID: entry.ID,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		CompletedAt:    &now,
	}

	if err := uc.txnRepo.Create(ctx, tx, txn); err != nil {
		return nil, err
	}

	for _, appendInput := range []AppendInput{
		{
			EventType:  domain.AuditEventEntryCreated,
			EntityType: domain.AggregateTypeJournalEntry,
			EntityID:   entry.ID,
			ActorID:    req.ActorID,
			Metadata:   map[string]any{"reference": entry.Reference, "lines": len(entry.Lines)},
		},
		{
			EventType:  domain.AuditEventEntryPosted,
			EntityType: domain.AggregateTypeJournalEntry,
			EntityID:   entry.ID,
			ActorID:    req.ActorID,
			Metadata:   map[string]any{"reference": entry.Reference},
		},
		{
			EventType:  domain.AuditEventTransactionCompleted,
			EntityType: domain.AggregateTypeTransaction,
			EntityID:   txn.ID,
			ActorID:    req.ActorID,
			Metadata: map[string]any{
				"type":     string(txn.Type),
				"amount":   txn.Amount.Amount.String(),
				"currency": string(txn.Amount.Currency),
			},
		},
	} {
		if _, err := uc.audit.AppendTx(ctx, tx, appendInput); err != nil {
			return nil, err
		}
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   txn.ID,
		AggregateType: domain.AggregateTypeTransaction,
		EventType:     domain.EventTypeTransactionCompleted,
		Payload: map[string]any{
			"transaction_id":   txn.ID,
			"type":             string(txn.Type),
			"amount":           txn.Amount.Amount.String(),
			"currency":         string(txn.Amount.Currency),
			"journal_entry_id": entry.ID,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateLineBalances(ctx, entry)
	if uc.metrics != nil {
		uc.metrics.EntriesPosted.Inc()
	}

	return resultFromTransaction(txn), nil
}

// checkSourceBalance rejects debits that would overdraw the source customer
// account, using replayed posted lines inside the open transaction.
func (uc *ProcessorUseCase) checkSourceBalance(ctx context.Context, tx Transaction, req *TransactionRequest) error {
	switch req.Type {
	case domain.TransactionTypeWithdrawal, domain.TransactionTypeTransfer, domain.TransactionTypeFee:
	case domain.TransactionTypeInterest:
		if req.FromAccountID == "" {
			return nil
		}
	default:
		return nil
	}

	account, err := uc.accountRepo.GetByID(ctx, req.FromAccountID)
	if err != nil {
		return err
	}

	debits, credits, err := uc.journalRepo.SumPostedLinesTx(ctx, tx, req.FromAccountID, req.Amount.Currency, time.Time{})
	if err != nil {
		return err
	}

	balance := signedBalance(account.Type, debits, credits)
	if balance.LessThan(req.Amount.Round().Amount) {
		return fmt.Errorf("%w: account %s balance %s, requested %s",
			domain.ErrInsufficientFunds, req.FromAccountID, balance.String(), req.Amount)
	}

	return nil
}

// recordBlocked persists the failed transaction and its audit record without
// touching the ledger.
func (uc *ProcessorUseCase) recordBlocked(ctx context.Context, req *TransactionRequest) error {
	now := time.Now().UTC()

	txn := &domain.Transaction{
		ID:             uc.idGen.Generate(),
		Type:           req.Type,
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount.Round(),
		Description:    req.Description,
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
		Status:         domain.TransactionStatusFailed,
		Metadata:       req.Metadata,
		CreatedAt:      now,
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.txnRepo.Create(ctx, tx, txn); err != nil {
		return err
	}

	_, err = uc.audit.AppendTx(ctx, tx, AppendInput{
		EventType:  domain.AuditEventTransactionFailed,
		EntityType: domain.AggregateTypeTransaction,
		EntityID:   txn.ID,
		ActorID:    req.ActorID,
		Metadata: map[string]any{
			"reason":   "compliance_block",
			"type":     string(txn.Type),
			"amount":   txn.Amount.Amount.String(),
			"currency": string(txn.Amount.Currency),
		},
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (uc *ProcessorUseCase) cacheResult(ctx context.Context, key string, result *TransactionResult) {
	if uc.cache == nil || result == nil {
		return
	}
	if raw, err := json.Marshal(result); err == nil {
		_ = uc.cache.Set(ctx, resultCacheKey(key), raw, IdempotencyKeyTTL)
	}
}

func (uc *ProcessorUseCase) invalidateLineBalances(ctx context.Context, entry *domain.JournalEntry) {
	if uc.cache == nil {
		return
	}
	for i := range entry.Lines {
		line := &entry.Lines[i]
		_ = uc.cache.Delete(ctx, balanceCacheKey(line.AccountID, line.LineCurrency()))
	}
}

func resultCacheKey(idempotencyKey string) string {
	return "txn:result:" + idempotencyKey
}

func resultFromTransaction(txn *domain.Transaction) *TransactionResult {
	return &TransactionResult{
		TransactionID:  txn.ID,
		Status:         txn.Status,
		Type:           txn.Type,
		Amount:         txn.Amount.Amount.String(),
		Currency:       txn.Amount.Currency,
		Reference:      txn.Reference,
		JournalEntryID: txn.JournalEntryID,
		CreatedAt:      txn.CreatedAt,
	}
}
