package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
	"github.com/corebank/ledger/internal/usecase"
	"github.com/corebank/ledger/internal/usecase/mocks"
)

type processorFixture struct {
	processor   *usecase.ProcessorUseCase
	ledger      *usecase.LedgerUseCase
	journalRepo *mocks.MockJournalRepository
	accountRepo *mocks.MockAccountRepository
	txnRepo     *mocks.MockTransactionRepository
	auditRepo   *mocks.MockAuditRepository
	outboxRepo  *mocks.MockOutboxRepository
	cache       *mocks.MockCache
	compliance  *mocks.MockComplianceChecker
	metrics     *metrics.Metrics
}

func newProcessorFixture() *processorFixture {
	txManager := mocks.NewMockTransactionManager()
	journalRepo := mocks.NewMockJournalRepository()
	accountRepo := mocks.NewMockAccountRepository()
	txnRepo := mocks.NewMockTransactionRepository()
	auditRepo := mocks.NewMockAuditRepository()
	outboxRepo := mocks.NewMockOutboxRepository()
	cache := mocks.NewMockCache()
	compliance := &mocks.MockComplianceChecker{}
	idGen := mocks.NewMockIDGenerator()
	m := metrics.New(prometheus.NewRegistry())

	audit := usecase.NewAuditUseCase(txManager, auditRepo, idGen, m)
	ledger := usecase.NewLedgerUseCase(txManager, journalRepo, accountRepo, outboxRepo, audit, cache, idGen, m)
	processor := usecase.NewProcessorUseCase(
		txManager, journalRepo, accountRepo, txnRepo, outboxRepo,
		audit, cache, compliance, mocks.MockRetrier{}, idGen, m,
		usecase.SystemAccounts{
			CashClearingID:   "sys-cash-clearing",
			FeeIncomeID:      "sys-fee-income",
			InterestIncomeID: "sys-interest-income",
		},
	)

	f := &processorFixture{
		processor:   processor,
		ledger:      ledger,
		journalRepo: journalRepo,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		auditRepo:   auditRepo,
		outboxRepo:  outboxRepo,
		cache:       cache,
		compliance:  compliance,
		metrics:     m,
	}

	for _, sys := range []struct {
		id          string
		accountType domain.AccountType
	}{
		{"sys-cash-clearing", domain.AccountTypeAsset},
		{"sys-fee-income", domain.AccountTypeRevenue},
		{"sys-interest-income", domain.AccountTypeRevenue},
	} {
		accountRepo.Seed(&domain.Account{
			ID:       sys.id,
			Name:     sys.id,
			Type:     sys.accountType,
			Currency: domain.USD,
		})
	}

	return f
}

func (f *processorFixture) seedCustomer(id string) {
	f.accountRepo.Seed(&domain.Account{
		ID:       id,
		Name:     id,
		Type:     domain.AccountTypeLiability,
		Currency: domain.USD,
	})
}

func (f *processorFixture) deposit(t *testing.T, accountID, amount, key string) *usecase.TransactionResult {
	t.Helper()
	result, err := f.processor.Process(context.Background(), &usecase.TransactionRequest{
		Type:           domain.TransactionTypeDeposit,
		ToAccountID:    accountID,
		Amount:         domain.MustMoney(amount, domain.USD),
		Description:    "deposit",
		Reference:      "DEP-" + key,
		IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return result
}

func (f *processorFixture) balance(t *testing.T, accountID string) domain.Money {
	t.Helper()
	balance, err := f.ledger.GetBalance(context.Background(), accountID, domain.USD, nil)
	if err != nil {
		t.Fatalf("balance %s: %v", accountID, err)
	}
	return balance
}

func TestProcessDeposit(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")

	result := f.deposit(t, "acct-1", "2500.00", "key-1")

	if result.Status != domain.TransactionStatusCompleted {
		t.Errorf("expected completed, got %s", result.Status)
	}
	if result.JournalEntryID == "" {
		t.Error("result must reference the posted journal entry")
	}
	if got := f.journalRepo.PostedCount(); got != 1 {
		t.Errorf("expected 1 posted entry, got %d", got)
	}

	entry, err := f.journalRepo.GetEntry(context.Background(), result.JournalEntryID)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if len(entry.Lines) != 2 {
		t.Errorf("deposit entry should have 2 lines, got %d", len(entry.Lines))
	}

	want := domain.MustMoney("2500.00", domain.USD)
	if got := f.balance(t, "acct-1"); !got.Equal(want) {
		t.Errorf("expected balance %s, got %s", want, got)
	}
	if got := f.balance(t, "sys-cash-clearing"); !got.Equal(want) {
		t.Errorf("expected clearing balance %s, got %s", want, got)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")

	first := f.deposit(t, "acct-1", "100.00", "key-1")
	if first.Replayed {
		t.Error("first submission must not be marked replayed")
	}
	for i := 0; i < 4; i++ {
		replay := f.deposit(t, "acct-1", "100.00", "key-1")
		if replay.TransactionID != first.TransactionID {
			t.Errorf("replay %d returned a different transaction: %s vs %s",
				i, replay.TransactionID, first.TransactionID)
		}
		if replay.JournalEntryID != first.JournalEntryID {
			t.Errorf("replay %d returned a different entry", i)
		}
		if !replay.Replayed {
			t.Errorf("replay %d must be marked replayed", i)
		}
	}

	if got := f.journalRepo.PostedCount(); got != 1 {
		t.Errorf("5 submissions must post exactly 1 entry, got %d", got)
	}
	if got := f.txnRepo.Count(); got != 1 {
		t.Errorf("5 submissions must record exactly 1 transaction, got %d", got)
	}
	want := domain.MustMoney("100.00", domain.USD)
	if got := f.balance(t, "acct-1"); !got.Equal(want) {
		t.Errorf("expected balance %s, got %s", want, got)
	}
}

func TestProcessReplaySkipsCompliance(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")

	f.deposit(t, "acct-1", "100.00", "key-1")
	checks := f.compliance.Calls

	f.deposit(t, "acct-1", "100.00", "key-1")
	if f.compliance.Calls != checks {
		t.Errorf("replay must not re-run compliance: %d checks before, %d after",
			checks, f.compliance.Calls)
	}
}

func TestProcessLostRaceReplaysWinner(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")
	ctx := context.Background()

	// Simulate losing a race: between the replay pre-check and our insert, a
	// concurrent submission commits the same key. The insert hits the unique
	// constraint and the loser must surface the winner's result, not an error.
	f.txnRepo.CreateFunc = func(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
		f.txnRepo.CreateFunc = nil
		winner := *txn
		winner.ID = "winner-txn"
		if err := f.txnRepo.Create(ctx, tx, &winner); err != nil {
			return err
		}
		return domain.ErrDuplicateIdempotency
	}

	result, err := f.processor.Process(ctx, &usecase.TransactionRequest{
		Type:           domain.TransactionTypeDeposit,
		ToAccountID:    "acct-1",
		Amount:         domain.MustMoney("100.00", domain.USD),
		Reference:      "DEP-1",
		IdempotencyKey: "key-race",
	})
	if err != nil {
		t.Fatalf("lost race should replay, got error: %v", err)
	}
	if result.TransactionID != "winner-txn" {
		t.Errorf("expected winner's transaction, got %s", result.TransactionID)
	}
	if !result.Replayed {
		t.Error("lost race must surface a replayed result")
	}
}

func TestProcessComplianceBlock(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")
	ctx := context.Background()

	f.deposit(t, "acct-1", "60000.00", "seed")
	before := f.balance(t, "acct-1")
	postedBefore := f.journalRepo.PostedCount()

	f.compliance.Verdict = usecase.ComplianceBlock
	_, err := f.processor.Process(ctx, &usecase.TransactionRequest{
		Type:           domain.TransactionTypeWithdrawal,
		FromAccountID:  "acct-1",
		Amount:         domain.MustMoney("50000.00", domain.USD),
		Description:    "large withdrawal",
		Reference:      "WD-1",
		IdempotencyKey: "key-blocked",
	})
	if !errors.Is(err, domain.ErrComplianceBlocked) {
		t.Fatalf("expected ErrComplianceBlocked, got %v", err)
	}

	// A failed transaction exists for the audit record.
	txn, err := f.txnRepo.GetByIdempotencyKey(ctx, "key-blocked")
	if err != nil {
		t.Fatalf("blocked transaction not recorded: %v", err)
	}
	if txn.Status != domain.TransactionStatusFailed {
		t.Errorf("expected failed status, got %s", txn.Status)
	}

	// Zero ledger trace.
	if got := f.journalRepo.PostedCount(); got != postedBefore {
		t.Errorf("blocked transaction posted entries: %d before, %d after", postedBefore, got)
	}
	if got := f.balance(t, "acct-1"); !got.Equal(before) {
		t.Errorf("blocked transaction moved money: %s before, %s after", before, got)
	}

	// Resubmitting the same key replays the failure without new writes.
	txnCount := f.txnRepo.Count()
	_, err = f.processor.Process(ctx, &usecase.TransactionRequest{
		Type:           domain.TransactionTypeWithdrawal,
		FromAccountID:  "acct-1",
		Amount:         domain.MustMoney("50000.00", domain.USD),
		Reference:      "WD-1",
		IdempotencyKey: "key-blocked",
	})
	if !errors.Is(err, domain.ErrComplianceBlocked) {
		t.Fatalf("replay of blocked key: expected ErrComplianceBlocked, got %v", err)
	}
	if f.txnRepo.Count() != txnCount {
		t.Error("replay of blocked key must not record a new transaction")
	}
}

func TestProcessComplianceReviewProceedsFlagged(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")

	f.compliance.Verdict = usecase.ComplianceReview
	result, err := f.processor.Process(context.Background(), &usecase.TransactionRequest{
		Type:           domain.TransactionTypeDeposit,
		ToAccountID:    "acct-1",
		Amount:         domain.MustMoney("15000.00", domain.USD),
		Reference:      "DEP-1",
		IdempotencyKey: "key-review",
	})
	if err != nil {
		t.Fatalf("review verdict must not block: %v", err)
	}
	if result.Status != domain.TransactionStatusCompleted {
		t.Errorf("expected completed, got %s", result.Status)
	}

	txn, err := f.txnRepo.GetByIdempotencyKey(context.Background(), "key-review")
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if flagged, _ := txn.Metadata["compliance_review"].(bool); !flagged {
		t.Error("transaction must carry the compliance_review flag")
	}
}

func TestProcessWithdrawalInsufficientFunds(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")
	ctx := context.Background()

	f.deposit(t, "acct-1", "100.00", "seed")
	postedBefore := f.journalRepo.PostedCount()

	_, err := f.processor.Process(ctx, &usecase.TransactionRequest{
		Type:           domain.TransactionTypeWithdrawal,
		FromAccountID:  "acct-1",
		Amount:         domain.MustMoney("100.01", domain.USD),
		Reference:      "WD-1",
		IdempotencyKey: "key-over",
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := f.journalRepo.PostedCount(); got != postedBefore {
		t.Errorf("failed withdrawal posted an entry")
	}
	if got := f.balance(t, "acct-1"); !got.Equal(domain.MustMoney("100.00", domain.USD)) {
		t.Errorf("failed withdrawal moved money: %s", got)
	}

	// An exact-balance withdrawal is allowed.
	result, err := f.processor.Process(ctx, &usecase.TransactionRequest{
		Type:           domain.TransactionTypeWithdrawal,
		FromAccountID:  "acct-1",
		Amount:         domain.MustMoney("100.00", domain.USD),
		Reference:      "WD-2",
		IdempotencyKey: "key-exact",
	})
	if err != nil {
		t.Fatalf("exact-balance withdrawal: %v", err)
	}
	if result.Status != domain.TransactionStatusCompleted {
		t.Errorf("expected completed, got %s", result.Status)
	}
	if got := f.balance(t, "acct-1"); !got.IsZero() {
		t.Errorf("expected zero balance, got %s", got)
	}
}

func TestProcessTransferMovesBothSidesAtOnce(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")
	f.seedCustomer("acct-2")
	ctx := context.Background()

	f.deposit(t, "acct-1", "500.00", "seed")

	result, err := f.processor.Process(ctx, &usecase.TransactionRequest{
		Type:           domain.TransactionTypeTransfer,
		FromAccountID:  "acct-1",
		ToAccountID:    "acct-2",
		Amount:         domain.MustMoney("200.00", domain.USD),
		Reference:      "TRF-1",
		IdempotencyKey: "key-transfer",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// One entry, lines on both accounts.
	entry, err := f.journalRepo.GetEntry(ctx, result.JournalEntryID)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if len(entry.Lines) != 2 {
		t.Fatalf("transfer entry should have 2 lines, got %d", len(entry.Lines))
	}

	if got := f.balance(t, "acct-1"); !got.Equal(domain.MustMoney("300.00", domain.USD)) {
		t.Errorf("expected source 300.00, got %s", got)
	}
	if got := f.balance(t, "acct-2"); !got.Equal(domain.MustMoney("200.00", domain.USD)) {
		t.Errorf("expected target 200.00, got %s", got)
	}
}

func TestProcessFeeCreditsFeeIncome(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")

	f.deposit(t, "acct-1", "50.00", "seed")

	_, err := f.processor.Process(context.Background(), &usecase.TransactionRequest{
		Type:           domain.TransactionTypeFee,
		FromAccountID:  "acct-1",
		Amount:         domain.MustMoney("5.00", domain.USD),
		Reference:      "FEE-1",
		IdempotencyKey: "key-fee",
	})
	if err != nil {
		t.Fatalf("fee: %v", err)
	}

	if got := f.balance(t, "acct-1"); !got.Equal(domain.MustMoney("45.00", domain.USD)) {
		t.Errorf("expected 45.00 after fee, got %s", got)
	}
	if got := f.balance(t, "sys-fee-income"); !got.Equal(domain.MustMoney("5.00", domain.USD)) {
		t.Errorf("expected fee income 5.00, got %s", got)
	}
}

func TestProcessValidation(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")
	amount := domain.MustMoney("10.00", domain.USD)

	tests := []struct {
		name      string
		req       *usecase.TransactionRequest
		errorType error
	}{
		{
			name: "missing idempotency key",
			req: &usecase.TransactionRequest{
				Type:        domain.TransactionTypeDeposit,
				ToAccountID: "acct-1",
				Amount:      amount,
			},
			errorType: domain.ErrInvalidAmount,
		},
		{
			name: "non-positive amount",
			req: &usecase.TransactionRequest{
				Type:           domain.TransactionTypeDeposit,
				ToAccountID:    "acct-1",
				Amount:         domain.MustMoney("0.00", domain.USD),
				IdempotencyKey: "k",
			},
			errorType: domain.ErrInvalidAmount,
		},
		{
			name: "unknown type",
			req: &usecase.TransactionRequest{
				Type:           domain.TransactionType("chargeback"),
				ToAccountID:    "acct-1",
				Amount:         amount,
				IdempotencyKey: "k",
			},
			errorType: domain.ErrUnknownTransactionType,
		},
		{
			name: "transfer to same account",
			req: &usecase.TransactionRequest{
				Type:           domain.TransactionTypeTransfer,
				FromAccountID:  "acct-1",
				ToAccountID:    "acct-1",
				Amount:         amount,
				IdempotencyKey: "k",
			},
			errorType: domain.ErrSameAccount,
		},
		{
			name: "deposit without target",
			req: &usecase.TransactionRequest{
				Type:           domain.TransactionTypeDeposit,
				Amount:         amount,
				IdempotencyKey: "k",
			},
			errorType: domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.processor.Process(context.Background(), tt.req)
			if !errors.Is(err, tt.errorType) {
				t.Fatalf("expected %v, got %v", tt.errorType, err)
			}
		})
	}
}

func TestProcessCountsOutcomes(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")

	f.deposit(t, "acct-1", "100.00", "key-1")
	f.deposit(t, "acct-1", "100.00", "key-1")

	if got := testutil.ToFloat64(f.metrics.TransactionsProcessed.WithLabelValues("deposit", "completed")); got != 1 {
		t.Errorf("expected 1 completed deposit counted, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.IdempotentReplays); got != 1 {
		t.Errorf("expected 1 replay counted, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.EntriesPosted); got != 1 {
		t.Errorf("expected 1 posted entry counted, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.ComplianceVerdicts.WithLabelValues("allow")); got != 1 {
		t.Errorf("expected 1 allow verdict counted, got %v", got)
	}
}

func TestProcessKeepsLedgerBalanced(t *testing.T) {
	f := newProcessorFixture()
	f.seedCustomer("acct-1")
	f.seedCustomer("acct-2")
	ctx := context.Background()

	ops := []*usecase.TransactionRequest{
		{Type: domain.TransactionTypeDeposit, ToAccountID: "acct-1", Amount: domain.MustMoney("1000.00", domain.USD)},
		{Type: domain.TransactionTypeDeposit, ToAccountID: "acct-2", Amount: domain.MustMoney("333.33", domain.USD)},
		{Type: domain.TransactionTypeTransfer, FromAccountID: "acct-1", ToAccountID: "acct-2", Amount: domain.MustMoney("250.50", domain.USD)},
		{Type: domain.TransactionTypeFee, FromAccountID: "acct-2", Amount: domain.MustMoney("1.99", domain.USD)},
		{Type: domain.TransactionTypeWithdrawal, FromAccountID: "acct-1", Amount: domain.MustMoney("100.00", domain.USD)},
	}
	for i, req := range ops {
		req.Reference = fmt.Sprintf("OP-%d", i)
		req.IdempotencyKey = fmt.Sprintf("key-%d", i)
		if _, err := f.processor.Process(ctx, req); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
	}

	debits, credits, err := f.journalRepo.LedgerTotals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if !debits.Equal(credits) {
		t.Errorf("ledger out of balance: debits=%s credits=%s", debits, credits)
	}
}
