package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
	"github.com/corebank/ledger/internal/usecase/mocks"
)

type reconFixture struct {
	recon       *usecase.ReconciliationUseCase
	journalRepo *mocks.MockJournalRepository
	accountRepo *mocks.MockAccountRepository
	cache       *mocks.MockCache
}

func newReconFixture() *reconFixture {
	journalRepo := mocks.NewMockJournalRepository()
	accountRepo := mocks.NewMockAccountRepository()
	cache := mocks.NewMockCache()
	return &reconFixture{
		recon:       usecase.NewReconciliationUseCase(accountRepo, journalRepo, cache),
		journalRepo: journalRepo,
		accountRepo: accountRepo,
		cache:       cache,
	}
}

func (f *reconFixture) postEntry(t *testing.T, id string, lines []domain.JournalEntryLine) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	entry := &domain.JournalEntry{
		ID:        id,
		Reference: id,
		Lines:     lines,
		State:     domain.EntryStatePending,
		CreatedAt: now,
	}
	if err := f.journalRepo.CreateEntry(ctx, nil, entry); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.journalRepo.MarkPosted(ctx, nil, id, now); err != nil {
		t.Fatalf("post: %v", err)
	}
}

func TestReconcileAccountAgainstCache(t *testing.T) {
	f := newReconFixture()
	ctx := context.Background()
	amount := domain.MustMoney("150.00", domain.USD)

	f.accountRepo.Seed(&domain.Account{ID: "acct-1", Name: "acct-1", Type: domain.AccountTypeLiability, Currency: domain.USD})
	f.postEntry(t, "entry-1", []domain.JournalEntryLine{
		domain.DebitLine("sys-cash", "", amount),
		domain.CreditLine("acct-1", "", amount),
	})

	// No cached value: the replay stands alone and reconciles trivially.
	result, err := f.recon.ReconcileAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.IsReconciled {
		t.Error("replay without cache must reconcile")
	}
	if !result.ReplayedBalance.Equal(amount.Amount) {
		t.Errorf("expected replayed 150.00, got %s", result.ReplayedBalance)
	}
	if result.CachedBalance != nil {
		t.Error("no cached balance expected")
	}

	// Matching cache.
	f.cache.Set(ctx, "balance:acct-1:USD", []byte("150"), time.Minute)
	result, err = f.recon.ReconcileAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.IsReconciled {
		t.Errorf("matching cache flagged: difference %s", result.Difference)
	}

	// Stale cache is a discrepancy; the replay is authoritative.
	f.cache.Set(ctx, "balance:acct-1:USD", []byte("140"), time.Minute)
	result, err = f.recon.ReconcileAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.IsReconciled {
		t.Error("stale cache must be reported")
	}
	if result.Difference.String() != "10" {
		t.Errorf("expected difference 10, got %s", result.Difference)
	}
}

func TestCheckLedgerConsistency(t *testing.T) {
	f := newReconFixture()
	ctx := context.Background()
	amount := domain.MustMoney("99.99", domain.USD)

	f.postEntry(t, "entry-1", []domain.JournalEntryLine{
		domain.DebitLine("sys-cash", "", amount),
		domain.CreditLine("acct-1", "", amount),
	})
	if err := f.recon.CheckLedgerConsistency(ctx); err != nil {
		t.Fatalf("balanced ledger reported inconsistent: %v", err)
	}

	// Force an unbalanced posted entry past validation, straight into storage.
	f.postEntry(t, "entry-bad", []domain.JournalEntryLine{
		domain.DebitLine("sys-cash", "", domain.MustMoney("1.00", domain.USD)),
	})
	if err := f.recon.CheckLedgerConsistency(ctx); err == nil {
		t.Fatal("corrupted ledger must be reported")
	}
}

func TestGenerateReport(t *testing.T) {
	f := newReconFixture()
	ctx := context.Background()
	amount := domain.MustMoney("500.00", domain.USD)

	f.accountRepo.Seed(&domain.Account{ID: "acct-1", Name: "acct-1", Type: domain.AccountTypeLiability, Currency: domain.USD})
	f.accountRepo.Seed(&domain.Account{ID: "sys-cash", Name: "sys-cash", Type: domain.AccountTypeAsset, Currency: domain.USD})
	f.postEntry(t, "entry-1", []domain.JournalEntryLine{
		domain.DebitLine("sys-cash", "", amount),
		domain.CreditLine("acct-1", "", amount),
	})

	// One account carries a stale cached balance.
	f.cache.Set(ctx, "balance:acct-1:USD", []byte("450"), time.Minute)

	report, err := f.recon.GenerateReport(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if report.TotalAccounts != 2 {
		t.Errorf("expected 2 accounts, got %d", report.TotalAccounts)
	}
	if report.ReconciledAccounts != 1 {
		t.Errorf("expected 1 reconciled account, got %d", report.ReconciledAccounts)
	}
	if len(report.Discrepancies) != 1 || report.Discrepancies[0].AccountID != "acct-1" {
		t.Fatalf("expected acct-1 discrepancy, got %+v", report.Discrepancies)
	}
	if !report.LedgerConsistent {
		t.Error("ledger should be consistent")
	}
}
