package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// MockTx is a no-op storage transaction.
type MockTx struct {
	Committed  bool
	RolledBack bool
}

func (t *MockTx) Commit(ctx context.Context) error {
	t.Committed = true
	return nil
}

func (t *MockTx) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
	Began     int
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	m.Began++
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTx{}, nil
}

// MockIDGenerator produces sequential IDs.
type MockIDGenerator struct {
	mu           sync.Mutex
	counter      int
	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("id-%04d", m.counter)
}

// MockAccountRepository is an in-memory AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc  func(ctx context.Context, account *domain.Account) error
	GetByIDFunc func(ctx context.Context, id string) (*domain.Account, error)
	ListFunc    func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{accounts: make(map[string]*domain.Account)}
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		accounts = append(accounts, m.accounts[id])
	}
	return accounts, nil
}

// Seed adds an account directly.
func (m *MockAccountRepository) Seed(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
}

// MockJournalRepository is an in-memory JournalRepository.
type MockJournalRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.JournalEntry

	CreateEntryFunc func(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error
	MarkPostedFunc  func(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error
}

func NewMockJournalRepository() *MockJournalRepository {
	return &MockJournalRepository{entries: make(map[string]*domain.JournalEntry)}
}

func (m *MockJournalRepository) CreateEntry(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	if m.CreateEntryFunc != nil {
		return m.CreateEntryFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	copied.Lines = append([]domain.JournalEntryLine(nil), entry.Lines...)
	m.entries[entry.ID] = &copied
	return nil
}

func (m *MockJournalRepository) GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	copied := *entry
	return &copied, nil
}

func (m *MockJournalRepository) GetEntryForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error) {
	return m.GetEntry(ctx, id)
}

func (m *MockJournalRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	if m.MarkPostedFunc != nil {
		return m.MarkPostedFunc(ctx, tx, id, postedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	entry.State = domain.EntryStatePosted
	entry.PostedAt = &postedAt
	return nil
}

func (m *MockJournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id, reversalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	entry.State = domain.EntryStateReversed
	entry.ReversedBy = reversalID
	return nil
}

func (m *MockJournalRepository) SumPostedLines(ctx context.Context, accountID string, currency domain.Currency, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumLocked(accountID, currency, asOf)
}

func (m *MockJournalRepository) SumPostedLinesTx(ctx context.Context, tx usecase.Transaction, accountID string, currency domain.Currency, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return m.SumPostedLines(ctx, accountID, currency, asOf)
}

func (m *MockJournalRepository) sumLocked(accountID string, currency domain.Currency, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, entry := range m.entries {
		if entry.PostedAt == nil {
			continue
		}
		if !asOf.IsZero() && entry.PostedAt.After(asOf) {
			continue
		}
		for _, line := range entry.Lines {
			if line.AccountID != accountID || line.LineCurrency() != currency {
				continue
			}
			debits = debits.Add(line.Debit.Amount)
			credits = credits.Add(line.Credit.Amount)
		}
	}
	return debits, credits, nil
}

func (m *MockJournalRepository) LedgerTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	debits := decimal.Zero
	credits := decimal.Zero
	for _, entry := range m.entries {
		if entry.PostedAt == nil {
			continue
		}
		for _, line := range entry.Lines {
			debits = debits.Add(line.Debit.Amount)
			credits = credits.Add(line.Credit.Amount)
		}
	}
	return debits, credits, nil
}

func (m *MockJournalRepository) ListEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.JournalEntry
	for _, entry := range m.entries {
		for _, line := range entry.Lines {
			if line.AccountID == accountID {
				copied := *entry
				out = append(out, &copied)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PostedCount returns the number of posted entries.
func (m *MockJournalRepository) PostedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, entry := range m.entries {
		if entry.PostedAt != nil {
			n++
		}
	}
	return n
}

// MockTransactionRepository is an in-memory TransactionRepository enforcing
// the idempotency-key unique constraint.
type MockTransactionRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Transaction
	byKey map[string]*domain.Transaction

	CreateFunc func(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		byID:  make(map[string]*domain.Transaction),
		byKey: make(map[string]*domain.Transaction),
	}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if txn.IdempotencyKey != "" {
		if _, exists := m.byKey[txn.IdempotencyKey]; exists {
			return domain.ErrDuplicateIdempotency
		}
	}
	copied := *txn
	m.byID[txn.ID] = &copied
	if txn.IdempotencyKey != "" {
		m.byKey[txn.IdempotencyKey] = &copied
	}
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (m *MockTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.byKey[key]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (m *MockTransactionRepository) PurgeIdempotencyKeys(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for key, txn := range m.byKey {
		if txn.CreatedAt.Before(before) {
			delete(m.byKey, key)
			purged++
		}
	}
	return purged, nil
}

// Count returns the number of stored transactions.
func (m *MockTransactionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// MockAuditRepository is an in-memory AuditRepository. Entries is exported so
// tamper-detection tests can corrupt stored rows directly.
type MockAuditRepository struct {
	mu      sync.RWMutex
	Entries []*domain.AuditEntry
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Append(ctx context.Context, tx usecase.Transaction, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.Entries = append(m.Entries, &copied)
	return nil
}

func (m *MockAuditRepository) ChainHead(ctx context.Context, tx usecase.Transaction) (*domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Entries) == 0 {
		return nil, nil
	}
	copied := *m.Entries[len(m.Entries)-1]
	return &copied, nil
}

func (m *MockAuditRepository) ListBySequence(ctx context.Context, fromSeq, toSeq int64) ([]*domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditEntry
	for _, entry := range m.Entries {
		if entry.Sequence >= fromSeq && entry.Sequence <= toSeq {
			copied := *entry
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *MockAuditRepository) ListByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditEntry
	for _, entry := range m.Entries {
		if !entry.Timestamp.Before(start) && !entry.Timestamp.After(end) {
			copied := *entry
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *MockAuditRepository) MaxSequence(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Entries) == 0 {
		return 0, nil
	}
	return m.Entries[len(m.Entries)-1].Sequence, nil
}

// MockLoanRepository is an in-memory LoanRepository.
type MockLoanRepository struct {
	mu    sync.RWMutex
	loans map[string]*domain.Loan
}

func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{loans: make(map[string]*domain.Loan)}
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *loan
	m.loans[loan.ID] = &copied
	return nil
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loan, ok := m.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	copied := *loan
	return &copied, nil
}

func (m *MockLoanRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Loan, error) {
	return m.GetByID(ctx, id)
}

func (m *MockLoanRepository) UpdateAfterPayment(ctx context.Context, tx usecase.Transaction, id string, balance domain.Money, status domain.LoanStatus, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok {
		return domain.ErrLoanNotFound
	}
	loan.RemainingBalance = balance
	loan.Status = status
	loan.LastPaymentDate = &paidAt
	loan.UpdatedAt = time.Now().UTC()
	return nil
}

// Seed adds a loan directly.
func (m *MockLoanRepository) Seed(loan *domain.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[loan.ID] = loan
}

// MockOutboxRepository is an in-memory OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	Events []*domain.OutboxEvent
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.Events = append(m.Events, &copied)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, event := range m.Events {
		if !event.Published {
			copied := *event
			out = append(out, &copied)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, event := range m.Events {
		if event.ID == id {
			event.Published = true
			event.PublishedAt = &publishedAt
			return nil
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Events[:0]
	for _, event := range m.Events {
		if event.Published && event.PublishedAt != nil && event.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, event)
	}
	m.Events = kept
	return nil
}

// MockCache is an in-memory Cache without TTL expiry.
type MockCache struct {
	mu    sync.RWMutex
	items map[string][]byte

	GetFunc func(ctx context.Context, key string) ([]byte, error)
	SetFunc func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func NewMockCache() *MockCache {
	return &MockCache{items: make(map[string][]byte)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	if !ok {
		return nil, usecase.ErrCacheMiss
	}
	return value, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Has reports whether a key is cached.
func (m *MockCache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[key]
	return ok
}

// MockRetrier runs the operation once without retries.
type MockRetrier struct{}

func (MockRetrier) Retry(ctx context.Context, operation func() error) error {
	return operation()
}

// MockComplianceChecker returns a fixed verdict.
type MockComplianceChecker struct {
	Verdict   usecase.ComplianceVerdict
	Err       error
	CheckFunc func(ctx context.Context, req *usecase.TransactionRequest) (usecase.ComplianceVerdict, error)
	Calls     int
}

func (m *MockComplianceChecker) Check(ctx context.Context, req *usecase.TransactionRequest) (usecase.ComplianceVerdict, error) {
	m.Calls++
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, req)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Verdict == "" {
		return usecase.ComplianceAllow, nil
	}
	return m.Verdict, nil
}
