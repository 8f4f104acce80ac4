package domain

import (
	"fmt"
	"time"
)

// AccountType classifies a ledger account and fixes the sign convention used
// when deriving its balance from journal lines.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// ParseAccountType validates an account type string.
func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(s) {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense:
		return AccountType(s), nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidAccountType, s)
}

// DebitNormal reports whether debits increase the account's balance.
// Asset and expense accounts are debit-normal; liability, equity and
// revenue accounts are credit-normal.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Account is a ledger account in the chart of accounts. It carries no stored
// balance; balances are always derived by replaying posted journal lines.
type Account struct {
	ID        string
	Name      string
	Type      AccountType
	Currency  Currency
	CreatedAt time.Time
}
