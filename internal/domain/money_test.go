package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyArithmetic(t *testing.T) {
	a := MustMoney("100.50", USD)
	b := MustMoney("24.50", USD)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Equal(MustMoney("125.00", USD)) {
		t.Errorf("expected 125.00, got %s", sum)
	}

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !diff.Equal(MustMoney("76.00", USD)) {
		t.Errorf("expected 76.00, got %s", diff)
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	usd := MustMoney("10.00", USD)
	eur := MustMoney("10.00", EUR)

	if _, err := usd.Add(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd.Sub(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd.Cmp(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestMoneyRound(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency Currency
		want     string
	}{
		{"half up at two places", "10.005", USD, "10.01"},
		{"truncates below half", "10.004", USD, "10"},
		{"zero exponent currency", "1000.5", JPY, "1001"},
		{"already exact", "25.25", USD, "25.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MustMoney(tt.amount, tt.currency)
			got := m.Round()
			want, _ := decimal.NewFromString(tt.want)
			if !got.Amount.Equal(want) {
				t.Errorf("Round(%s) = %s, want %s", tt.amount, got.Amount, want)
			}
		})
	}
}

func TestNewMoneyRejectsUnknownCurrency(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(5), Currency("XXX"))
	if !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != USD {
		t.Errorf("expected USD, got %s", c)
	}

	if _, err := ParseCurrency("DOGE"); !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("expected ErrInvalidCurrency, got %v", err)
	}
}
