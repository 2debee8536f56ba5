package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestIsBalanced(t *testing.T) {
	tests := []struct {
		name           string
		postings       []Account
		wantErr        error
		wantBalances   []string
		wantCurrencies []string
	}{
		{
			name:     "errors on too few postings",
			postings: []Account{{Name: "Assets:Bank", Balance: dec("10")}},
			wantErr:  ErrNeedAtLeastTwoPostings,
		},
		{
			name: "no empty account error",
			postings: []Account{
				{Name: "Assets:Bank", Balance: dec("10")},
				{Name: "Expenses:Food", Balance: dec("-5")},
			},
			wantErr: ErrNoEmptyAccountForExtraBalance,
		},
		{
			name: "more than one empty account error",
			postings: []Account{
				{Name: "Assets:Bank", Balance: dec("10")},
				{Name: "Expenses:Food"},
				{Name: "Equity:OpeningBalances"},
			},
			wantErr: ErrMoreThanOneEmptyAccountInTx,
		},
		{
			name: "single empty account gets balancing amount",
			postings: []Account{
				{Name: "Assets:Bank", Balance: dec("-10")},
				{Name: "Expenses:Food"},
			},
			wantBalances: []string{"-10", "10"},
		},
		{
			name: "empty account takes the currency of the remainder",
			postings: []Account{
				{Name: "Assets:Bank", Currency: "EUR", Balance: dec("-12.50")},
				{Name: "Expenses:Food"},
			},
			wantBalances:   []string{"-12.50", "12.50"},
			wantCurrencies: []string{"EUR", "EUR"},
		},
		{
			name: "already balanced with no empty account",
			postings: []Account{
				{Name: "Assets:Bank", Balance: dec("-10")},
				{Name: "Expenses:Food", Balance: dec("10")},
			},
			wantBalances: []string{"-10", "10"},
		},
		{
			name: "each currency balances on its own",
			postings: []Account{
				{Name: "Assets:Bank:EUR", Currency: "EUR", Balance: dec("-10")},
				{Name: "Expenses:Food", Currency: "EUR", Balance: dec("10")},
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-3")},
				{Name: "Expenses:Fees", Currency: "USD", Balance: dec("3")},
			},
		},
		{
			name: "empty account settles the only open currency",
			postings: []Account{
				{Name: "Assets:Bank:EUR", Currency: "EUR", Balance: dec("-10")},
				{Name: "Expenses:Food", Currency: "EUR", Balance: dec("10")},
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-3")},
				{Name: "Expenses:Fees"},
			},
			wantBalances:   []string{"-10", "10", "-3", "3"},
			wantCurrencies: []string{"EUR", "EUR", "USD", "USD"},
		},
		{
			name: "empty account cannot settle two open currencies",
			postings: []Account{
				{Name: "Assets:Bank:EUR", Currency: "EUR", Balance: dec("-10")},
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("5")},
				{Name: "Expenses:Fees"},
			},
			wantErr: ErrNoEmptyAccountForExtraBalance,
		},
		{
			name: "two currency implicit conversion factor inferred",
			postings: []Account{
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-10")},
				{Name: "Assets:Bank:EUR", Currency: "EUR", Balance: dec("5")},
			},
		},
		{
			name: "two currency implicit conversion factor inferred multiple",
			postings: []Account{
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-10")},
				{Name: "Assets:Bank:EUR", Currency: "EUR", Balance: dec("5")},
				{Name: "Assets:otherBank:EUR", Currency: "EUR", Balance: dec("3")},
			},
		},
		{
			name: "two currencies moving the same way are not a conversion",
			postings: []Account{
				{Name: "Assets:Bank:EUR", Currency: "EUR", Balance: dec("10")},
				{Name: "Expenses:Food", Currency: "EUR", Balance: dec("-5")},
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("3")},
			},
			wantErr: ErrNoEmptyAccountForExtraBalance,
		},
		{
			name: "balanced currency next to an open one is not a conversion",
			postings: []Account{
				{Name: "Assets:Bank:EUR", Currency: "EUR", Balance: dec("10")},
				{Name: "Expenses:Food", Currency: "EUR", Balance: dec("-10")},
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("3")},
			},
			wantErr: ErrNoEmptyAccountForExtraBalance,
		},
		{
			name: "does not infer conversion factor for three currencies",
			postings: []Account{
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-10")},
				{Name: "Assets:Bank:EUR", Currency: "EUR", Balance: dec("5")},
				{Name: "Assets:Bank:GBP", Currency: "GBP", Balance: dec("3")},
			},
			wantErr: ErrNoEmptyAccountForExtraBalance,
		},
		{
			name: "decimal precision bug",
			postings: []Account{
				{Name: "Assets:Wise:CZK", Currency: "CZK", Balance: decimal.NewFromFloat(-2003.0)},
				{Name: "Assets:Wise:EUR", Currency: "EUR", Balance: decimal.NewFromFloat(1000.0)},
			},
		},
		{
			name: "converted amount follows the sign of the posting",
			postings: []Account{
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-10"), Converted: decPtr("9")},
				{Name: "Expenses:Food", Currency: "EUR", Balance: dec("9")},
			},
		},
		{
			name: "negative converted amount on a negative posting",
			postings: []Account{
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-10"), Converted: decPtr("-9")},
				{Name: "Expenses:Food", Currency: "EUR", Balance: dec("9")},
			},
		},
		{
			name: "converted amount that does not match",
			postings: []Account{
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-10"), Converted: decPtr("9")},
				{Name: "Expenses:Food", Currency: "EUR", Balance: dec("8")},
			},
			wantErr: ErrNoEmptyAccountForExtraBalance,
		},
		{
			name: "conversion rate",
			postings: []Account{
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-10"), ConversionFactor: decPtr("0.9")},
				{Name: "Expenses:Food", Currency: "EUR", Balance: dec("9")},
			},
		},
		{
			name: "conversion rate with empty account",
			postings: []Account{
				{Name: "Assets:Bank:USD", Currency: "USD", Balance: dec("-10"), ConversionFactor: decPtr("0.9")},
				{Name: "Expenses:Food"},
			},
			wantBalances: []string{"-10", "9"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tx := &Transaction{AccountChanges: tt.postings}
			err := tx.IsBalanced()
			if err != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}

			if tt.wantBalances != nil {
				if len(tx.AccountChanges) != len(tt.wantBalances) {
					t.Fatalf("expected %d account balances, got %d", len(tt.wantBalances), len(tx.AccountChanges))
				}
				for i, want := range tt.wantBalances {
					if !tx.AccountChanges[i].Balance.Equal(dec(want)) {
						t.Fatalf("account %d: expected balance %s, got %s", i, want, tx.AccountChanges[i].Balance)
					}
				}
			}
			for i, want := range tt.wantCurrencies {
				if got := tx.AccountChanges[i].Currency; got != want {
					t.Fatalf("account %d: expected currency %q, got %q", i, want, got)
				}
			}
		})
	}
}
