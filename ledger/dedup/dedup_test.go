package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenert/ledger"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func candidate(d int, payee string, amount int64) *ledger.Transaction {
	return &ledger.Transaction{
		Date:  day(d),
		Payee: payee,
		AccountChanges: []ledger.Account{
			{Name: "Assets:Checking", Currency: "EUR", Balance: decimal.NewFromInt(amount)},
			{Name: ledger.UnknownAccount, Currency: "EUR", Balance: decimal.NewFromInt(-amount)},
		},
	}
}

func booked(d int, payee string, amount int64) *ledger.Transaction {
	// postings sorted by name, the way they are written
	return &ledger.Transaction{
		Date:  day(d),
		Payee: payee,
		AccountChanges: []ledger.Account{
			{Name: "Assets:Checking", Currency: "EUR", Balance: decimal.NewFromInt(amount)},
			{Name: "Expenses:Food", Currency: "EUR", Balance: decimal.NewFromInt(-amount)},
		},
	}
}

func TestFilterRecognisesBookedTransactions(t *testing.T) {
	entries := []ledger.Entry{booked(2, "REWE  Markt", -20)}
	f := NewFilter(entries)

	assert.False(t, f.IsNoDuplicate(candidate(2, "rewe markt", -20)), "same day, account, amount and payee")
	assert.True(t, f.IsNoDuplicate(candidate(2, "rewe markt", -20)), "match is used up")
	assert.True(t, f.IsNoDuplicate(candidate(3, "rewe markt", -20)), "different day")
	assert.True(t, f.IsNoDuplicate(candidate(2, "rewe markt", -21)), "different amount")
	assert.True(t, f.IsNoDuplicate(candidate(2, "aldi", -20)), "different payee")

	require.Len(t, entries, 1)
	assert.Equal(t, "REWE  Markt", entries[0].(*ledger.Transaction).Payee)
}

func TestFilterSemicolonInPayee(t *testing.T) {
	f := NewFilter([]ledger.Entry{booked(3, "PAYPAL *SHOP, REF 42", -10)})

	assert.False(t, f.IsNoDuplicate(candidate(3, "PAYPAL *SHOP; REF 42", -10)))
	assert.Equal(t, NormalizePayee("paypal *shop, ref 42"), NormalizePayee("PAYPAL *SHOP;  REF 42"))
}

func TestFilterCountsRepeatedRows(t *testing.T) {
	f := NewFilter([]ledger.Entry{booked(2, "Coffee", -3), booked(2, "Coffee", -3)})

	assert.False(t, f.IsNoDuplicate(candidate(2, "Coffee", -3)))
	assert.False(t, f.IsNoDuplicate(candidate(2, "Coffee", -3)))
	assert.True(t, f.IsNoDuplicate(candidate(2, "Coffee", -3)))
}

func TestFilterBalancesAndDeclarations(t *testing.T) {
	ba := &ledger.BalanceAssertion{Date: day(5), Account: "Assets:Checking", Currency: "EUR", Amount: decimal.NewFromFloat(12.5)}
	f := NewFilter([]ledger.Entry{ba, &ledger.AccountDeclaration{Name: "Expenses:Food"}})

	same := *ba
	same.Amount = decimal.RequireFromString("12.50")
	assert.False(t, f.IsNoDuplicate(&same))

	other := *ba
	other.Amount = decimal.NewFromInt(13)
	assert.True(t, f.IsNoDuplicate(&other))

	assert.False(t, f.IsNoDuplicate(&ledger.AccountDeclaration{Name: "Expenses:Food"}))
	assert.True(t, f.IsNoDuplicate(&ledger.AccountDeclaration{Name: "Expenses:Rent"}))
}

func TestIngestPlacesByDate(t *testing.T) {
	decl := &ledger.AccountDeclaration{Name: "Assets:Checking"}
	entries := []ledger.Entry{decl, booked(1, "a", 1), booked(3, "c", 3)}
	in := NewIngester(entries)

	got := in.Ingest(booked(2, "b", 2), entries)
	require.Len(t, got, 4)
	assert.Len(t, entries, 3, "input slice untouched")
	assert.Equal(t, "b", got[2].(*ledger.Transaction).Payee)
	assert.Same(t, decl, got[0])

	got = in.Ingest(booked(3, "c2", 4), got)
	assert.Equal(t, "c2", got[4].(*ledger.Transaction).Payee, "same day goes after existing")

	got = in.Ingest(booked(0, "early", 5), got)
	assert.Same(t, decl, got[0], "undated declarations stay on top")
	assert.Equal(t, "early", got[1].(*ledger.Transaction).Payee)

	assert.True(t, IsOrdered(got))
	assert.Equal(t, 3, in.Added())
	assert.Equal(t, 3, in.Initial())
}

func TestIngestIntoEmptyLedger(t *testing.T) {
	in := NewIngester(nil)
	got := in.Ingest(booked(1, "a", 1), nil)
	require.Len(t, got, 1)
}
