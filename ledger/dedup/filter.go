// Package dedup recognises entries that are already part of a ledger and
// places new entries at their chronological position.
package dedup

import (
	"strings"

	"github.com/plenert/ledger"
)

type kind int

const (
	kindTransaction kind = iota
	kindBalance
	kindDeclaration
)

type key struct {
	kind     kind
	day      string
	account  string
	amount   string
	currency string
	payee    string
}

// Filter reports whether candidate entries already exist in a ledger.
//
// Every entry of the ledger snapshot contributes its keys once, and a match
// consumes one of them. Repeated identical statement rows are therefore
// recognised as often as they occur in the ledger and no more.
type Filter struct {
	seen map[key]int
}

// NewFilter indexes the given entries. The slice is not retained.
func NewFilter(entries []ledger.Entry) *Filter {
	f := &Filter{seen: make(map[key]int)}
	for _, e := range entries {
		switch v := e.(type) {
		case *ledger.Transaction:
			// written postings are sorted, so any posting may be the
			// statement side
			for _, p := range v.AccountChanges {
				if p.Name == ledger.UnknownAccount {
					continue
				}
				f.seen[transactionKey(v, p)]++
			}
		case *ledger.BalanceAssertion:
			f.seen[balanceKey(v)]++
		case *ledger.AccountDeclaration:
			f.seen[key{kind: kindDeclaration, account: v.Name}]++
		}
	}
	return f
}

// IsNoDuplicate reports whether entry is new. A recognised entry uses up
// its match.
func (f *Filter) IsNoDuplicate(entry ledger.Entry) bool {
	var k key
	switch v := entry.(type) {
	case *ledger.Transaction:
		if len(v.AccountChanges) == 0 {
			return true
		}
		k = transactionKey(v, v.AccountChanges[0])
	case *ledger.BalanceAssertion:
		k = balanceKey(v)
	case *ledger.AccountDeclaration:
		k = key{kind: kindDeclaration, account: v.Name}
	default:
		return true
	}

	if f.seen[k] > 0 {
		f.seen[k]--
		return false
	}
	return true
}

func transactionKey(t *ledger.Transaction, p ledger.Account) key {
	return key{
		kind:     kindTransaction,
		day:      t.Date.Format("2006-01-02"),
		account:  p.Name,
		amount:   p.Balance.StringFixed(2),
		currency: p.Currency,
		payee:    NormalizePayee(t.Payee),
	}
}

func balanceKey(b *ledger.BalanceAssertion) key {
	return key{
		kind:     kindBalance,
		day:      b.Date.Format("2006-01-02"),
		account:  b.Account,
		amount:   b.Amount.StringFixed(2),
		currency: b.Currency,
	}
}

// NormalizePayee collapses whitespace and folds case so payees that differ
// only in formatting compare equal. ";" is read as "," the way
// statement.Payee writes it.
func NormalizePayee(payee string) string {
	payee = strings.ReplaceAll(payee, ";", ",")
	return strings.ToLower(strings.Join(strings.Fields(payee), " "))
}
