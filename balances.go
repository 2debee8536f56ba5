package ledger

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GetBalances provided a list of transactions and filter strings, returns account balances of
// all accounts that have any filter as a substring of the account name. Also
// returns balances for each account level depth as a separate record.
//
// Accounts are sorted by name, then currency.
func GetBalances(generalLedger []*Transaction, filterArr []string) []*Account {
	type key struct{ name, currency string }
	balances := make(map[key]decimal.Decimal)

	for _, trans := range generalLedger {
		for _, accChange := range trans.AccountChanges {
			inFilter := len(filterArr) == 0
			for _, filter := range filterArr {
				if strings.Contains(accChange.Name, filter) {
					inFilter = true
					break
				}
			}
			if !inFilter {
				continue
			}

			name := accChange.Name
			for {
				k := key{name, accChange.Currency}
				balances[k] = balances[k].Add(accChange.Balance)
				idx := strings.LastIndex(name, ":")
				if idx < 0 {
					break
				}
				name = name[:idx]
			}
		}
	}

	accList := make([]*Account, 0, len(balances))
	for k, bal := range balances {
		accList = append(accList, &Account{Name: k.name, Currency: k.currency, Balance: bal})
	}
	slices.SortFunc(accList, func(a, b *Account) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Currency, b.Currency)
	})
	return accList
}

// AccountBalance sums the postings of a single account and currency over
// all transactions dated on or before until.
func AccountBalance(entries []Entry, account, currency string, until time.Time) decimal.Decimal {
	bal := decimal.Zero
	for _, t := range Transactions(entries) {
		if t.Date.After(until) {
			continue
		}
		for _, p := range t.AccountChanges {
			if p.Name == account && p.Currency == currency {
				bal = bal.Add(p.Balance)
			}
		}
	}
	return bal
}

// TransactionsInDateRange returns a new array of transactions that are in the date range
// specified by start and end. The returned list contains transactions on the same day as start
// but does not include any transactions on the day of end.
func TransactionsInDateRange(trans []*Transaction, start, end time.Time) []*Transaction {
	var newlist []*Transaction

	start = start.Add(-1 * time.Second)

	for _, tran := range trans {
		if tran.Date.After(start) && tran.Date.Before(end) {
			newlist = append(newlist, tran)
		}
	}

	return newlist
}

// DeclaredAccounts returns the set of account names with an account
// directive.
func DeclaredAccounts(entries []Entry) map[string]bool {
	declared := make(map[string]bool)
	for _, e := range entries {
		if d, ok := e.(*AccountDeclaration); ok {
			declared[d.Name] = true
		}
	}
	return declared
}

// AccountNames returns every account name used or declared, sorted and
// without duplicates.
func AccountNames(entries []Entry) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n == "" || n == UnknownAccount || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}
	for _, e := range entries {
		switch v := e.(type) {
		case *Transaction:
			for _, p := range v.AccountChanges {
				add(p.Name)
			}
		case *AccountDeclaration:
			add(v.Name)
		case *BalanceAssertion:
			add(v.Account)
		}
	}
	slices.Sort(names)
	return names
}
