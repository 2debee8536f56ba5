package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownAccount is the placeholder for a posting whose account has not
// been decided yet.
const UnknownAccount = "unknown:unknown"

// Entry is a single item of a ledger file: a transaction, an account
// declaration or a balance assertion.
type Entry interface {
	// EntryDate returns the date the entry belongs to. Undated entries
	// return the zero time.
	EntryDate() time.Time
}

// Account holds the name and balance
type Account struct {
	Name     string
	Currency string
	Balance  decimal.Decimal
	Comment  string

	// Balance converted using @@ notation
	Converted *decimal.Decimal
	// Conversion factor using @ notation
	ConversionFactor *decimal.Decimal
}

// Transaction is the basis of a ledger. The ledger holds a list of transactions.
// A Transaction has a Payee, Date (with no time, or to put another way, with
// hours,minutes,seconds values that probably doesn't make sense), and a list of
// Account values that hold the value of the transaction for each account.
type Transaction struct {
	Date           time.Time
	Payee          string
	PayeeComment   string
	AccountChanges []Account
	Comments       []string
}

// EntryDate implements Entry.
func (t *Transaction) EntryDate() time.Time { return t.Date }

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.AccountChanges = make([]Account, len(t.AccountChanges))
	for i, a := range t.AccountChanges {
		if a.Converted != nil {
			v := *a.Converted
			a.Converted = &v
		}
		if a.ConversionFactor != nil {
			v := *a.ConversionFactor
			a.ConversionFactor = &v
		}
		c.AccountChanges[i] = a
	}
	if t.Comments != nil {
		c.Comments = append([]string(nil), t.Comments...)
	}
	return &c
}

// HasUnknown reports whether any posting still uses UnknownAccount.
func (t *Transaction) HasUnknown() bool {
	for _, a := range t.AccountChanges {
		if a.Name == UnknownAccount {
			return true
		}
	}
	return false
}

// AccountDeclaration is an "account" directive. Date is set from an
// "; opened" sub line and is zero for plain declarations.
type AccountDeclaration struct {
	Date       time.Time
	Name       string
	Comments   []string
	Directives []string
}

// EntryDate implements Entry.
func (d *AccountDeclaration) EntryDate() time.Time { return d.Date }

// BalanceAssertion asserts the balance of an account at the end of Date.
type BalanceAssertion struct {
	Date     time.Time
	Payee    string
	Account  string
	Currency string
	Amount   decimal.Decimal
	Comments []string
}

// EntryDate implements Entry.
func (b *BalanceAssertion) EntryDate() time.Time { return b.Date }

// Transactions returns only the transactions of entries, in order.
func Transactions(entries []Entry) []*Transaction {
	var trans []*Transaction
	for _, e := range entries {
		if t, ok := e.(*Transaction); ok {
			trans = append(trans, t)
		}
	}
	return trans
}
