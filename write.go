package ledger

import (
	"bufio"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	transactionDateFormat = "2006/01/02"
	newLine               = "\n"

	// DefaultColumns is the width entries are aligned to when written.
	DefaultColumns = 80
)

var spaceStr = strings.Repeat(" ", 256)

func spaces(n int) string {
	if n < 1 {
		n = 1
	}
	if n > len(spaceStr) {
		return strings.Repeat(" ", n)
	}
	return spaceStr[:n]
}

// FormatAmount renders an amount with its commodity the way postings are
// written. Two decimals are used unless the amount carries more.
func FormatAmount(amount decimal.Decimal, currency string) string {
	s := amount.StringFixedBank(2)
	if amount.Exponent() < -2 {
		s = amount.String()
	}
	if currency != "" {
		s = currency + " " + s
	}
	return s
}

// WriteTransaction writes a transaction formatted to fit in specified column width.
func WriteTransaction(w io.StringWriter, trans *Transaction, columns int) {
	for _, c := range trans.Comments {
		w.WriteString(c)
		w.WriteString(newLine)
	}

	// Print accounts sorted by name
	postings := slices.Clone(trans.AccountChanges)
	slices.SortStableFunc(postings, func(a, b Account) int {
		return strings.Compare(a.Name, b.Name)
	})

	w.WriteString(trans.Date.Format(transactionDateFormat))
	w.WriteString(" ")
	w.WriteString(trans.Payee)
	if len(trans.PayeeComment) > 0 {
		w.WriteString(spaces(columns - 10 - utf8.RuneCountInString(trans.Payee)))
		w.WriteString(trans.PayeeComment)
	}
	w.WriteString(newLine)
	for _, accChange := range postings {
		outBalanceString := FormatAmount(accChange.Balance, accChange.Currency)
		// Show converted amount (@@) or conversion factor (@) similar to hledger
		if accChange.Converted != nil {
			outBalanceString = outBalanceString + " @@ " + accChange.Converted.StringFixedBank(2)
		} else if accChange.ConversionFactor != nil {
			outBalanceString = outBalanceString + " @ " + accChange.ConversionFactor.String()
		}
		writePostingLine(w, accChange.Name, outBalanceString, accChange.Comment, columns)
	}
}

func writePostingLine(w io.StringWriter, name, amount, comment string, columns int) {
	w.WriteString(spaces(4))
	w.WriteString(name)
	w.WriteString(spaces(columns - 4 - utf8.RuneCountInString(name) - utf8.RuneCountInString(amount)))
	w.WriteString(amount)
	if len(comment) > 0 {
		w.WriteString(" ")
		w.WriteString(comment)
	}
	w.WriteString(newLine)
}

// WriteAccountDeclaration writes an account directive. The opening date is
// kept as a comment sub line so the file stays readable by ledger-cli.
func WriteAccountDeclaration(w io.StringWriter, d *AccountDeclaration) {
	for _, c := range d.Comments {
		w.WriteString(c)
		w.WriteString(newLine)
	}
	w.WriteString("account ")
	w.WriteString(d.Name)
	w.WriteString(newLine)
	if !d.Date.IsZero() {
		w.WriteString(spaces(4))
		w.WriteString("; opened ")
		w.WriteString(d.Date.Format(transactionDateFormat))
		w.WriteString(newLine)
	}
	for _, sub := range d.Directives {
		w.WriteString(spaces(4))
		w.WriteString(sub)
		w.WriteString(newLine)
	}
}

// WriteBalanceAssertion writes a single zero posting asserting the account
// balance.
func WriteBalanceAssertion(w io.StringWriter, b *BalanceAssertion, columns int) {
	for _, c := range b.Comments {
		w.WriteString(c)
		w.WriteString(newLine)
	}
	payee := b.Payee
	if payee == "" {
		payee = "Balance"
	}
	w.WriteString(b.Date.Format(transactionDateFormat))
	w.WriteString(" ")
	w.WriteString(payee)
	w.WriteString(newLine)
	amount := FormatAmount(decimal.Zero, b.Currency) + " = " + FormatAmount(b.Amount, b.Currency)
	writePostingLine(w, b.Account, amount, "", columns)
}

// WriteEntry writes any entry followed by a blank separator line.
func WriteEntry(w io.StringWriter, e Entry, columns int) {
	switch v := e.(type) {
	case *Transaction:
		WriteTransaction(w, v, columns)
	case *AccountDeclaration:
		WriteAccountDeclaration(w, v)
	case *BalanceAssertion:
		WriteBalanceAssertion(w, v, columns)
	default:
		return
	}
	w.WriteString(newLine)
}

// WriteLedger writes all entries in order.
func WriteLedger(w io.Writer, entries []Entry, columns int) error {
	buf := bufio.NewWriter(w)
	for _, e := range entries {
		WriteEntry(buf, e, columns)
	}
	return buf.Flush()
}
