// Package ofx reads OFX and QFX bank and credit card statements.
package ofx

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/statement"
)

// Name identifies the adapter.
const Name = "OFX"

const isoDate = "2006-01-02"

var header = []string{"Date", "Payee", "Amount", "Memo", "FITID", "Type", "Check"}

const (
	colDate = iota
	colPayee
	colAmount
	colMemo
	colFITID
	colType
	colCheck
)

// Config describes the statement account. An empty Currency is taken from
// the statement.
type Config struct {
	Account  string
	Currency string
	Negate   bool
}

// Adapter converts OFX statements.
type Adapter struct {
	cfg Config

	currency string
	table    *statement.Table
	// ledger balance of the statement, if there was exactly one
	closing *ledger.BalanceAssertion
}

// New returns an adapter for cfg.
func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, currency: cfg.Currency}
}

type stmt struct {
	currency     string
	transactions []ofxgo.Transaction
	balance      ofxgo.Amount
	asOf         ofxgo.Date
}

// ReadData parses every bank and credit card statement of the response.
func (a *Adapter) ReadData(r io.Reader) (*statement.Table, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(strings.TrimLeft(string(content), " \t\r\n")))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", statement.ErrFormat, err)
	}

	var stmts []stmt
	for _, msg := range append(resp.Bank, resp.CreditCard...) {
		switch s := msg.(type) {
		case *ofxgo.StatementResponse:
			st := stmt{currency: s.CurDef.String(), balance: s.BalAmt, asOf: s.DtAsOf}
			if s.BankTranList != nil {
				st.transactions = s.BankTranList.Transactions
			}
			stmts = append(stmts, st)
		case *ofxgo.CCStatementResponse:
			st := stmt{currency: s.CurDef.String(), balance: s.BalAmt, asOf: s.DtAsOf}
			if s.BankTranList != nil {
				st.transactions = s.BankTranList.Transactions
			}
			stmts = append(stmts, st)
		}
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("%w: no bank or credit card statement", statement.ErrFormat)
	}
	if a.currency == "" {
		a.currency = stmts[0].currency
	}

	var body [][]string
	for _, st := range stmts {
		for _, tx := range st.transactions {
			body = append(body, row(tx))
		}
	}
	a.table = statement.NewTable(slices.Clone(header), body)
	a.table.SortNewestFirst(colDate)

	a.closing = nil
	if len(stmts) == 1 && !stmts[0].asOf.IsZero() {
		amount, err := decimal.NewFromString(stmts[0].balance.String())
		if err != nil {
			return nil, fmt.Errorf("%w: ledger balance: %w", statement.ErrFormat, err)
		}
		a.closing = a.assertion(day(stmts[0].asOf.Time), a.adjust(amount))
	}
	return a.table, nil
}

func row(tx ofxgo.Transaction) []string {
	r := make([]string, len(header))
	r[colDate] = day(tx.DtPosted.Time).Format(isoDate)
	r[colPayee] = string(tx.Name)
	if r[colPayee] == "" && tx.Payee != nil {
		r[colPayee] = string(tx.Payee.Name)
	}
	r[colAmount] = tx.TrnAmt.String()
	r[colMemo] = string(tx.Memo)
	r[colFITID] = string(tx.FiTID)
	r[colType] = tx.TrnType.String()
	r[colCheck] = string(tx.CheckNum)
	return r
}

// day drops the time of day, keeping the calendar date of the institution.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (a *Adapter) adjust(d decimal.Decimal) decimal.Decimal {
	if a.cfg.Negate {
		return d.Neg()
	}
	return d
}

// StepData converts one statement transaction.
func (a *Adapter) StepData(index int, r statement.Row) (*ledger.Transaction, error) {
	d, amount, err := a.parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: %w", statement.ErrFormat, index, err)
	}

	payee := r.At(colPayee)
	if payee == "" {
		payee = r.At(colMemo)
	}
	trans := &ledger.Transaction{
		Date:  d,
		Payee: statement.Payee(payee),
		AccountChanges: []ledger.Account{
			{Name: a.cfg.Account, Currency: a.currency, Balance: amount},
			{Name: ledger.UnknownAccount, Currency: a.currency, Balance: amount.Neg()},
		},
	}
	if memo := r.At(colMemo); memo != payee {
		trans.Comments = statement.AppendComment(trans.Comments, memo)
	}
	if check := r.At(colCheck); check != "" {
		trans.Comments = statement.AppendComment(trans.Comments, "check: "+check)
	}
	if id := r.At(colFITID); id != "" {
		trans.Comments = statement.AppendComment(trans.Comments, "fitid: "+id)
	}
	return trans, nil
}

func (a *Adapter) parse(r statement.Row) (time.Time, decimal.Decimal, error) {
	d, err := time.Parse(isoDate, r.At(colDate))
	if err != nil {
		return d, decimal.Decimal{}, err
	}
	amount, err := decimal.NewFromString(r.At(colAmount))
	if err != nil {
		return d, amount, err
	}
	return d, a.adjust(amount), nil
}

func (a *Adapter) assertion(d time.Time, amount decimal.Decimal) *ledger.BalanceAssertion {
	return &ledger.BalanceAssertion{
		Date:     d,
		Payee:    "Balance",
		Account:  a.cfg.Account,
		Currency: a.currency,
		Amount:   amount,
	}
}

// OutBalance returns the ledger balance reported by the institution.
func (a *Adapter) OutBalance() *ledger.BalanceAssertion {
	return a.closing
}

// InBalance derives the balance before the oldest transaction from the
// ledger balance.
func (a *Adapter) InBalance() *ledger.BalanceAssertion {
	if a.closing == nil || a.table.Len() == 0 {
		return nil
	}
	opening := a.closing.Amount
	var oldest time.Time
	for i, n := 0, a.table.Len(); i < n; i++ {
		d, amount, err := a.parse(a.table.Row(i))
		if err != nil {
			return nil
		}
		opening = opening.Sub(amount)
		oldest = d
	}
	return a.assertion(oldest, opening)
}
