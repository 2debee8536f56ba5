package iif

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/statement"
)

// Name identifies the adapter.
const Name = "IIF"

const isoDate = "2006-01-02"

var header = []string{"Date", "Name", "Amount", "Memo", "Account", "Type", "DocNum", "Splits"}

const (
	colDate = iota
	colName
	colAmount
	colMemo
	colAccount
	colType
	colDocNum
	colSplits
)

// Config describes the statement account.
type Config struct {
	Account  string
	Currency string
	Negate   bool
}

// Adapter turns the TRNS lines of an IIF export into candidates. The
// QuickBooks account names of the split lines are kept as a comment.
type Adapter struct {
	cfg Config
}

// New returns an adapter for cfg.
func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// ReadData decodes the file, one row per transaction.
func (a *Adapter) ReadData(r io.Reader) (*statement.Table, error) {
	f, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", statement.ErrFormat, err)
	}
	txs, err := f.Transactions()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", statement.ErrFormat, err)
	}

	body := make([][]string, 0, len(txs))
	for _, tx := range txs {
		row := make([]string, len(header))
		row[colDate] = tx.Trns.Date.Format(isoDate)
		row[colName] = tx.Trns.Name
		row[colAmount] = tx.Trns.Amount.String()
		row[colMemo] = tx.Trns.Memo
		row[colAccount] = tx.Trns.Account
		row[colType] = tx.Trns.TransactionType
		row[colDocNum] = tx.Trns.DocNum
		var splits []string
		for _, s := range tx.Splits {
			splits = append(splits, s.Account)
		}
		row[colSplits] = strings.Join(splits, ", ")
		body = append(body, row)
	}

	t := statement.NewTable(slices.Clone(header), body)
	t.SortNewestFirst(colDate)
	return t, nil
}

// StepData converts one TRNS row.
func (a *Adapter) StepData(index int, row statement.Row) (*ledger.Transaction, error) {
	d, err := time.Parse(isoDate, row.At(colDate))
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: %w", statement.ErrFormat, index, err)
	}
	amount, err := decimal.NewFromString(row.At(colAmount))
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: %w", statement.ErrFormat, index, err)
	}
	if amount.IsZero() {
		return nil, nil
	}
	if a.cfg.Negate {
		amount = amount.Neg()
	}

	payee := row.At(colName)
	if payee == "" {
		payee = row.At(colMemo)
	}
	trans := &ledger.Transaction{
		Date:  d,
		Payee: statement.Payee(payee),
		AccountChanges: []ledger.Account{
			{Name: a.cfg.Account, Currency: a.cfg.Currency, Balance: amount},
			{Name: ledger.UnknownAccount, Currency: a.cfg.Currency, Balance: amount.Neg()},
		},
	}
	if memo := row.At(colMemo); memo != payee {
		trans.Comments = statement.AppendComment(trans.Comments, memo)
	}
	if splits := row.At(colSplits); splits != "" {
		trans.Comments = statement.AppendComment(trans.Comments, strings.ToLower(row.At(colType))+": "+splits)
	}
	if doc := row.At(colDocNum); doc != "" {
		trans.Comments = statement.AppendComment(trans.Comments, "docnum: "+doc)
	}
	return trans, nil
}
