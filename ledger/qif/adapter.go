package qif

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	date "github.com/joyt/godate"
	"github.com/shopspring/decimal"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/statement"
)

// Name identifies the adapter.
const Name = "QIF"

const isoDate = "2006-01-02"

var header = []string{"Date", "Payee", "Amount", "Memo", "Category", "Number"}

const (
	colDate = iota
	colPayee
	colAmount
	colMemo
	colCategory
	colNumber
)

// quicken writes years as 2024, 24 or '24
var dateLayouts = []string{"1/2/2006", "1/2/06", "1.2.2006", "2006-01-02"}

// Config describes the statement account.
type Config struct {
	Account  string
	Currency string
	// DateFormat overrides date detection.
	DateFormat string
	Negate     bool
}

// Adapter converts QIF files. Records are sorted newest first; records of
// the same day keep their file order reversed.
type Adapter struct {
	cfg Config
}

// New returns an adapter for cfg.
func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// ReadData decodes the file and normalizes record dates.
func (a *Adapter) ReadData(r io.Reader) (*statement.Table, error) {
	records, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", statement.ErrFormat, err)
	}

	body := make([][]string, 0, len(records))
	for i, rec := range records {
		d, err := a.parseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", statement.ErrFormat, i, err)
		}
		row := make([]string, len(header))
		row[colDate] = d.Format(isoDate)
		row[colPayee] = rec.Payee
		row[colAmount] = rec.Amount
		row[colMemo] = strings.ReplaceAll(rec.Memo, "\n", " ")
		row[colCategory] = rec.Category
		row[colNumber] = rec.Number
		body = append(body, row)
	}

	t := statement.NewTable(slices.Clone(header), body)
	t.SortNewestFirst(colDate)
	return t, nil
}

func (a *Adapter) parseDate(s string) (time.Time, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "'", "/")
	s = strings.ReplaceAll(s, " ", "")
	if a.cfg.DateFormat != "" {
		return time.Parse(a.cfg.DateFormat, s)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	t, _, err := date.ParseAndGetLayout(s)
	if err != nil {
		return t, fmt.Errorf("unable to parse date(%s): %w", s, err)
	}
	return t, nil
}

// StepData converts a record. The QIF category and check number are kept
// as comments so rules can match them.
func (a *Adapter) StepData(index int, row statement.Row) (*ledger.Transaction, error) {
	if strings.TrimSpace(row.At(colAmount)) == "" {
		return nil, nil
	}
	d, err := time.Parse(isoDate, row.At(colDate))
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: %w", statement.ErrFormat, index, err)
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(row.At(colAmount)), ",", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: %w", statement.ErrFormat, index, err)
	}
	if a.cfg.Negate {
		amount = amount.Neg()
	}

	payee := row.At(colPayee)
	if strings.TrimSpace(payee) == "" {
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
	trans.Comments = statement.AppendComment(trans.Comments, row.At(colMemo))
	if category := strings.TrimSpace(row.At(colCategory)); category != "" {
		trans.Comments = statement.AppendComment(trans.Comments, "category: "+category)
	}
	if number := row.At(colNumber); number != "" {
		trans.Comments = statement.AppendComment(trans.Comments, "number: "+number)
	}
	return trans, nil
}
