// Package bankcsv reads CSV statement exports. Columns are found by their
// header names and rows are expected newest first, the way banks export
// them.
package bankcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	date "github.com/joyt/godate"
	"github.com/shopspring/decimal"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/statement"
)

// Name identifies the adapter, e.g. for its rule file.
const Name = "BankCSV"

var errMissingColumns = errors.New("unable to find columns required from header field names")

// Columns names header fields explicitly. Empty names are detected.
type Columns struct {
	Date    string `yaml:"date" mapstructure:"date"`
	Payee   string `yaml:"payee" mapstructure:"payee"`
	Amount  string `yaml:"amount" mapstructure:"amount"`
	Debit   string `yaml:"debit" mapstructure:"debit"`
	Credit  string `yaml:"credit" mapstructure:"credit"`
	Note    string `yaml:"note" mapstructure:"note"`
	Balance string `yaml:"balance" mapstructure:"balance"`
}

// Config describes one bank's export.
type Config struct {
	// Account is the ledger account the statement belongs to.
	Account  string
	Currency string
	// Delimiter defaults to a comma.
	Delimiter rune
	// DateFormat is a Go time layout. Empty means detect.
	DateFormat string
	// Negate flips the sign of every amount.
	Negate bool
	// Scale multiplies every amount. Zero means 1.
	Scale decimal.Decimal
	// DecimalComma reads "1.234,56" style numbers.
	DecimalComma bool
	Columns      Columns
}

type columns struct {
	date, payee, amount, debit, credit, note, balance int
}

// Adapter converts bank CSV statements.
type Adapter struct {
	cfg   Config
	cols  columns
	table *statement.Table

	dateLayout string
}

// New returns an adapter for cfg.
func New(cfg Config) *Adapter {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &Adapter{cfg: cfg, dateLayout: cfg.DateFormat}
}

// ReadData reads the CSV including its header line.
func (a *Adapter) ReadData(r io.Reader) (*statement.Table, error) {
	csvReader := csv.NewReader(r)
	csvReader.Comma = a.cfg.Delimiter
	csvReader.TrimLeadingSpace = true
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvRecords, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", statement.ErrFormat, err)
	}
	if len(csvRecords) == 0 {
		return nil, fmt.Errorf("%w: empty statement", statement.ErrFormat)
	}

	t := TableFromRecords(csvRecords, a.cfg.Columns.Date)
	if err := a.Load(t); err != nil {
		return nil, err
	}
	return t, nil
}

// TableFromRecords skips any preamble before the header line, which is the
// first record naming a date column, and pads short records.
func TableFromRecords(records [][]string, dateColumn string) *statement.Table {
	start := 0
	for i, rec := range records {
		if isHeader(rec, dateColumn) {
			start = i
			break
		}
	}
	header := records[start]

	var body [][]string
	for _, rec := range records[start+1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		switch {
		case len(rec) < len(header):
			rec = append(rec, make([]string, len(header)-len(rec))...)
		case len(rec) > len(header):
			rec = rec[:len(header)]
		}
		body = append(body, rec)
	}
	return statement.NewTable(header, body)
}

func isHeader(rec []string, dateColumn string) bool {
	for _, field := range rec {
		field = strings.ToLower(strings.TrimSpace(field))
		if dateColumn != "" && field == strings.ToLower(dateColumn) {
			return true
		}
		if dateColumn == "" && strings.Contains(field, "date") {
			return true
		}
	}
	return false
}

// Load prepares the adapter for a table read elsewhere.
func (a *Adapter) Load(t *statement.Table) error {
	cols := columns{-1, -1, -1, -1, -1, -1, -1}

	// Find columns from header
	for fieldIndex, fieldName := range t.Header {
		fieldName = strings.ToLower(strings.TrimSpace(fieldName))
		switch {
		case strings.Contains(fieldName, "date"):
			if cols.date < 0 {
				cols.date = fieldIndex
			}
		case strings.Contains(fieldName, "description"),
			strings.Contains(fieldName, "payee"),
			strings.Contains(fieldName, "counterparty"),
			strings.Contains(fieldName, "details"),
			fieldName == "name":
			if cols.payee < 0 {
				cols.payee = fieldIndex
			}
		case strings.Contains(fieldName, "balance"):
			cols.balance = fieldIndex
		case strings.Contains(fieldName, "amount"),
			strings.Contains(fieldName, "expense"):
			cols.amount = fieldIndex
		case strings.Contains(fieldName, "debit"),
			strings.Contains(fieldName, "withdrawal"),
			fieldName == "paid out":
			cols.debit = fieldIndex
		case strings.Contains(fieldName, "credit"),
			strings.Contains(fieldName, "deposit"),
			fieldName == "paid in":
			cols.credit = fieldIndex
		case strings.Contains(fieldName, "note"),
			strings.Contains(fieldName, "comment"),
			strings.Contains(fieldName, "memo"),
			strings.Contains(fieldName, "reference"):
			cols.note = fieldIndex
		}
	}

	for _, o := range []struct {
		name string
		dst  *int
	}{
		{a.cfg.Columns.Date, &cols.date},
		{a.cfg.Columns.Payee, &cols.payee},
		{a.cfg.Columns.Amount, &cols.amount},
		{a.cfg.Columns.Debit, &cols.debit},
		{a.cfg.Columns.Credit, &cols.credit},
		{a.cfg.Columns.Note, &cols.note},
		{a.cfg.Columns.Balance, &cols.balance},
	} {
		if o.name == "" {
			continue
		}
		i := t.Column(o.name)
		if i < 0 {
			return fmt.Errorf("%w: no column %q", statement.ErrFormat, o.name)
		}
		*o.dst = i
	}

	if cols.date < 0 || cols.payee < 0 || (cols.amount < 0 && cols.debit < 0 && cols.credit < 0) {
		return fmt.Errorf("%w: %w: %q", statement.ErrFormat, errMissingColumns, t.Header)
	}

	a.cols = cols
	a.table = t
	return nil
}

// StepData converts a row. Rows without a date or amount are skipped.
func (a *Adapter) StepData(index int, row statement.Row) (*ledger.Transaction, error) {
	dateField := row.At(a.cols.date)
	if dateField == "" {
		return nil, nil
	}
	amount, ok, err := a.amount(row)
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: %w", statement.ErrFormat, index, err)
	}
	if !ok {
		return nil, nil
	}
	transDate, err := a.parseDate(dateField)
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: %w", statement.ErrFormat, index, err)
	}

	trans := &ledger.Transaction{
		Date:  transDate,
		Payee: statement.Payee(row.At(a.cols.payee)),
		AccountChanges: []ledger.Account{
			{Name: a.cfg.Account, Currency: a.cfg.Currency, Balance: amount},
			{Name: ledger.UnknownAccount, Currency: a.cfg.Currency, Balance: amount.Neg()},
		},
	}
	trans.Comments = statement.AppendComment(nil, row.At(a.cols.note))
	return trans, nil
}

func (a *Adapter) amount(row statement.Row) (decimal.Decimal, bool, error) {
	var amount decimal.Decimal
	switch {
	case a.cols.amount >= 0:
		s := row.At(a.cols.amount)
		if s == "" {
			return amount, false, nil
		}
		d, err := parseAmount(s, a.cfg.DecimalComma)
		if err != nil {
			return amount, false, err
		}
		amount = d
	default:
		debit, credit := row.At(a.cols.debit), row.At(a.cols.credit)
		if debit == "" && credit == "" {
			return amount, false, nil
		}
		if debit != "" {
			d, err := parseAmount(debit, a.cfg.DecimalComma)
			if err != nil {
				return amount, false, err
			}
			amount = amount.Sub(d.Abs())
		}
		if credit != "" {
			c, err := parseAmount(credit, a.cfg.DecimalComma)
			if err != nil {
				return amount, false, err
			}
			amount = amount.Add(c.Abs())
		}
	}
	return a.adjust(amount), true, nil
}

func (a *Adapter) adjust(d decimal.Decimal) decimal.Decimal {
	// Negate amount if required
	if a.cfg.Negate {
		d = d.Neg()
	}
	// Apply scale
	if !a.cfg.Scale.IsZero() {
		d = d.Mul(a.cfg.Scale)
	}
	return d
}

func parseAmount(s string, decimalComma bool) (decimal.Decimal, error) {
	neg := false
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '-', r == '+', r == '.', r == ',':
			return r
		}
		return -1
	}, s)
	if decimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return d, err
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

func (a *Adapter) parseDate(s string) (time.Time, error) {
	if a.dateLayout != "" {
		if t, err := time.Parse(a.dateLayout, s); err == nil {
			return t, nil
		} else if a.cfg.DateFormat != "" {
			return t, err
		}
	}
	t, layout, err := date.ParseAndGetLayout(s)
	if err != nil {
		return t, fmt.Errorf("unable to parse date(%s): %w", s, err)
	}
	a.dateLayout = layout
	return t, nil
}

type rowBalance struct {
	date    time.Time
	amount  decimal.Decimal
	balance decimal.Decimal
}

func (a *Adapter) balanceAt(index int) (rowBalance, bool) {
	if a.table == nil || a.cols.balance < 0 || index < 0 || index >= a.table.Len() {
		return rowBalance{}, false
	}
	row := a.table.Row(index)
	s := row.At(a.cols.balance)
	dateField := row.At(a.cols.date)
	if s == "" || dateField == "" {
		return rowBalance{}, false
	}
	bal, err := parseAmount(s, a.cfg.DecimalComma)
	if err != nil {
		return rowBalance{}, false
	}
	amount, ok, err := a.amount(row)
	if err != nil || !ok {
		return rowBalance{}, false
	}
	d, err := a.parseDate(dateField)
	if err != nil {
		return rowBalance{}, false
	}
	return rowBalance{date: d, amount: amount, balance: a.adjust(bal)}, true
}

func (a *Adapter) assertion(d time.Time, amount decimal.Decimal) *ledger.BalanceAssertion {
	return &ledger.BalanceAssertion{
		Date:     d,
		Payee:    "Balance",
		Account:  a.cfg.Account,
		Currency: a.cfg.Currency,
		Amount:   amount,
	}
}

// InBalance returns the balance before the oldest row.
func (a *Adapter) InBalance() *ledger.BalanceAssertion {
	if a.table == nil {
		return nil
	}
	for i := a.table.Len() - 1; i >= 0; i-- {
		if rb, ok := a.balanceAt(i); ok {
			return a.assertion(rb.date, rb.balance.Sub(rb.amount))
		}
	}
	return nil
}

// OutBalance returns the balance after the newest row.
func (a *Adapter) OutBalance() *ledger.BalanceAssertion {
	if a.table == nil {
		return nil
	}
	for i := 0; i < a.table.Len(); i++ {
		if rb, ok := a.balanceAt(i); ok {
			return a.assertion(rb.date, rb.balance)
		}
	}
	return nil
}

// BalanceAtStep returns the balance before row index is applied.
func (a *Adapter) BalanceAtStep(index int) *ledger.BalanceAssertion {
	rb, ok := a.balanceAt(index)
	if !ok {
		return nil
	}
	return a.assertion(rb.date, rb.balance.Sub(rb.amount))
}
