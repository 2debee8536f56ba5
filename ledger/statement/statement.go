// Package statement defines the contract between statement format adapters
// and the import pipeline.
//
// An adapter turns a provider export into a Table whose rows are ordered
// newest first, and converts single rows into candidate transactions. The
// statement's own account is always the first posting of a candidate; the
// counter posting uses ledger.UnknownAccount until it is classified.
package statement

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/plenert/ledger"
)

var (
	// ErrContractViolation is returned when an adapter produces data of the
	// wrong shape.
	ErrContractViolation = errors.New("statement adapter contract violation")
	// ErrNotImplemented is returned by adapters that lack a required method.
	ErrNotImplemented = errors.New("statement adapter method not implemented")
	// ErrFormat is returned when a statement cannot be read into a table.
	ErrFormat = errors.New("malformed statement")
)

// Adapter converts one provider's statement export.
type Adapter interface {
	// ReadData reads the whole statement into a table, newest row first.
	ReadData(r io.Reader) (*Table, error)
	// StepData converts one row into a candidate transaction. A nil
	// transaction with a nil error skips the row.
	StepData(index int, row Row) (*ledger.Transaction, error)
}

// InBalancer is implemented by adapters that know the balance before the
// first statement row.
type InBalancer interface {
	InBalance() *ledger.BalanceAssertion
}

// OutBalancer is implemented by adapters that know the closing balance.
type OutBalancer interface {
	OutBalance() *ledger.BalanceAssertion
}

// StepBalancer is implemented by adapters that know the balance before a
// given row is applied.
type StepBalancer interface {
	BalanceAtStep(index int) *ledger.BalanceAssertion
}

// Unimplemented can be embedded by adapters under construction. Both
// required methods fail with ErrNotImplemented.
type Unimplemented struct{}

func (Unimplemented) ReadData(io.Reader) (*Table, error) { return nil, ErrNotImplemented }

func (Unimplemented) StepData(int, Row) (*ledger.Transaction, error) {
	return nil, ErrNotImplemented
}

// RulesPath returns the rule file used for an adapter.
func RulesPath(dir, adapterName string) string {
	return filepath.Join(dir, adapterName+".rules")
}

// Payee returns a cleaned payee, never empty. A ";" would start the payee
// comment in the ledger file and is replaced by ",".
func Payee(s string) string {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, ";", ",")), " ")
	if s == "" {
		return "Unknown payee"
	}
	return s
}

// Comment returns a one line ledger comment holding text, or "" when text
// is blank. Line breaks inside text are folded into spaces.
func Comment(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	return "; " + text
}

// AppendComment adds Comment(text) to comments unless it is empty.
func AppendComment(comments []string, text string) []string {
	if c := Comment(text); c != "" {
		return append(comments, c)
	}
	return comments
}
