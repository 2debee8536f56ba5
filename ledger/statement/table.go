package statement

import (
	"fmt"
	"slices"
	"strings"
)

// Table is the tabular form of a statement.
type Table struct {
	Header  []string
	Records [][]string

	index map[string]int
}

// NewTable builds a table from a header and its records.
func NewTable(header []string, records [][]string) *Table {
	return &Table{Header: header, Records: records}
}

// Validate checks that every record has one field per header column.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: no table", ErrContractViolation)
	}
	if len(t.Header) == 0 && len(t.Records) > 0 {
		return fmt.Errorf("%w: table without header", ErrContractViolation)
	}
	for i, rec := range t.Records {
		if len(rec) != len(t.Header) {
			return fmt.Errorf("%w: record %d has %d fields, header has %d", ErrContractViolation, i, len(rec), len(t.Header))
		}
	}
	return nil
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.Records) }

// Row returns record i.
func (t *Table) Row(i int) Row {
	return Row{table: t, Fields: t.Records[i]}
}

// Column returns the index of a header column, matched case-insensitively,
// or -1.
func (t *Table) Column(name string) int {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Header))
		for i, h := range t.Header {
			key := strings.ToLower(strings.TrimSpace(h))
			if _, dup := t.index[key]; !dup {
				t.index[key] = i
			}
		}
	}
	if i, ok := t.index[strings.ToLower(strings.TrimSpace(name))]; ok {
		return i
	}
	return -1
}

// Reverse flips the record order in place. Adapters for formats listed
// oldest first use it to hand out newest-first tables.
func (t *Table) Reverse() {
	slices.Reverse(t.Records)
}

// Row is a single statement record.
type Row struct {
	table  *Table
	Fields []string
}

// Get returns the trimmed value of the named column, or "" if the table has
// no such column.
func (r Row) Get(column string) string {
	if r.table == nil {
		return ""
	}
	i := r.table.Column(column)
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return strings.TrimSpace(r.Fields[i])
}

// At returns the trimmed field at position i, or "".
func (r Row) At(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return strings.TrimSpace(r.Fields[i])
}

// SortNewestFirst orders the records by the ISO dates (2006-01-02) in
// column col, newest first. Records of the same day end up in reverse
// input order, which keeps files listed oldest first consistent.
func (t *Table) SortNewestFirst(col int) {
	slices.Reverse(t.Records)
	slices.SortStableFunc(t.Records, func(a, b []string) int {
		return strings.Compare(b[col], a[col])
	})
}
