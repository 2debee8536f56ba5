// Package xls reads legacy Excel statement exports. Column handling is
// shared with the bankcsv adapter; only the container format differs.
package xls

import (
	"bytes"
	"fmt"
	"io"

	exls "github.com/extrame/xls"

	"github.com/plenert/ledger/ledger/bankcsv"
	"github.com/plenert/ledger/ledger/statement"
)

// Name identifies the adapter.
const Name = "XLS"

// maxRows bounds the rows read from the first sheet.
const maxRows = 100000

// Adapter converts the first sheet of an XLS workbook.
type Adapter struct {
	*bankcsv.Adapter
	cfg bankcsv.Config
}

// New returns an adapter. Delimiter and DecimalComma of cfg apply to cell
// text the same way they do for CSV fields.
func New(cfg bankcsv.Config) *Adapter {
	return &Adapter{Adapter: bankcsv.New(cfg), cfg: cfg}
}

// ReadData reads the workbook.
func (a *Adapter) ReadData(r io.Reader) (t *statement.Table, err error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		rs = bytes.NewReader(data)
	}

	// the decoder panics on some damaged workbooks
	defer func() {
		if p := recover(); p != nil {
			t, err = nil, fmt.Errorf("%w: %v", statement.ErrFormat, p)
		}
	}()

	wb, err := exls.OpenReader(rs, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", statement.ErrFormat, err)
	}
	return a.FromCells(wb.ReadAllCells(maxRows))
}

// FromCells builds the table from sheet cells, skipping any preamble above
// the header row.
func (a *Adapter) FromCells(cells [][]string) (*statement.Table, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: empty workbook", statement.ErrFormat)
	}
	t := bankcsv.TableFromRecords(cells, a.cfg.Columns.Date)
	if err := a.Load(t); err != nil {
		return nil, err
	}
	return t, nil
}
