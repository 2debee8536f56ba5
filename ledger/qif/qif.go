// Package qif reads non-investment Quicken Interchange Format exports.
package qif

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ErrTruncated is returned when the input ends inside a record.
var ErrTruncated = errors.New("qif: unexpected end of input inside record")

// Split is one line of a split transaction.
type Split struct {
	Category string // S
	Memo     string // E
	Amount   string // $
}

// Record is a non-investment QIF transaction. Fields keep their raw text.
type Record struct {
	// Type is taken from the last "!Type:" header, e.g. "Bank" or "Cash".
	Type string

	Date     string // D
	Amount   string // T, or U when present
	Number   string // N
	Payee    string // P
	Memo     string // M, multiple lines joined with '\n'
	Address  string // A, multiple lines joined with '\n'
	Cleared  string // C
	Category string // L
	Splits   []Split

	// Lines holds the field lines of the record without the end marker.
	Lines []string
}

// Decoder reads QIF records from an input stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads all records.
func (d *Decoder) Decode() ([]*Record, error) {
	var (
		records []*Record
		current *Record
		recType string
	)
	for {
		line, err := d.readLine()
		if err == io.EOF {
			if current != nil {
				return nil, ErrTruncated
			}
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "!Type:"):
			recType = strings.TrimSpace(line[len("!Type:"):])
		case strings.HasPrefix(line, "!"):
			// options and account lists are not transactions
		case line[0] == '^':
			if current != nil {
				records = append(records, current)
			}
			current = nil
		default:
			if current == nil {
				current = &Record{Type: recType}
			}
			current.set(line)
		}
	}
}

func (rec *Record) set(line string) {
	rec.Lines = append(rec.Lines, line)
	value := line[1:]

	switch line[0] {
	case 'D':
		rec.Date = value
	case 'T':
		if rec.Amount == "" {
			rec.Amount = value
		}
	case 'U':
		// higher precision amount wins over T
		rec.Amount = value
	case 'N':
		rec.Number = value
	case 'P':
		rec.Payee = value
	case 'M':
		rec.Memo = appendLine(rec.Memo, value)
	case 'A':
		rec.Address = appendLine(rec.Address, value)
	case 'C':
		rec.Cleared = value
	case 'L':
		rec.Category = value
	case 'S':
		rec.Splits = append(rec.Splits, Split{Category: value})
	case 'E':
		if s := rec.lastSplit(); s != nil {
			s.Memo = value
		}
	case '$':
		if s := rec.lastSplit(); s != nil {
			s.Amount = value
		}
	}
}

func (rec *Record) lastSplit() *Split {
	if len(rec.Splits) == 0 {
		return nil
	}
	return &rec.Splits[len(rec.Splits)-1]
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return s + "\n" + line
}

func (d *Decoder) readLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if err == io.EOF && line == "" {
		return "", io.EOF
	}
	return line, nil
}

// Parse reads all records from r.
func Parse(r io.Reader) ([]*Record, error) {
	return NewDecoder(r).Decode()
}
