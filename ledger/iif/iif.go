// Package iif reads QuickBooks Intuit Interchange Format files.
//
// An IIF file is a tab separated list of blocks. Each block starts with one
// or more header lines ("!TRNS", "!SPL", "!ENDTRNS") followed by record
// groups that repeat the header types in order.
package iif

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrMismatchedRecords = errors.New("iif: row does not match expected header")
	ErrEmptyHeader       = errors.New("iif: record without header")
)

type RecordType string

type Header struct {
	Type   RecordType
	Fields []string
}

// Record maps header field names to the raw values of one line.
type Record struct {
	Type   RecordType
	Fields map[string]string
}

type Block struct {
	Headers []Header
	Records [][]Record
}

type File struct {
	Blocks []Block
}

// Decoder reads an IIF file line by line. The current line is exposed
// through IsHeader, Type and Fields.
type Decoder struct {
	r    *csv.Reader
	err  error
	line int

	IsHeader bool
	Type     RecordType
	Fields   []string
}

// NewDecoder returns a decoder positioned on the first line of r.
func NewDecoder(r io.Reader) *Decoder {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	d := &Decoder{r: reader}
	d.Next()
	return d
}

// Next advances to the following line.
func (d *Decoder) Next() {
	fields, err := d.r.Read()
	d.err = err
	if err != nil {
		return
	}
	d.line++
	kind := strings.TrimSpace(fields[0])
	d.IsHeader = strings.HasPrefix(kind, "!")
	d.Type = RecordType(strings.TrimPrefix(kind, "!"))
	d.Fields = fields[1:]
}

// Error returns the read error, if any. The end of input is not an error.
func (d *Decoder) Error() error {
	if d.err == io.EOF {
		return nil
	}
	return d.err
}

// Done reports whether the input is exhausted or failed.
func (d *Decoder) Done() bool {
	return d.err != nil
}

// Decode reads the whole file.
func (d *Decoder) Decode() (*File, error) {
	f := &File{}
	for !d.Done() {
		var b Block
		if err := b.load(d); err != nil {
			return nil, fmt.Errorf("line %d: %w", d.line, err)
		}
		f.Blocks = append(f.Blocks, b)
	}
	if err := d.Error(); err != nil {
		return nil, err
	}
	return f, nil
}

// MapFields names the values of a record line after the header fields.
func (h Header) MapFields(values []string) map[string]string {
	m := make(map[string]string, len(h.Fields))
	for i, name := range h.Fields {
		if i >= len(values) {
			break
		}
		m[name] = values[i]
	}
	return m
}

func (b *Block) load(d *Decoder) error {
	for !d.Done() && d.IsHeader {
		b.Headers = append(b.Headers, Header{Type: d.Type, Fields: trimTrailingEmpty(d.Fields)})
		d.Next()
	}
	if err := d.Error(); err != nil {
		return err
	}

	for !d.Done() && !d.IsHeader {
		if len(b.Headers) == 0 {
			return ErrEmptyHeader
		}
		var group []Record
		for _, h := range b.Headers {
			if d.Done() || d.IsHeader || d.Type != h.Type {
				return fmt.Errorf("%w: want %s, got %s", ErrMismatchedRecords, h.Type, d.Type)
			}
			for !d.Done() && !d.IsHeader && d.Type == h.Type {
				group = append(group, Record{Type: d.Type, Fields: h.MapFields(d.Fields)})
				d.Next()
			}
		}
		b.Records = append(b.Records, group)
	}
	return d.Error()
}

func trimTrailingEmpty(fields []string) []string {
	for i, f := range fields {
		if f == "" {
			return fields[:i]
		}
	}
	return fields
}

// Parse decodes the IIF file in r.
func Parse(r io.Reader) (*File, error) {
	return NewDecoder(r).Decode()
}
