package iif

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the QuickBooks date format.
const DateLayout = "1/2/2006"

// Transaction is a TRNS line with its SPL lines.
type Transaction struct {
	Trns   Line   `type:"TRNS"`
	Splits []Line `type:"SPL"`
}

// Line holds the fields shared by TRNS and SPL lines.
type Line struct {
	TransactionType string          `iif:"TRNSTYPE"`
	Date            time.Time       `iif:"DATE"`
	Account         string          `iif:"ACCNT"`
	Name            string          `iif:"NAME"`
	Class           string          `iif:"CLASS"`
	Amount          decimal.Decimal `iif:"AMOUNT"`
	DocNum          string          `iif:"DOCNUM"`
	Memo            string          `iif:"MEMO"`
}

// Transactions returns the transactions of every block in f.
func (f *File) Transactions() ([]Transaction, error) {
	var out []Transaction
	for _, b := range f.Blocks {
		txs, err := DeserializeTransactions(b)
		if err != nil {
			return nil, err
		}
		out = append(out, txs...)
	}
	return out, nil
}

// DeserializeTransactions converts the record groups of b. Blocks without
// TRNS lines yield nothing.
func DeserializeTransactions(b Block) ([]Transaction, error) {
	var out []Transaction
	for _, group := range b.Records {
		if len(group) == 0 || group[0].Type != "TRNS" {
			continue
		}
		var tx Transaction
		for _, r := range group {
			if err := applyRecord(&tx, r); err != nil {
				return nil, fmt.Errorf("%s: %w", r.Type, err)
			}
		}
		out = append(out, tx)
	}
	return out, nil
}

func applyRecord(tx *Transaction, r Record) error {
	v := reflect.ValueOf(tx).Elem()
	t := v.Type()
	for i, n := 0, t.NumField(); i < n; i++ {
		if t.Field(i).Tag.Get("type") != string(r.Type) {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Slice {
			elem := reflect.New(fv.Type().Elem()).Elem()
			if err := populate(elem, r); err != nil {
				return err
			}
			fv.Set(reflect.Append(fv, elem))
			return nil
		}
		return populate(fv, r)
	}
	return nil
}

func populate(v reflect.Value, r Record) error {
	t := v.Type()
	for i, n := 0, t.NumField(); i < n; i++ {
		sf := t.Field(i)
		raw, ok := r.Fields[sf.Tag.Get("iif")]
		if !ok {
			continue
		}
		if err := setField(v.Field(i), strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("field %s: %w", sf.Name, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, s string) error {
	switch fv.Interface().(type) {
	case string:
		fv.SetString(s)
	case time.Time:
		if s == "" {
			return nil
		}
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
	case decimal.Decimal:
		if s == "" {
			return nil
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(d))
	default:
		return fmt.Errorf("unsupported type %s", fv.Type())
	}
	return nil
}
