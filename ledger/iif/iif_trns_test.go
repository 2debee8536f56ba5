package iif_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plenert/ledger/ledger/iif"
)

func TestDeserializeTransactions(t *testing.T) {
	tests := []struct {
		name    string
		b       iif.Block
		want    []iif.Transaction
		wantErr bool
	}{
		{
			name: "empty",
			b: iif.Block{
				Headers: []iif.Header{
					{Type: iif.RecordType("ACCNT"), Fields: []string{"NAME", "ACCNTTYPE", "DESC", "ACCNUM", "EXTRA"}},
				},
			},
			want: nil,
		},
		{
			name: "deposit",
			b:    iif.Block{Records: depositRecords},
			want: []iif.Transaction{
				{
					Trns: iif.Line{
						TransactionType: "DEPOSIT",
						Date:            time.Date(1998, 7, 1, 0, 0, 0, 0, time.UTC),
						Account:         "Checking",
						Amount:          decimal.NewFromInt(10000),
					},
					Splits: []iif.Line{
						{
							TransactionType: "DEPOSIT",
							Date:            time.Date(1998, 7, 1, 0, 0, 0, 0, time.UTC),
							Account:         "Income",
							Name:            "Customer",
							Amount:          decimal.NewFromInt(-10000),
						},
					},
				},
			},
		},
		{
			name: "bad amount",
			b: iif.Block{Records: [][]iif.Record{{
				{Type: "TRNS", Fields: map[string]string{"AMOUNT": "ten"}},
			}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotErr := iif.DeserializeTransactions(tt.b)
			if gotErr != nil {
				if !tt.wantErr {
					t.Errorf("DeserializeTransactions() failed: %v", gotErr)
				}
				return
			}
			if tt.wantErr {
				t.Fatal("DeserializeTransactions() succeeded unexpectedly")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DeserializeTransactions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
