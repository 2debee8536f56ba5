package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNeedAtLeastTwoPostings        = errors.New("need at least two postings")
	ErrNoEmptyAccountForExtraBalance = errors.New("unable to balance transaction: no empty account to place extra balance")
	ErrMoreThanOneEmptyAccountInTx   = errors.New("unable to balance transaction: more than one account empty")
)

// IsBalanced returns nil if the transaction is balanced to 0, otherwise an error.
//
// Postings are summed per currency. A transaction that mixes exactly two
// currencies without an explicit conversion is treated as an implicit
// conversion between them, as long as one side is paid and the other
// received. A single empty posting receives the remainder.
func (t *Transaction) IsBalanced() error {
	if len(t.AccountChanges) < 2 {
		return ErrNeedAtLeastTwoPostings
	}

	converted := false
	for _, acc := range t.AccountChanges {
		if acc.Converted != nil || acc.ConversionFactor != nil {
			converted = true
			break
		}
	}

	sums := map[string]decimal.Decimal{}
	var order []string
	var numEmpty int
	var emptyAccIndex int

	for i, acc := range t.AccountChanges {
		if acc.Balance.IsZero() && acc.Converted == nil {
			numEmpty++
			emptyAccIndex = i
			continue
		}

		// with explicit conversions everything lands in one pool
		key := acc.Currency
		if converted {
			key = ""
		}
		if _, ok := sums[key]; !ok {
			order = append(order, key)
			sums[key] = decimal.Zero
		}

		switch {
		case acc.Converted != nil:
			conv := acc.Converted.Abs()
			if acc.Balance.IsNegative() {
				conv = conv.Neg()
			}
			sums[key] = sums[key].Add(conv)
		case acc.ConversionFactor != nil:
			sums[key] = sums[key].Add(acc.Balance.Mul(*acc.ConversionFactor))
		default:
			sums[key] = sums[key].Add(acc.Balance)
		}
	}

	var open []string
	for _, cur := range order {
		if !sums[cur].IsZero() {
			open = append(open, cur)
		}
	}

	if len(open) == 0 {
		return nil
	}

	// two currencies offsetting each other; the sides must point in
	// opposite directions to be the legs of a conversion
	if len(order) == 2 && !converted && numEmpty == 0 {
		if sums[order[0]].Sign()*sums[order[1]].Sign() < 0 {
			return nil
		}
		return ErrNoEmptyAccountForExtraBalance
	}

	switch numEmpty {
	case 0:
		return ErrNoEmptyAccountForExtraBalance
	case 1:
		if len(open) > 1 {
			return ErrNoEmptyAccountForExtraBalance
		}
		// If there is a single empty account, then it is obvious where to
		// place the remaining balance.
		t.AccountChanges[emptyAccIndex].Balance = sums[open[0]].Neg()
		if t.AccountChanges[emptyAccIndex].Currency == "" {
			t.AccountChanges[emptyAccIndex].Currency = open[0]
		}
	default:
		return ErrMoreThanOneEmptyAccountInTx
	}

	return nil
}
