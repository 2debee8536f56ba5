package dedup

import (
	"slices"

	"github.com/plenert/ledger"
)

// Ingester places accepted entries into a ledger in date order.
type Ingester struct {
	initial int
	added   int
}

// NewIngester returns an ingester for a run that starts with entries.
func NewIngester(entries []ledger.Entry) *Ingester {
	return &Ingester{initial: len(entries)}
}

// Ingest returns a new ledger with entry inserted after the last dated entry
// that is not later than it. Undated entries are left where they are, and
// the passed slice is never modified.
func (in *Ingester) Ingest(entry ledger.Entry, entries []ledger.Entry) []ledger.Entry {
	pos := insertPos(entries, entry)
	out := make([]ledger.Entry, 0, len(entries)+1)
	out = append(out, entries[:pos]...)
	out = append(out, entry)
	out = append(out, entries[pos:]...)
	in.added++
	return out
}

// Added returns how many entries were ingested.
func (in *Ingester) Added() int { return in.added }

// Initial returns the ledger size the run started with.
func (in *Ingester) Initial() int { return in.initial }

func insertPos(entries []ledger.Entry, entry ledger.Entry) int {
	d := entry.EntryDate()
	firstDated := -1
	for i := len(entries) - 1; i >= 0; i-- {
		ed := entries[i].EntryDate()
		if ed.IsZero() {
			continue
		}
		firstDated = i
		if !ed.After(d) {
			return i + 1
		}
	}
	if firstDated >= 0 {
		return firstDated
	}
	return len(entries)
}

// IsOrdered reports whether the dated transactions of entries are in
// non-decreasing date order.
func IsOrdered(entries []ledger.Entry) bool {
	return slices.IsSortedFunc(ledger.Transactions(entries), func(a, b *ledger.Transaction) int {
		return a.Date.Compare(b.Date)
	})
}
