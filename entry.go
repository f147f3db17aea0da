package cryptobasis

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Entry is a single canonical ledger record: one asset moving in or out of one
// exchange account. Positive amounts enter the account, negative ones leave it.
//
// Entries carry no transaction identifier: the two legs of a trade or of a
// transfer are only related by time, exchange and amount.
type Entry struct {
	Time     time.Time `json:"time"`
	Exchange string    `json:"exchange"`
	Class    TxClass   `json:"class"`
	Symbol   string    `json:"symbol"`
	Amount   Quantity  `json:"amount"`
	// Seq is the position of the entry in its input stream. It breaks ties
	// between entries sharing the same timestamp.
	Seq int `json:"-"`

	classErr error // why Class is invalid, when decoded from an unknown class
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s %s%s", e.Time.Format(time.RFC3339), e.Exchange, e.Class, e.Amount, e.Symbol)
}

// compareEntries orders entries by time, then by input position.
func compareEntries(a, b Entry) int {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// compareMagnitude orders entries by absolute amount, then by time and input position.
func compareMagnitude(a, b Entry) int {
	if c := a.Amount.Abs().value.Cmp(b.Amount.Abs().value); c != 0 {
		return c
	}
	return compareEntries(a, b)
}

// SortEntries sorts entries chronologically. Entries sharing the same
// timestamp keep their input order (Seq).
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, compareEntries)
}

// Sequence assigns Seq from the current slice order, starting at offset.
func Sequence(entries []Entry, offset int) {
	for i := range entries {
		entries[i].Seq = offset + i
	}
}

// absDiff returns |a - b| as a duration.
func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
