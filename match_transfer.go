package cryptobasis

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultAmountTolerance is the maximum relative difference between the two
// legs of a transfer.
var DefaultAmountTolerance = decimal.RequireFromString("0.05")

// TransferMatcher buffers the transfers of a single symbol until a withdrawal
// on one exchange can be paired with a deposit on another.
//
// Pairs are searched greedily, smallest amounts first: the first pair whose
// amounts cancel out within AmountTolerance is accepted, and no entry is
// matched twice. Transfers carry no timing constraint.
type TransferMatcher struct {
	Symbol          string
	AmountTolerance decimal.Decimal
	// External reports exchanges whose entries are outside of the books (bank
	// accounts). A fee is never booked for a transfer involving them.
	External func(exchange string) bool

	pending []Entry
	dirty   bool
}

// NewTransferMatcher creates an empty matcher for symbol.
func NewTransferMatcher(symbol string, tolerance decimal.Decimal) *TransferMatcher {
	return &TransferMatcher{Symbol: symbol, AmountTolerance: tolerance}
}

// Add buffers a transfer leg.
func (m *TransferMatcher) Add(e Entry) {
	m.pending = append(m.pending, e)
	m.dirty = true
}

// Pending returns a copy of the buffered entries.
func (m *TransferMatcher) Pending() []Entry { return slices.Clone(m.pending) }

// Len returns the number of buffered entries.
func (m *TransferMatcher) Len() int { return len(m.pending) }

// Dirty reports whether entries were added since the last resolution.
func (m *TransferMatcher) Dirty() bool { return m.dirty }

// delta returns |a+b| / max(|a|,|b|), and false if both amounts are zero.
func delta(a, b Quantity) (decimal.Decimal, bool) {
	largest := decimal.Max(a.value.Abs(), b.value.Abs())
	if largest.IsZero() {
		return decimal.Zero, false
	}
	return a.value.Add(b.value).Abs().Div(largest), true
}

// plan returns the accepted (source, destination) pairs and the entries left.
// It does not modify the matcher.
func (m *TransferMatcher) plan() (pairs [][2]Entry, rest []Entry) {
	ordered := slices.Clone(m.pending)
	slices.SortStableFunc(ordered, compareMagnitude)

	used := make([]bool, len(ordered))
	for i := range ordered {
		for j := range ordered {
			if i == j || used[i] || used[j] {
				continue
			}
			a, b := ordered[i], ordered[j]
			if a.Exchange == b.Exchange {
				continue
			}
			d, ok := delta(a.Amount, b.Amount)
			if !ok || !d.LessThan(m.AmountTolerance) {
				continue
			}
			used[i], used[j] = true, true
			if a.Amount.GreaterThan(b.Amount) {
				a, b = b, a
			}
			pairs = append(pairs, [2]Entry{a, b})
		}
	}
	for i, e := range ordered {
		if !used[i] {
			rest = append(rest, e)
		}
	}
	slices.SortStableFunc(rest, compareEntries)
	return pairs, rest
}

// Resolve pairs the buffered transfers. Both legs already moved the balances
// when they were recorded: the only booking left is the network fee, the
// quantity withdrawn but never deposited, written off as a loss valued at the
// price of the symbol at withdrawal time.
func (m *TransferMatcher) Resolve(ctx context.Context, book *Book, pricer Pricer) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{Pending: len(m.pending)}, err
	}
	m.dirty = false
	if len(m.pending) < 2 {
		return Resolution{Pending: len(m.pending)}, nil
	}
	pairs, rest := m.plan()

	matches := make([]Match, 0, len(pairs))
	for _, p := range pairs {
		src, dst := p[0], p[1]
		match := Match{
			ID:       uuid.NewString(),
			Kind:     TransferMatch,
			A:        src,
			B:        dst,
			PriceA:   USD(0),
			PriceB:   USD(0),
			Realized: USD(0),
		}
		fee := src.Amount.Abs().Sub(dst.Amount.Abs())
		if fee.IsPositive() && !m.external(src, dst) && !book.IsPinned(m.Symbol) {
			price := pricer.UnitPrice(ctx, m.Symbol, src.Time)
			match.Fee = fee
			match.PriceA, match.PriceB = price, price
			match.Realized = book.GetOrCreate(m.Symbol).writeOff(fee, price, src.Time)
		}
		matches = append(matches, match)
	}
	m.pending = rest
	return Resolution{Matches: matches, Pending: len(rest)}, nil
}

func (m *TransferMatcher) external(entries ...Entry) bool {
	if m.External == nil {
		return false
	}
	for _, e := range entries {
		if m.External(e.Exchange) {
			return true
		}
	}
	return false
}
