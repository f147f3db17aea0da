package cryptobasis

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeTolerance is the maximum time between the two legs of a trade.
const DefaultTimeTolerance = 2 * time.Second

// MatchKind tells trades from transfers.
type MatchKind int

const (
	TradeMatch MatchKind = iota
	TransferMatch
)

func (k MatchKind) String() string {
	switch k {
	case TradeMatch:
		return "trade"
	case TransferMatch:
		return "transfer"
	default:
		return "unknown"
	}
}

func (k MatchKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Match records two entries recognized as the two legs of a single event.
//
// For a trade, A and B are the legs of the two symbols exchanged, priced at
// PriceA and PriceB. For a transfer, A is the withdrawal (source) and B the
// deposit (destination); Fee is the quantity lost on the way.
type Match struct {
	ID       string    `json:"id"`
	Kind     MatchKind `json:"kind"`
	A        Entry     `json:"a"`
	B        Entry     `json:"b"`
	PriceA   Money     `json:"price_a"`
	PriceB   Money     `json:"price_b"`
	Realized Money     `json:"realized"` // profit or loss realized when booking the match
	Fee      Quantity  `json:"fee"`
}

func (m Match) String() string {
	switch m.Kind {
	case TradeMatch:
		return fmt.Sprintf("trade %s: %s%s @%s <-> %s%s @%s", m.A.Exchange, m.A.Amount, m.A.Symbol, m.PriceA, m.B.Amount, m.B.Symbol, m.PriceB)
	default:
		return fmt.Sprintf("transfer %s: %s %s -> %s %s (fee %s)", m.A.Symbol, m.A.Amount, m.A.Exchange, m.B.Amount, m.B.Exchange, m.Fee)
	}
}

// Resolution is the outcome of resolving a matcher buffer.
type Resolution struct {
	Matches []Match
	Pending int // entries left in the buffer
}

// TradeMatcher buffers the trade legs of a single exchange until they can be
// paired into trades.
//
// Exchanges report a trade as two unrelated entries (one per asset), so legs
// are paired by shape: the buffer must hold exactly two symbols and as many
// incoming as outgoing entries. Each symbol's legs are then ordered by size and
// paired positionally, provided they are close enough in time.
type TradeMatcher struct {
	Exchange      string
	TimeTolerance time.Duration

	pending []Entry
	dirty   bool
}

// NewTradeMatcher creates an empty matcher for exchange.
func NewTradeMatcher(exchange string, tolerance time.Duration) *TradeMatcher {
	return &TradeMatcher{Exchange: exchange, TimeTolerance: tolerance}
}

// Add buffers a trade leg.
func (m *TradeMatcher) Add(e Entry) {
	m.pending = append(m.pending, e)
	m.dirty = true
}

// Pending returns a copy of the buffered entries.
func (m *TradeMatcher) Pending() []Entry { return slices.Clone(m.pending) }

// Len returns the number of buffered entries.
func (m *TradeMatcher) Len() int { return len(m.pending) }

// Dirty reports whether entries were added since the last resolution.
func (m *TradeMatcher) Dirty() bool { return m.dirty }

// canResolve checks the shape of the buffer and returns its two symbols,
// ordered by their earliest entry.
func (m *TradeMatcher) canResolve() (symbols [2]string, err error) {
	var positive, negative int
	var seen []string
	ordered := slices.Clone(m.pending)
	slices.SortStableFunc(ordered, compareEntries)
	for _, e := range ordered {
		switch {
		case e.Amount.IsPositive():
			positive++
		case e.Amount.IsNegative():
			negative++
		}
		if !slices.Contains(seen, e.Symbol) {
			seen = append(seen, e.Symbol)
		}
	}
	if len(seen) != 2 {
		return symbols, fmt.Errorf("%w: %d symbols in %d entries", ErrAmbiguousMatchBuffer, len(seen), len(m.pending))
	}
	if positive == 0 || positive != negative {
		return symbols, fmt.Errorf("%w: %d incoming vs %d outgoing entries", ErrAmbiguousMatchBuffer, positive, negative)
	}
	return [2]string{seen[0], seen[1]}, nil
}

// plan computes the pairs to accept and the entries to keep. It does not
// modify the matcher.
func (m *TradeMatcher) plan() (pairs [][2]Entry, rest []Entry, err error) {
	symbols, err := m.canResolve()
	if err != nil {
		return nil, nil, err
	}

	var bySymbol [2][]Entry
	for _, e := range m.pending {
		i := 0
		if e.Symbol == symbols[1] {
			i = 1
		}
		bySymbol[i] = append(bySymbol[i], e)
	}
	for i := range bySymbol {
		slices.SortStableFunc(bySymbol[i], compareMagnitude)
	}

	n := min(len(bySymbol[0]), len(bySymbol[1]))
	for i := range n {
		a, b := bySymbol[0][i], bySymbol[1][i]
		if absDiff(a.Time, b.Time) < m.TimeTolerance && a.Amount.Sign()*b.Amount.Sign() < 0 {
			pairs = append(pairs, [2]Entry{a, b})
			continue
		}
		rest = append(rest, a, b)
	}
	rest = append(rest, bySymbol[0][n:]...)
	rest = append(rest, bySymbol[1][n:]...)
	slices.SortStableFunc(rest, compareEntries)
	return pairs, rest, nil
}

// Resolve pairs the buffered legs and books every accepted trade in book.
//
// An ambiguous buffer is left untouched and reported as an error wrapping
// ErrAmbiguousMatchBuffer; more entries may lift the ambiguity later.
// Resolving an already resolved buffer changes nothing.
func (m *TradeMatcher) Resolve(ctx context.Context, book *Book, pricer Pricer) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{Pending: len(m.pending)}, err
	}
	m.dirty = false
	if len(m.pending) == 0 {
		return Resolution{}, nil
	}
	pairs, rest, err := m.plan()
	if err != nil {
		return Resolution{Pending: len(m.pending)}, err
	}

	matches := make([]Match, 0, len(pairs))
	for _, p := range pairs {
		a, b := p[0], p[1]
		priceA, priceB := pricer.PairPrices(ctx, a, b)
		realized := book.GetOrCreate(a.Symbol).Trade(a.Amount, priceA, a.Time)
		realized = realized.Add(book.GetOrCreate(b.Symbol).Trade(b.Amount, priceB, b.Time))
		matches = append(matches, Match{
			ID:       uuid.NewString(),
			Kind:     TradeMatch,
			A:        a,
			B:        b,
			PriceA:   priceA,
			PriceB:   priceB,
			Realized: realized,
		})
	}
	m.pending = rest
	return Resolution{Matches: matches, Pending: len(rest)}, nil
}
