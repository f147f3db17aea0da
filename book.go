package cryptobasis

import (
	"iter"
	"maps"
	"slices"
)

// Book is the registry of all cost bases, one per asset symbol.
//
// Cost bases are created on first reference and live as long as the book.
type Book struct {
	method    CostBasisMethod
	shortfall ShortfallPolicy
	pinned    map[string]bool
	market    MarketPriceFunc
	notify    func(Warning)

	bases map[string]*CostBasis
}

// NewBook creates an empty book. Symbols listed in pinned (typically "USD")
// get a cost basis pinned at 1 USD per unit.
func NewBook(method CostBasisMethod, shortfall ShortfallPolicy, pinned ...string) *Book {
	b := &Book{
		method:    method,
		shortfall: shortfall,
		pinned:    make(map[string]bool),
		bases:     make(map[string]*CostBasis),
	}
	for _, s := range pinned {
		b.pinned[s] = true
	}
	return b
}

// SetMarketPrice sets the price source used to value lot shortfalls.
func (b *Book) SetMarketPrice(f MarketPriceFunc) {
	b.market = f
	for _, cb := range b.bases {
		cb.market = f
	}
}

// OnWarning registers f to be called with every warning recorded by a cost basis.
func (b *Book) OnWarning(f func(Warning)) {
	b.notify = f
	for _, cb := range b.bases {
		cb.notify = f
	}
}

// IsPinned reports whether symbol is pinned at 1 USD.
func (b *Book) IsPinned(symbol string) bool { return b.pinned[symbol] }

// GetOrCreate returns the cost basis of symbol, creating it if needed.
func (b *Book) GetOrCreate(symbol string) *CostBasis {
	if cb, ok := b.bases[symbol]; ok {
		return cb
	}
	var cb *CostBasis
	if b.pinned[symbol] {
		cb = NewPinnedCostBasis(symbol)
	} else {
		cb = NewCostBasis(symbol, b.method)
	}
	cb.shortfall = b.shortfall
	cb.market = b.market
	cb.notify = b.notify
	b.bases[symbol] = cb
	return cb
}

// Get returns the cost basis of symbol, or nil if it was never referenced.
func (b *Book) Get(symbol string) *CostBasis { return b.bases[symbol] }

// Symbols returns all symbols in alphabetical order.
func (b *Book) Symbols() iter.Seq[string] {
	return slices.Values(slices.Sorted(maps.Keys(b.bases)))
}

// RealizedProfitLoss returns the realized profit or loss across all assets.
func (b *Book) RealizedProfitLoss() Money {
	total := USD(0)
	for _, cb := range b.bases {
		total = total.Add(cb.RealizedProfitLoss())
	}
	return total
}

// EstimatedProfitLoss returns the part of RealizedProfitLoss that comes from shortfall valuation.
func (b *Book) EstimatedProfitLoss() Money {
	total := USD(0)
	for _, cb := range b.bases {
		total = total.Add(cb.EstimatedProfitLoss())
	}
	return total
}

// Warnings collects the warnings of all cost bases, in symbol order.
func (b *Book) Warnings() Warnings {
	var ws Warnings
	for symbol := range b.Symbols() {
		ws = append(ws, b.bases[symbol].Warnings()...)
	}
	return ws
}
