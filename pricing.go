package cryptobasis

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Pricer values entries in USD. It is the only path from the matchers to the price oracle.
type Pricer interface {
	// UnitPrice returns the USD price of one unit of symbol at a given time.
	UnitPrice(ctx context.Context, symbol string, at time.Time) Money
	// PairPrices returns mutually consistent USD unit prices for the two legs of a trade.
	PairPrices(ctx context.Context, a, b Entry) (Money, Money)
}

// Pricing implements Pricer on top of a PriceOracle.
//
// Quote symbols (USD and stable coins) are worth 1 USD and never reach the
// oracle. A failing oracle degrades to the last known price of the symbol, or
// to zero, and records a PriceUnavailable warning.
type Pricing struct {
	oracle     PriceOracle
	quotes     map[string]bool
	references []string
	log        *zap.Logger

	lastKnown map[string]Money
	warnings  Warnings
	notify    func(Warning)
}

// NewPricing creates a Pricing. quotes are the USD equivalents, references
// the symbols preferred as the priced leg of a trade.
func NewPricing(oracle PriceOracle, quotes, references []string, log *zap.Logger) *Pricing {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pricing{
		oracle:     oracle,
		quotes:     make(map[string]bool),
		references: slices.Clone(references),
		log:        log,
		lastKnown:  make(map[string]Money),
	}
	for _, q := range quotes {
		p.quotes[q] = true
	}
	return p
}

// OnWarning registers f to be called with every warning recorded.
func (p *Pricing) OnWarning(f func(Warning)) { p.notify = f }

// Warnings returns the PriceUnavailable warnings recorded so far.
func (p *Pricing) Warnings() Warnings { return p.warnings }

// UnitPrice implements Pricer.
func (p *Pricing) UnitPrice(ctx context.Context, symbol string, at time.Time) Money {
	if p.quotes[symbol] {
		return USD(1)
	}
	if p.oracle == nil {
		return p.unavailable(symbol, at, errNoOracle)
	}
	price, err := p.oracle.USDPrice(ctx, symbol, at)
	if err != nil {
		return p.unavailable(symbol, at, err)
	}
	m := USD(price)
	p.lastKnown[symbol] = m
	return m
}

// Known returns the price of symbol at a given time, or false if none can be
// found. Unlike UnitPrice it records no warning.
func (p *Pricing) Known(ctx context.Context, symbol string, at time.Time) (Money, bool) {
	m, _, ok := p.valuation(ctx, symbol, at)
	return m, ok
}

// valuation is Known, and also reports whether the price is the last known
// one standing in for a failed lookup at time at.
func (p *Pricing) valuation(ctx context.Context, symbol string, at time.Time) (price Money, stale, ok bool) {
	if p.quotes[symbol] {
		return USD(1), false, true
	}
	if p.oracle != nil {
		if v, err := p.oracle.USDPrice(ctx, symbol, at); err == nil {
			m := USD(v)
			p.lastKnown[symbol] = m
			return m, false, true
		}
	}
	m, ok := p.lastKnown[symbol]
	return m, ok, ok
}

// PairPrices implements Pricer.
//
// One leg is priced directly, the other one through the ratio of the
// amounts exchanged: if a quote leg is present it is the priced one,
// otherwise the first leg found in the reference list, otherwise a.
func (p *Pricing) PairPrices(ctx context.Context, a, b Entry) (Money, Money) {
	switch {
	case p.quotes[a.Symbol]:
		return USD(1), ratio(USD(1), a, b)
	case p.quotes[b.Symbol]:
		return ratio(USD(1), b, a), USD(1)
	}

	ref, other, swapped := a, b, false
	if p.rank(b.Symbol) < p.rank(a.Symbol) {
		ref, other, swapped = b, a, true
	}
	refPrice := p.UnitPrice(ctx, ref.Symbol, ref.Time)
	otherPrice := ratio(refPrice, ref, other)
	if swapped {
		return otherPrice, refPrice
	}
	return refPrice, otherPrice
}

// rank returns the position of symbol in the reference list, or its length.
func (p *Pricing) rank(symbol string) int {
	if i := slices.Index(p.references, symbol); i >= 0 {
		return i
	}
	return len(p.references)
}

// ratio prices other knowing that |ref.Amount| units of ref, each worth
// refPrice, were exchanged for |other.Amount| units of other.
func ratio(refPrice Money, ref, other Entry) Money {
	if other.Amount.IsZero() {
		return USD(0)
	}
	return refPrice.Mul(ref.Amount.Abs()).Div(other.Amount.Abs())
}

func (p *Pricing) unavailable(symbol string, at time.Time, err error) Money {
	w := Warning{Kind: PriceUnavailable, Time: at, Symbol: symbol, Err: err}
	p.warnings = append(p.warnings, w)
	if p.notify != nil {
		p.notify(w)
	}
	if m, ok := p.lastKnown[symbol]; ok {
		p.log.Debug("price unavailable, using last known price", zap.String("symbol", symbol), zap.Time("at", at), zap.Stringer("price", m), zap.Error(err))
		return m
	}
	p.log.Debug("price unavailable, using zero", zap.String("symbol", symbol), zap.Time("at", at), zap.Error(err))
	return USD(0)
}
