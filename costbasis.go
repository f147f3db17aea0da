package cryptobasis

import (
	"fmt"
	"time"
)

// ShortfallPolicy decides how units disposed of beyond the quantity held in
// lots are valued. Such a shortfall always means an upstream data gap (a
// missing buy, an untracked deposit): the resulting profit or loss is an
// estimate and is reported separately as EstimatedProfitLoss.
type ShortfallPolicy int

const (
	// ShortfallAtMarket values the missing units at the market price at the
	// time of the disposal, so they realize (almost) no gain.
	ShortfallAtMarket ShortfallPolicy = iota
	// ShortfallZeroCost gives the missing units a zero cost basis, so their
	// whole proceeds are realized as gain.
	ShortfallZeroCost
)

func (p ShortfallPolicy) String() string {
	switch p {
	case ShortfallAtMarket:
		return "market"
	case ShortfallZeroCost:
		return "zero"
	default:
		return "unknown"
	}
}

// ParseShortfallPolicy parses "market" or "zero".
func ParseShortfallPolicy(s string) (ShortfallPolicy, error) {
	switch s {
	case "market":
		return ShortfallAtMarket, nil
	case "zero":
		return ShortfallZeroCost, nil
	default:
		return 0, fmt.Errorf("unknown shortfall policy: %q", s)
	}
}

func (p ShortfallPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *ShortfallPolicy) UnmarshalText(text []byte) (err error) {
	*p, err = ParseShortfallPolicy(string(text))
	return err
}

// Category is the reporting category of a disposal.
type Category int

const (
	Sale Category = iota
	FeePaid
	Lost
	numCategories
)

func (c Category) String() string {
	switch c {
	case Sale:
		return "sale"
	case FeePaid:
		return "fee"
	case Lost:
		return "loss"
	default:
		return "unknown"
	}
}

// MarketPriceFunc returns the best available market price of one unit of
// symbol at a given time. ok is false when no price is known.
type MarketPriceFunc func(symbol string, at time.Time) (price Money, ok bool)

// CostBasis tracks the holding and the cost basis of a single asset.
//
// With FIFO and LIFO the holding is kept as a queue of lots; AverageCost only
// keeps a running weighted average. Balance is the raw signed sum of all
// movements, including transfers that carry no cost information, and it may
// differ from the quantity held in lots.
type CostBasis struct {
	Symbol string
	Method CostBasisMethod

	pinned    bool            // unit cost pinned at 1, excluded from P&L (USD)
	shortfall ShortfallPolicy // valuation of units not covered by lots
	market    MarketPriceFunc // optional, used by ShortfallAtMarket
	notify    func(Warning)   // optional

	balance         Quantity
	averageUnitCost Money
	lots            lots     // FIFO and LIFO
	held            Quantity // AverageCost: quantity covered by averageUnitCost

	realized       [numCategories]Money
	estimated      Money    // part of realized computed from shortfalls
	shortfallTotal Quantity // cumulated quantity not covered by lots
	warnings       Warnings
}

// NewCostBasis creates an empty cost basis for symbol.
func NewCostBasis(symbol string, method CostBasisMethod) *CostBasis {
	return &CostBasis{
		Symbol:          symbol,
		Method:          method,
		averageUnitCost: USD(0),
	}
}

// NewPinnedCostBasis creates a cost basis whose unit cost is always 1 USD.
// It only tracks a balance and never realizes any profit or loss.
func NewPinnedCostBasis(symbol string) *CostBasis {
	cb := NewCostBasis(symbol, AverageCost)
	cb.pinned = true
	cb.averageUnitCost = USD(1)
	return cb
}

// Balance returns the raw signed balance.
func (cb *CostBasis) Balance() Quantity { return cb.balance }

// AverageUnitCost returns the average USD cost of one unit held.
func (cb *CostBasis) AverageUnitCost() Money { return cb.averageUnitCost }

// Pinned reports whether the unit cost is pinned at 1.
func (cb *CostBasis) Pinned() bool { return cb.pinned }

// RealizedProfitLoss returns the total realized profit or loss, all categories included.
func (cb *CostBasis) RealizedProfitLoss() Money {
	total := USD(0)
	for _, r := range cb.realized {
		total = total.Add(r)
	}
	return total
}

// RealizedBy returns the realized profit or loss of a single category.
func (cb *CostBasis) RealizedBy(c Category) Money { return cb.realized[c].Add(USD(0)) }

// EstimatedProfitLoss returns the part of the realized profit or loss that
// comes from shortfall valuation rather than from actual lots.
func (cb *CostBasis) EstimatedProfitLoss() Money { return cb.estimated.Add(USD(0)) }

// Shortfall returns the cumulated quantity disposed of without matching lots.
func (cb *CostBasis) Shortfall() Quantity { return cb.shortfallTotal }

// Lots returns a copy of the open lots, oldest first.
func (cb *CostBasis) Lots() []Lot { return cb.lots.view() }

// LotQuantity returns the quantity that carries a cost basis.
func (cb *CostBasis) LotQuantity() Quantity {
	if cb.Method == AverageCost {
		return cb.held
	}
	return cb.lots.quantity()
}

// TotalCost returns the cost basis of the quantity held.
func (cb *CostBasis) TotalCost() Money {
	if cb.pinned {
		return cb.averageUnitCost.Mul(MaxQ(cb.balance, Q(0)))
	}
	if cb.Method == AverageCost {
		return cb.averageUnitCost.Mul(cb.held)
	}
	return cb.lots.cost()
}

// UnrealizedProfitLoss returns the paper gain of the quantity held at a given market price.
func (cb *CostBasis) UnrealizedProfitLoss(marketPrice Money) Money {
	if cb.pinned {
		return USD(0)
	}
	return marketPrice.Mul(cb.LotQuantity()).Sub(cb.TotalCost())
}

// Warnings returns the warnings recorded by this cost basis.
func (cb *CostBasis) Warnings() Warnings { return cb.warnings }

// Transfer moves amount in or out without any economic event: lots and
// realized profit are untouched.
func (cb *CostBasis) Transfer(amount Quantity, at time.Time) {
	next := cb.balance.Add(amount)
	if cb.balance.IsPositive() && next.IsNegative() {
		cb.warn(NegativeBalance, at, next, nil)
	}
	cb.balance = next
}

// Trade buys when amount is positive and sells when it is negative.
func (cb *CostBasis) Trade(amount Quantity, unitPrice Money, at time.Time) Money {
	switch {
	case amount.IsPositive():
		return cb.Buy(amount, unitPrice, at)
	case amount.IsNegative():
		return cb.Sell(amount, unitPrice, at)
	default:
		return USD(0)
	}
}

// Buy acquires amount (positive) units at unitPrice. It never realizes any gain.
func (cb *CostBasis) Buy(amount Quantity, unitPrice Money, at time.Time) Money {
	amount = amount.Abs()
	cb.balance = cb.balance.Add(amount)
	if cb.pinned || amount.IsZero() {
		return USD(0)
	}

	if cb.Method == AverageCost {
		total := cb.held.Add(amount)
		cost := cb.averageUnitCost.Mul(cb.held).Add(unitPrice.Mul(amount))
		cb.averageUnitCost = cost.Div(total)
		cb.held = total
		return USD(0)
	}

	cb.lots = append(cb.lots, lot{Date: at, Quantity: amount, UnitCost: unitPrice})
	cb.averageUnitCost = cb.lots.averageCost()
	return USD(0)
}

// Sell disposes of |amount| units at unitPrice and returns the realized profit or loss.
func (cb *CostBasis) Sell(amount Quantity, unitPrice Money, at time.Time) Money {
	return cb.dispose(amount.Abs(), unitPrice, at, Sale, true)
}

// Fee pays |amount| units as a fee valued at unitPrice. A positive amount is
// a rebate and is booked as an acquisition.
func (cb *CostBasis) Fee(amount Quantity, unitPrice Money, at time.Time) Money {
	if amount.IsPositive() {
		return cb.Buy(amount, unitPrice, at)
	}
	return cb.dispose(amount.Abs(), unitPrice, at, FeePaid, true)
}

// Loss writes off |amount| units valued at unitPrice (theft, lost keys, network fees).
func (cb *CostBasis) Loss(amount Quantity, unitPrice Money, at time.Time) Money {
	if amount.IsPositive() {
		return cb.Buy(amount, unitPrice, at)
	}
	return cb.dispose(amount.Abs(), unitPrice, at, Lost, true)
}

// writeOff is Loss for a quantity whose movement is already reflected in the
// balance, like the network fee of a transfer.
func (cb *CostBasis) writeOff(quantity Quantity, unitPrice Money, at time.Time) Money {
	return cb.dispose(quantity.Abs(), unitPrice, at, Lost, false)
}

// dispose consumes quantity (positive) units and realizes quantity * (unitPrice - cost).
func (cb *CostBasis) dispose(quantity Quantity, unitPrice Money, at time.Time, category Category, moveBalance bool) Money {
	if moveBalance {
		cb.balance = cb.balance.Sub(quantity)
	}
	if cb.pinned || quantity.IsZero() {
		return USD(0)
	}

	realized := USD(0)
	var missing Quantity
	if cb.Method == AverageCost {
		covered := MinQ(quantity, cb.held)
		realized = unitPrice.Sub(cb.averageUnitCost).Mul(covered)
		cb.held = cb.held.Sub(covered)
		if cb.held.IsZero() {
			cb.averageUnitCost = USD(0)
		}
		missing = quantity.Sub(covered)
	} else {
		remaining, consumed, shortfall := cb.lots.consume(quantity, cb.Method)
		for _, segment := range consumed {
			realized = realized.Add(unitPrice.Sub(segment.UnitCost).Mul(segment.Quantity))
		}
		cb.lots = remaining
		cb.averageUnitCost = cb.lots.averageCost()
		missing = shortfall
	}

	if missing.IsPositive() {
		estimate := unitPrice.Sub(cb.shortfallCost(unitPrice, at)).Mul(missing)
		realized = realized.Add(estimate)
		cb.estimated = cb.estimated.Add(estimate)
		cb.shortfallTotal = cb.shortfallTotal.Add(missing)
		cb.warn(InsufficientLots, at, missing, fmt.Errorf("%s of %s not covered by lots, valued by %s policy", missing, quantity, cb.shortfall))
	}

	cb.realized[category] = cb.realized[category].Add(realized)
	return realized
}

// shortfallCost returns the unit cost given to units not covered by lots.
func (cb *CostBasis) shortfallCost(unitPrice Money, at time.Time) Money {
	if cb.shortfall == ShortfallZeroCost {
		return USD(0)
	}
	if cb.market != nil {
		if price, ok := cb.market(cb.Symbol, at); ok {
			return price
		}
	}
	return unitPrice
}

func (cb *CostBasis) warn(kind WarningKind, at time.Time, quantity Quantity, err error) {
	w := Warning{Kind: kind, Time: at, Symbol: cb.Symbol, Quantity: quantity, Err: err}
	cb.warnings = append(cb.warnings, w)
	if cb.notify != nil {
		cb.notify(w)
	}
}

func (cb *CostBasis) String() string {
	return fmt.Sprintf("CostBasis(%s balance=%s avg=%s realized=%s)", cb.Symbol, cb.balance, cb.averageUnitCost.Exact(), cb.RealizedProfitLoss().Exact())
}
