package cryptobasis

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// t0 is the origin of time in tests.
var t0 = time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC)

// at returns t0 plus sec seconds.
func at(sec float64) time.Time { return t0.Add(time.Duration(sec * float64(time.Second))) }

// entry is a helper for test to create an entry from const.
func entry(sec float64, exchange string, class TxClass, amount float64, symbol string) Entry {
	return Entry{Time: at(sec), Exchange: exchange, Class: class, Symbol: symbol, Amount: Q(amount)}
}

// staticOracle prices symbols with a constant, and fails for unknown ones.
type staticOracle map[string]float64

func (o staticOracle) USDPrice(_ context.Context, symbol string, _ time.Time) (decimal.Decimal, error) {
	p, ok := o[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", symbol)
	}
	return decimal.NewFromFloat(p), nil
}

// countingOracle counts the calls to the underlying oracle.
type countingOracle struct {
	PriceOracle
	calls int
}

func (o *countingOracle) USDPrice(ctx context.Context, symbol string, t time.Time) (decimal.Decimal, error) {
	o.calls++
	return o.PriceOracle.USDPrice(ctx, symbol, t)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
