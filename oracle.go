package cryptobasis

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceOracle returns the USD market price of one unit of an asset at, or
// near, a given time. Implementations may be slow and may fail.
type PriceOracle interface {
	USDPrice(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error)
}

// OracleFunc adapts a function to the PriceOracle interface.
type OracleFunc func(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error)

func (f OracleFunc) USDPrice(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	return f(ctx, symbol, at)
}
