package renderer

import (
	"fmt"

	"github.com/etnz/cryptobasis"
)

// Match renders a match to a string.
func Match(m cryptobasis.Match) string {
	switch m.Kind {
	case cryptobasis.TradeMatch:
		sold, bought := m.A, m.B
		soldPrice := m.PriceA
		if sold.Amount.IsPositive() {
			sold, bought = bought, sold
			soldPrice = m.PriceB
		}
		return fmt.Sprintf("Sold %s %s for %s %s on %s at %s", sold.Amount.Abs(), sold.Symbol, bought.Amount, bought.Symbol, sold.Exchange, soldPrice)
	case cryptobasis.TransferMatch:
		if m.Fee.IsZero() {
			return fmt.Sprintf("Moved %s %s from %s to %s", m.B.Amount, m.A.Symbol, m.A.Exchange, m.B.Exchange)
		}
		return fmt.Sprintf("Moved %s %s from %s to %s, fee %s", m.B.Amount, m.A.Symbol, m.A.Exchange, m.B.Exchange, m.Fee)
	default:
		return m.String()
	}
}
