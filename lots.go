package cryptobasis

import "time"

// lot represents a single acquisition of an asset, used for cost basis calculations.
type lot struct {
	Date     time.Time
	Quantity Quantity // always positive
	UnitCost Money    // USD per unit
}

// Lot is the read-only view of a lot.
type Lot struct {
	Date     time.Time
	Quantity Quantity
	UnitCost Money
}

// lots is a queue of lots, oldest first.
type lots []lot

// quantity returns the total quantity held in lots.
func (l lots) quantity() Quantity {
	var total Quantity
	for _, currentLot := range l {
		total = total.Add(currentLot.Quantity)
	}
	return total
}

// cost returns the total cost of all lots.
func (l lots) cost() Money {
	total := USD(0)
	for _, currentLot := range l {
		total = total.Add(currentLot.UnitCost.Mul(currentLot.Quantity))
	}
	return total
}

// averageCost returns the quantity weighted mean unit cost, or zero if empty.
func (l lots) averageCost() Money {
	q := l.quantity()
	if q.IsZero() {
		return USD(0)
	}
	return l.cost().Div(q)
}

// consume removes quantityToDispose from the queue, from the front for FIFO
// and from the back otherwise. The boundary lot is split.
//
// It returns the remaining lots, the consumed segments in consumption order,
// and the quantity that could not be covered by lots.
// The receiver is not modified.
func (l lots) consume(quantityToDispose Quantity, method CostBasisMethod) (remaining lots, consumed lots, shortfall Quantity) {
	remaining = make(lots, len(l))
	copy(remaining, l)

	for quantityToDispose.IsPositive() && len(remaining) > 0 {
		i := 0
		if method == LIFO {
			i = len(remaining) - 1
		}
		currentLot := remaining[i]

		if currentLot.Quantity.GreaterThan(quantityToDispose) {
			// Partial disposal of this lot
			consumed = append(consumed, lot{Date: currentLot.Date, Quantity: quantityToDispose, UnitCost: currentLot.UnitCost})
			remaining[i].Quantity = currentLot.Quantity.Sub(quantityToDispose)
			quantityToDispose = Q(0)
			break
		}
		// Full disposal of this lot
		consumed = append(consumed, currentLot)
		quantityToDispose = quantityToDispose.Sub(currentLot.Quantity)
		if method == LIFO {
			remaining = remaining[:i]
		} else {
			remaining = remaining[1:]
		}
	}
	return remaining, consumed, quantityToDispose
}

// view returns a read-only copy of the lots.
func (l lots) view() []Lot {
	out := make([]Lot, len(l))
	for i, currentLot := range l {
		out[i] = Lot(currentLot)
	}
	return out
}
