package cryptobasis

import (
	"iter"
	"maps"
	"slices"
	"time"
)

// Accounts is a trial balance: the raw balance of every symbol held on every
// exchange, computed from entries alone without any matching.
type Accounts map[string]map[string]Quantity

// TrialBalance sums entries per exchange and symbol. Entries after until are
// ignored, unless until is zero. Entries with an invalid class are ignored.
func TrialBalance(entries []Entry, until time.Time) Accounts {
	acc := make(Accounts)
	for _, e := range entries {
		if !until.IsZero() && e.Time.After(until) {
			continue
		}
		if !e.Class.Valid() {
			continue
		}
		acc.add(e)
	}
	return acc
}

func (a Accounts) add(e Entry) {
	symbols, ok := a[e.Exchange]
	if !ok {
		symbols = make(map[string]Quantity)
		a[e.Exchange] = symbols
	}
	symbols[e.Symbol] = symbols[e.Symbol].Add(e.Amount)
}

// Balance returns the balance of symbol on exchange.
func (a Accounts) Balance(exchange, symbol string) Quantity {
	return a[exchange][symbol]
}

// Exchanges returns all exchanges in alphabetical order.
func (a Accounts) Exchanges() iter.Seq[string] {
	return slices.Values(slices.Sorted(maps.Keys(a)))
}

// Symbols returns all symbols held on any exchange, in alphabetical order.
func (a Accounts) Symbols() iter.Seq[string] {
	set := make(map[string]bool)
	for _, symbols := range a {
		for s := range symbols {
			set[s] = true
		}
	}
	return slices.Values(slices.Sorted(maps.Keys(set)))
}

// Total returns the balance of symbol across all exchanges.
func (a Accounts) Total(symbol string) Quantity {
	var total Quantity
	for _, symbols := range a {
		total = total.Add(symbols[symbol])
	}
	return total
}
