package cryptobasis

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// Record is a raw ledger line as exported by an exchange, before its type
// and asset are mapped to the canonical vocabulary.
type Record struct {
	Time     time.Time `json:"time"`
	Exchange string    `json:"exchange"`
	Type     string    `json:"type"`
	Asset    string    `json:"asset"`
	Amount   Quantity  `json:"amount"`
}

// transaction types found in exchange exports.
var defaultTypes = map[string]TxClass{
	"buy":        Trade,
	"sell":       Trade,
	"match":      Trade,
	"trade":      Trade,
	"BUY":        Trade,
	"SELL":       Trade,
	"LIMIT_BUY":  Trade,
	"LIMIT_SELL": Trade,

	"deposit":             Transfer,
	"transfer":            Transfer,
	"send":                Transfer,
	"withdraw":            Transfer,
	"withdrawal":          Transfer,
	"fiat_deposit":        Transfer,
	"fiat_withdrawal":     Transfer,
	"exchange_deposit":    Transfer,
	"exchange_withdrawal": Transfer,

	"fee":        Fee,
	"rebate":     Fee,
	"commission": Fee,

	"loss":   Loss,
	"stolen": Loss,

	"gift":  Gift,
	"spent": Gift,
}

// asset codes that differ from one exchange to the other.
var defaultSymbols = map[string]string{
	"XETH": "ETH",
	"XXBT": "BTC",
	"BCC":  "BCH",
	"ZUSD": "USD",
}

// Normalizer maps exchange vocabularies to canonical classes and symbols.
type Normalizer struct {
	types   map[string]TxClass
	symbols map[string]string
}

// NewNormalizer returns the default normalizer extended with the aliases of cfg.
func NewNormalizer(cfg Config) (*Normalizer, error) {
	n := &Normalizer{
		types:   maps.Clone(defaultTypes),
		symbols: maps.Clone(defaultSymbols),
	}
	for raw, name := range cfg.Types {
		class, err := ParseTxClass(name)
		if err != nil {
			return nil, fmt.Errorf("type alias %q: %w", raw, err)
		}
		n.types[raw] = class
	}
	maps.Copy(n.symbols, cfg.Symbols)
	return n, nil
}

// Class returns the canonical class of a raw transaction type.
func (n *Normalizer) Class(raw string) (TxClass, error) {
	class, ok := n.types[raw]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTransactionClass, raw)
	}
	return class, nil
}

// Symbol returns the canonical symbol of a raw asset code.
func (n *Normalizer) Symbol(raw string) string {
	if s, ok := n.symbols[raw]; ok {
		return s
	}
	return raw
}

// Entry converts a raw record. When the type is unknown the entry is still
// returned, with an invalid class, alongside the error: the reconciler reports
// such entries instead of losing them.
func (n *Normalizer) Entry(r Record) (Entry, error) {
	class, err := n.Class(r.Type)
	e := Entry{
		Time:     r.Time,
		Exchange: r.Exchange,
		Class:    class,
		Symbol:   n.Symbol(r.Asset),
		Amount:   r.Amount,
	}
	return e, err
}

// Entries converts all records and assigns their input position. The errors
// of unknown types are joined in the returned error.
func (n *Normalizer) Entries(records []Record) ([]Entry, error) {
	entries := make([]Entry, len(records))
	var errs []error
	for i, r := range records {
		e, err := n.Entry(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i+1, err))
		}
		entries[i] = e
	}
	Sequence(entries, 0)
	return entries, errors.Join(errs...)
}
