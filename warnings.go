package cryptobasis

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownTransactionClass is returned for a transaction type that maps to no canonical class.
	ErrUnknownTransactionClass = errors.New("unknown transaction class")
	// ErrAmbiguousMatchBuffer is reported when a trade buffer cannot be paired unambiguously.
	ErrAmbiguousMatchBuffer = errors.New("ambiguous match buffer")
	// ErrInsufficientLots is reported when a disposal exceeds the quantity held in lots.
	ErrInsufficientLots = errors.New("insufficient lots")
	// ErrPriceUnavailable is reported when the price oracle fails.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrUnresolvedEntries is reported when entries are still pending at the end of a run.
	ErrUnresolvedEntries = errors.New("unresolved entries")
	// ErrNegativeBalance is reported when a transfer takes a positive balance below zero.
	ErrNegativeBalance = errors.New("negative balance")

	errNoOracle = errors.New("no price oracle configured")
)

// WarningKind classifies a Warning.
type WarningKind int

const (
	UnknownTransactionClass WarningKind = iota
	AmbiguousMatchBuffer
	InsufficientLots
	PriceUnavailable
	UnresolvedEntries
	NegativeBalance
)

var warningKindErrors = [...]error{
	UnknownTransactionClass: ErrUnknownTransactionClass,
	AmbiguousMatchBuffer:    ErrAmbiguousMatchBuffer,
	InsufficientLots:        ErrInsufficientLots,
	PriceUnavailable:        ErrPriceUnavailable,
	UnresolvedEntries:       ErrUnresolvedEntries,
	NegativeBalance:         ErrNegativeBalance,
}

func (k WarningKind) String() string {
	if int(k) < len(warningKindErrors) {
		return warningKindErrors[k].Error()
	}
	return fmt.Sprintf("warning(%d)", int(k))
}

// Warning is a non fatal condition found during a reconciliation.
//
// Warnings never stop a run, they are accumulated in the Report so that
// data gaps (a missing buy, an exchange outage) can be investigated later.
type Warning struct {
	Kind     WarningKind
	Time     time.Time
	Exchange string
	Symbol   string
	Quantity Quantity // offending quantity, or the pending count for UnresolvedEntries
	Err      error    // underlying cause, if any
}

func (w Warning) Error() string {
	msg := fmt.Sprintf("%s: %s", w.Time.Format(time.RFC3339), w.Kind)
	if w.Exchange != "" {
		msg += " exchange=" + w.Exchange
	}
	if w.Symbol != "" {
		msg += " symbol=" + w.Symbol
	}
	if !w.Quantity.IsZero() {
		msg += " quantity=" + w.Quantity.String()
	}
	if w.Err != nil {
		msg += ": " + w.Err.Error()
	}
	return msg
}

// Unwrap makes errors.Is(w, ErrInsufficientLots) and friends work.
func (w Warning) Unwrap() []error {
	errs := []error{w.Kind.sentinel()}
	if w.Err != nil {
		errs = append(errs, w.Err)
	}
	return errs
}

func (k WarningKind) sentinel() error {
	if int(k) < len(warningKindErrors) {
		return warningKindErrors[k]
	}
	return errors.New(k.String())
}

// Warnings is an accumulated list of warnings.
type Warnings []Warning

// Of returns the warnings of a given kind.
func (ws Warnings) Of(kind WarningKind) Warnings {
	var out Warnings
	for _, w := range ws {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}
