package cryptobasis

import "fmt"

// TxClass is the canonical class of a ledger entry.
//
// The zero value is not a valid class: entries that were never classified
// are reported as unknown instead of being silently dropped.
type TxClass int

const (
	Trade TxClass = iota + 1
	Transfer
	Fee
	Loss
	Gift
)

func (c TxClass) String() string {
	switch c {
	case Trade:
		return "trade"
	case Transfer:
		return "transfer"
	case Fee:
		return "fee"
	case Loss:
		return "loss"
	case Gift:
		return "gift"
	default:
		return fmt.Sprintf("txclass(%d)", int(c))
	}
}

// Valid reports whether c is one of the canonical classes.
func (c TxClass) Valid() bool { return c >= Trade && c <= Gift }

// ParseTxClass parses a canonical class name.
func ParseTxClass(s string) (TxClass, error) {
	switch s {
	case "trade":
		return Trade, nil
	case "transfer":
		return Transfer, nil
	case "fee":
		return Fee, nil
	case "loss":
		return Loss, nil
	case "gift":
		return Gift, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTransactionClass, s)
	}
}

func (c TxClass) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownTransactionClass, c)
	}
	return []byte(c.String()), nil
}

func (c *TxClass) UnmarshalText(text []byte) (err error) {
	*c, err = ParseTxClass(string(text))
	return err
}
