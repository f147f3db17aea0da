package cryptobasis

import "fmt"

// CostBasisMethod defines the method for calculating cost basis.
type CostBasisMethod int

const (
	// AverageCost keeps a single running weighted average unit cost and no lots.
	AverageCost CostBasisMethod = iota
	// FIFO (First-In, First-Out) assumes the first units acquired are the first ones disposed of.
	FIFO
	// LIFO (Last-In, First-Out) assumes the last units acquired are the first ones disposed of.
	LIFO
)

func (m CostBasisMethod) String() string {
	switch m {
	case AverageCost:
		return "average"
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	default:
		return "unknown"
	}
}

// ParseCostBasisMethod parses a string into a CostBasisMethod.
func ParseCostBasisMethod(s string) (CostBasisMethod, error) {
	switch s {
	case "average":
		return AverageCost, nil
	case "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	default:
		return 0, fmt.Errorf("unknown cost basis method: %q", s)
	}
}

func (m CostBasisMethod) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *CostBasisMethod) UnmarshalText(text []byte) (err error) {
	*m, err = ParseCostBasisMethod(string(text))
	return err
}
