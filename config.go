package cryptobasis

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultQuiescence is the gap in the entry stream after which pending
// matches are resolved.
const DefaultQuiescence = 10 * time.Second

// Config holds the reconciliation settings.
type Config struct {
	Method    CostBasisMethod `yaml:"method"`
	Shortfall ShortfallPolicy `yaml:"shortfall"`

	TimeTolerance   time.Duration   `yaml:"time_tolerance"`
	AmountTolerance decimal.Decimal `yaml:"amount_tolerance"`
	Quiescence      time.Duration   `yaml:"quiescence"`

	// FiatAccounts are external accounts (banks) whose movements are deposits
	// and withdrawals of the portfolio rather than holdings.
	FiatAccounts []string `yaml:"fiat_accounts"`
	// Pinned symbols have a unit cost of 1 USD.
	Pinned []string `yaml:"pinned"`
	// Quotes are worth 1 USD when pricing a trade.
	Quotes []string `yaml:"quotes"`
	// References are priced by the oracle in priority when pricing a trade.
	References []string `yaml:"references"`

	// Types and Symbols extend the default normalization tables.
	Types   map[string]string `yaml:"types,omitempty"`
	Symbols map[string]string `yaml:"symbols,omitempty"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Method:          FIFO,
		Shortfall:       ShortfallAtMarket,
		TimeTolerance:   DefaultTimeTolerance,
		AmountTolerance: DefaultAmountTolerance,
		Quiescence:      DefaultQuiescence,
		FiatAccounts:    []string{"bofa"},
		Pinned:          []string{"USD"},
		Quotes:          []string{"USD", "USDT"},
		References:      []string{"BTC", "ETH", "LTC"},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. A missing file is not
// an error: the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("cannot read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	var errs []error
	if c.TimeTolerance <= 0 {
		errs = append(errs, fmt.Errorf("time_tolerance must be positive, got %v", c.TimeTolerance))
	}
	if !c.AmountTolerance.IsPositive() || !c.AmountTolerance.LessThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("amount_tolerance must be in ]0,1[, got %v", c.AmountTolerance))
	}
	if c.Quiescence < 0 {
		errs = append(errs, fmt.Errorf("quiescence must not be negative, got %v", c.Quiescence))
	}
	for raw, class := range c.Types {
		if _, err := ParseTxClass(class); err != nil {
			errs = append(errs, fmt.Errorf("types[%s]: %w", raw, err))
		}
	}
	return errors.Join(errs...)
}

// IsFiatAccount reports whether exchange is an external fiat account.
func (c Config) IsFiatAccount(exchange string) bool {
	return slices.Contains(c.FiatAccounts, exchange)
}
