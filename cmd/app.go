// Package cmd implements the CLI application to reconcile crypto ledgers.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/etnz/cryptobasis"
	"github.com/etnz/cryptobasis/pricefeed"
	"github.com/google/subcommands"
	"go.uber.org/zap"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&reconcileCmd{}, "reports")
	c.Register(&balanceCmd{}, "reports")

	c.Register(&normalizeCmd{}, "entries")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "cryptobasis.yaml", "Path to the YAML configuration file. Defaults apply when it does not exist.")
var logLevel = flag.String("log-level", "warn", "Log level: debug, info, warn or error")
var oracleURL = flag.String("oracle-url", "", "Price service URL template with {symbol}, {unix}, {time} or {date} placeholders. Defaults to $"+oracle_url_env)
var oraclePath = flag.String("oracle-path", "$.USD", "JSONPath of the USD price in the price service response")
var cacheDir = flag.String("cache-dir", "", "Directory for the HTTP response cache. Defaults to a temporary directory.")
var redisURL = flag.String("redis", "", "Redis URL of the shared price cache, e.g. redis://localhost:6379/0. Defaults to $"+redis_url_env)

const (
	oracle_url_env = "CRYPTOBASIS_ORACLE_URL"
	redis_url_env  = "REDIS_URL"
)

var stdout io.Writer = os.Stdout

// loadConfig reads the configuration file.
func loadConfig() (cryptobasis.Config, error) {
	return cryptobasis.LoadConfig(*configFile)
}

// openOracle builds the price oracle from the global flags. It returns a nil
// oracle when no price service is configured, and a function to release it.
func openOracle(ctx context.Context, log *zap.Logger) (cryptobasis.PriceOracle, func(), error) {
	url := *oracleURL
	if url == "" {
		url = os.Getenv(oracle_url_env)
	}
	if url == "" {
		log.Warn("no price service configured, non quote symbols are priced at zero")
		return nil, func() {}, nil
	}
	client := pricefeed.NewCachingClient(*cacheDir, log)
	oracle := pricefeed.NewHTTPOracle(url, *oraclePath, client, log)

	addr := *redisURL
	if addr == "" {
		addr = os.Getenv(redis_url_env)
	}
	if addr == "" {
		return cryptobasis.NewCachedOracle(oracle, cryptobasis.NewMemoryCache(), log), func() {}, nil
	}
	cache, err := pricefeed.DialRedis(ctx, addr, "cryptobasis:price:")
	if err != nil {
		return nil, nil, err
	}
	log.Info("redis price cache enabled")
	return cryptobasis.NewCachedOracle(oracle, cache, log), func() { cache.Close() }, nil
}

// input selects where entries are read from.
type input struct {
	entries string
	records string
}

func (in *input) SetFlags(f *flag.FlagSet) {
	f.StringVar(&in.entries, "entries", "", "Canonical entries file (JSONL). Use - for stdin.")
	f.StringVar(&in.records, "records", "", "Raw exchange records file (JSONL), normalized on the fly. Use - for stdin.")
}

// load reads the entries. Records that cannot be normalized are logged and
// kept with an invalid class.
func (in *input) load(cfg cryptobasis.Config, log *zap.Logger) ([]cryptobasis.Entry, error) {
	switch {
	case in.entries != "" && in.records != "":
		return nil, errors.New("-entries and -records are mutually exclusive")
	case in.entries != "":
		r, closer, err := open(in.entries)
		if err != nil {
			return nil, err
		}
		defer closer()
		return cryptobasis.DecodeEntries(r)
	case in.records != "":
		r, closer, err := open(in.records)
		if err != nil {
			return nil, err
		}
		defer closer()
		records, err := cryptobasis.DecodeRecords(r)
		if err != nil {
			return nil, err
		}
		n, err := cryptobasis.NewNormalizer(cfg)
		if err != nil {
			return nil, err
		}
		entries, err := n.Entries(records)
		if err != nil {
			log.Warn("records not normalized", zap.Error(err))
		}
		return entries, nil
	default:
		return nil, errors.New("one of -entries or -records is required")
	}
}

func open(name string) (io.Reader, func(), error) {
	if name == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open %q: %w", name, err)
	}
	return f, func() { f.Close() }, nil
}
