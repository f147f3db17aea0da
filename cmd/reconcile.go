package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptobasis"
	"github.com/etnz/cryptobasis/date"
	"github.com/etnz/cryptobasis/renderer"
	"github.com/google/subcommands"
)

// reconcileCmd holds the flags for the 'reconcile' subcommand.
type reconcileCmd struct {
	in          input
	method      string
	shortfall   string
	at          date.Date
	skipMatches bool
	skipLots    bool
	strict      bool
}

func (*reconcileCmd) Name() string { return "reconcile" }
func (*reconcileCmd) Synopsis() string {
	return "compute holdings and profit and loss from exchange entries"
}
func (*reconcileCmd) Usage() string {
	return `cbt reconcile (-entries <file> | -records <file>) [-method fifo|lifo|average] [-at <date>]

  Replays the entries chronologically, pairs the legs of trades and transfers,
  and reports the realized and unrealized profit and loss in USD.

  Prices are fetched from the price service given by -oracle-url; without it
  only USD and stable coins are priced.

Usage Examples:
# FIFO reconciliation of normalized entries
$ cbt reconcile -entries entries.jsonl

# Average cost of raw exchange exports, valued at the end of 2018
$ cbt -oracle-url 'https://min-api.cryptocompare.com/data/pricehistorical?fsym={symbol}&tsyms=USD&ts={unix}' \
    -oracle-path '$.*.USD' reconcile -records kraken.jsonl -method average -at 2018-12-31

`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	c.in.SetFlags(f)
	f.StringVar(&c.method, "method", "", "Cost basis method: fifo, lifo or average. Overrides the configuration file.")
	f.StringVar(&c.shortfall, "shortfall", "", "Valuation of disposals without lots: market or zero. Overrides the configuration file.")
	f.Var(&c.at, "at", "Value the holdings at the end of this day instead of at the last entry")
	f.BoolVar(&c.skipMatches, "skip-matches", false, "Do not list the matched trades and transfers")
	f.BoolVar(&c.skipLots, "skip-lots", false, "Do not list the open lots")
	f.BoolVar(&c.strict, "strict", false, "Exit with a failure status when the reconciliation has warnings")
}

func (c *reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.method != "" {
		if cfg.Method, err = cryptobasis.ParseCostBasisMethod(c.method); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	if c.shortfall != "" {
		if cfg.Shortfall, err = cryptobasis.ParseShortfallPolicy(c.shortfall); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	}

	entries, err := c.in.load(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading entries: %v\n", err)
		return subcommands.ExitFailure
	}

	oracle, release, err := openOracle(ctx, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening the price service: %v\n", err)
		return subcommands.ExitFailure
	}
	defer release()

	opts := []cryptobasis.Option{cryptobasis.WithLogger(log)}
	if !c.at.IsZero() {
		opts = append(opts, cryptobasis.WithValuationTime(c.at.End()))
	}
	r, err := cryptobasis.NewReconciler(cfg, oracle, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	report, err := r.Run(ctx, entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reconciling %d entries: %v\n", len(entries), err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.ReportMarkdown(report, renderer.ReportOptions{
		SkipMatches: c.skipMatches,
		SkipLots:    c.skipLots,
	}))

	if c.strict && len(report.Warnings) > 0 {
		fmt.Fprintf(os.Stderr, "Error: %d warnings\n", len(report.Warnings))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
