package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/cryptobasis"
	"github.com/etnz/cryptobasis/date"
	"github.com/etnz/cryptobasis/renderer"
	"github.com/google/subcommands"
)

// balanceCmd holds the flags for the 'balance' subcommand.
type balanceCmd struct {
	in    input
	until date.Date
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "display the balance of every exchange account" }
func (*balanceCmd) Usage() string {
	return `cbt balance (-entries <file> | -records <file>) [-until <date>]

  Sums the entries per exchange and symbol, up to the end of a given day.
  No price is needed: this is the raw trial balance to compare with the
  balances displayed by the exchanges.
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	c.in.SetFlags(f)
	f.Var(&c.until, "until", "Include the entries up to the end of this day. All entries by default.")
}

func (c *balanceCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	entries, err := c.in.load(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading entries: %v\n", err)
		return subcommands.ExitFailure
	}

	var until time.Time
	if !c.until.IsZero() {
		until = c.until.End()
	}
	printMarkdown(renderer.BalanceMarkdown(cryptobasis.TrialBalance(entries, until), until))
	return subcommands.ExitSuccess
}
