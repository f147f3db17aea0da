package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/etnz/cryptobasis"
	"github.com/google/subcommands"
)

type normalizeCmd struct {
	records string
	output  string
	sort    bool
	strict  bool
}

func (*normalizeCmd) Name() string { return "normalize" }
func (*normalizeCmd) Synopsis() string {
	return "converts raw exchange records into canonical entries"
}
func (*normalizeCmd) Usage() string {
	return `cbt normalize [-records <file>] [-o <file>] [-sort]

  Reads raw exchange records (JSONL with time, exchange, type, asset and amount),
  maps the exchange vocabulary to the canonical classes and symbols, and writes
  canonical entries in JSONL format.

  Records with an unknown type are reported on stderr and skipped. Additional
  types and symbols can be declared in the configuration file.

Usage Examples:
$ cbt normalize -records kraken.jsonl -o entries.jsonl -sort

`
}

func (p *normalizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.records, "records", "-", "Raw records file. Use - for stdin.")
	f.StringVar(&p.output, "o", "", "Output file. Writes to stdout by default.")
	f.BoolVar(&p.sort, "sort", false, "Sort the entries chronologically")
	f.BoolVar(&p.strict, "strict", false, "Exit with a failure status when a record cannot be normalized")
}

func (p *normalizeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	n, err := cryptobasis.NewNormalizer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in configuration: %v\n", err)
		return subcommands.ExitFailure
	}

	r, closer, err := open(p.records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closer()
	records, err := cryptobasis.DecodeRecords(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading records: %v\n", err)
		return subcommands.ExitFailure
	}

	entries := make([]cryptobasis.Entry, 0, len(records))
	skipped := 0
	for i, rec := range records {
		e, err := n.Entry(rec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: record %d skipped: %v\n", i+1, err)
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	cryptobasis.Sequence(entries, 0)
	if p.sort {
		cryptobasis.SortEntries(entries)
	}

	var w io.Writer = stdout
	if p.output != "" {
		file, err := os.Create(p.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %q: %v\n", p.output, err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		w = file
	}
	if err := cryptobasis.EncodeEntries(w, entries); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing entries: %v\n", err)
		return subcommands.ExitFailure
	}

	if p.strict && skipped > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
