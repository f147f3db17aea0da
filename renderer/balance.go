package renderer

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/etnz/cryptobasis"
)

// BalanceMarkdown renders a trial balance: one row per symbol, one column per exchange.
// A zero until means the balance includes every entry.
func BalanceMarkdown(acc cryptobasis.Accounts, until time.Time) string {
	var b strings.Builder
	if until.IsZero() {
		fmt.Fprint(&b, "# Trial Balance\n\n")
	} else {
		fmt.Fprintf(&b, "# Trial Balance on %s\n\n", until.Format(time.RFC3339))
	}
	if !renderBalance(&b, acc) {
		fmt.Fprint(&b, "No entries.\n")
	}
	return b.String()
}

// renderBalance prints the accounts table and reports whether it had rows.
func renderBalance(w io.Writer, acc cryptobasis.Accounts) bool {
	exchanges := slices.Collect(acc.Exchanges())
	symbols := slices.Collect(acc.Symbols())
	if len(symbols) == 0 {
		return false
	}

	fmt.Fprintf(w, "| Symbol | %s | Total |\n", strings.Join(exchanges, " | "))
	fmt.Fprintf(w, "|:---|%s---:|\n", strings.Repeat("---:|", len(exchanges)))
	for _, symbol := range symbols {
		cells := make([]string, 0, len(exchanges))
		for _, exchange := range exchanges {
			q := acc.Balance(exchange, symbol)
			if q.IsZero() {
				cells = append(cells, "-")
				continue
			}
			cells = append(cells, q.String())
		}
		fmt.Fprintf(w, "| %s | %s | %s |\n", symbol, strings.Join(cells, " | "), acc.Total(symbol))
	}
	fmt.Fprintln(w)
	return true
}
