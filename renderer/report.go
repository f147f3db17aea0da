package renderer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/etnz/cryptobasis"
)

// ReportOptions holds configuration for rendering a reconciliation report.
type ReportOptions struct {
	SkipMatches bool // Do not render the matches section.
	SkipLots    bool // Do not render the open lots section.
}

// ReportMarkdown renders a reconciliation report.
func ReportMarkdown(r *cryptobasis.Report, opts ReportOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Reconciliation from %s to %s\n\n", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	fmt.Fprintf(&b, "Method: %s\n\n", r.Method)

	renderSummary(&b, r)
	renderHoldings(&b, r)
	renderRealized(&b, r)
	if !opts.SkipLots {
		renderLots(&b, r)
	}
	renderAccounts(&b, r.Accounts)
	if !opts.SkipMatches {
		renderMatches(&b, r.Matches)
	}
	renderPending(&b, r.Pending)
	renderWarnings(&b, r.Warnings)
	return b.String()
}

func renderSummary(w io.Writer, r *cryptobasis.Report) {
	fmt.Fprint(w, "## Summary\n\n")
	fmt.Fprintln(w, "| | USD |")
	fmt.Fprintln(w, "|:---|---:|")
	fmt.Fprintf(w, "| Deposits | %s |\n", r.Deposits)
	fmt.Fprintf(w, "| Realized P&L | %s |\n", r.RealizedProfitLoss.SignedString())
	if !r.EstimatedProfitLoss.IsZero() {
		fmt.Fprintf(w, "| of which estimated | %s |\n", r.EstimatedProfitLoss.SignedString())
	}
	fmt.Fprintf(w, "| Unrealized P&L (%s) | %s |\n", r.ValuedAt.Format(time.DateOnly), r.UnrealizedProfitLoss.SignedString())
	fmt.Fprintln(w)
}

func renderHoldings(w io.Writer, r *cryptobasis.Report) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Holdings\n\n")
		fmt.Fprintln(w, "| Symbol | Balance | Avg Cost | Total Cost | Price | Value | Unrealized |")
		fmt.Fprintln(w, "|:---|---:|---:|---:|---:|---:|---:|")
		n := 0
		for _, h := range r.Holdings {
			if h.Balance.IsZero() && h.LotQuantity.IsZero() {
				continue
			}
			price, value := "n/a", "n/a"
			if h.Priced {
				price, value = h.MarketPrice.String(), h.MarketValue.String()
			}
			if h.Stale {
				price += " (stale)"
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %s |\n",
				h.Symbol,
				h.Balance,
				h.AverageUnitCost,
				h.TotalCost,
				price,
				value,
				h.Unrealized.SignedString(),
			)
			n++
		}
		fmt.Fprintln(w)
		return n > 0
	})
}

// renderRealized breaks the realized profit and loss down per symbol and category.
func renderRealized(w io.Writer, r *cryptobasis.Report) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Realized P&L\n\n")
		fmt.Fprintln(w, "| Symbol | Sales | Fees | Losses | Total |")
		fmt.Fprintln(w, "|:---|---:|---:|---:|---:|")
		n := 0
		for symbol := range r.Book.Symbols() {
			cb := r.Book.Get(symbol)
			total := cb.RealizedProfitLoss()
			if total.IsZero() {
				continue
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
				symbol,
				cb.RealizedBy(cryptobasis.Sale).SignedString(),
				cb.RealizedBy(cryptobasis.FeePaid).SignedString(),
				cb.RealizedBy(cryptobasis.Lost).SignedString(),
				total.SignedString(),
			)
			n++
		}
		fmt.Fprintf(w, "| **%s** | | | | **%s** |\n", "Total", r.RealizedProfitLoss.SignedString())
		fmt.Fprintln(w)
		return n > 0
	})
}

func renderLots(w io.Writer, r *cryptobasis.Report) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Open Lots\n\n")
		fmt.Fprintln(w, "| Symbol | Acquired | Quantity | Unit Cost |")
		fmt.Fprintln(w, "|:---|:---|---:|---:|")
		n := 0
		for symbol := range r.Book.Symbols() {
			for _, lot := range r.Book.Get(symbol).Lots() {
				fmt.Fprintf(w, "| %s | %s | %s | %s |\n", symbol, lot.Date.Format(time.RFC3339), lot.Quantity, lot.UnitCost)
				n++
			}
		}
		fmt.Fprintln(w)
		return n > 0
	})
}

func renderAccounts(w io.Writer, acc cryptobasis.Accounts) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Accounts\n\n")
		return renderBalance(w, acc)
	})
}

func renderMatches(w io.Writer, matches []cryptobasis.Match) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Matches\n\n")
		fmt.Fprintln(w, "| Time | Kind | Description | Realized |")
		fmt.Fprintln(w, "|:---|:---|:---|---:|")
		for _, m := range matches {
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n", m.A.Time.Format(time.RFC3339), m.Kind, Match(m), m.Realized.SignedString())
		}
		fmt.Fprintln(w)
		return len(matches) > 0
	})
}

func renderPending(w io.Writer, pending []cryptobasis.Entry) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Unmatched Entries\n\n")
		fmt.Fprintln(w, "| Time | Exchange | Class | Symbol | Amount |")
		fmt.Fprintln(w, "|:---|:---|:---|:---|---:|")
		for _, e := range pending {
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n", e.Time.Format(time.RFC3339), e.Exchange, e.Class, e.Symbol, e.Amount)
		}
		fmt.Fprintln(w)
		return len(pending) > 0
	})
}

func renderWarnings(w io.Writer, warnings cryptobasis.Warnings) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Warnings\n\n")
		for _, warning := range warnings {
			fmt.Fprintf(w, "* %s\n", warning.Error())
		}
		fmt.Fprintln(w)
		return len(warnings) > 0
	})
}
