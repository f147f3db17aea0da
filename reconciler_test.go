package cryptobasis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestReconciler(t *testing.T, oracle PriceOracle) *Reconciler {
	t.Helper()
	r, err := NewReconciler(DefaultConfig(), oracle)
	if err != nil {
		t.Fatalf("NewReconciler() error = %v", err)
	}
	return r
}

func TestReconciler_Run(t *testing.T) {
	entries := []Entry{
		entry(0, "bofa", Transfer, -1000, "USD"),
		entry(5, "gdax", Transfer, 1000, "USD"),
		entry(100, "gdax", Trade, -1000, "USD"),
		entry(100.5, "gdax", Trade, 0.1, "BTC"),
		entry(200, "gdax", Fee, -0.001, "BTC"),
		entry(300, "gdax", Transfer, -0.05, "BTC"),
		entry(400, "binance", Transfer, 0.049, "BTC"),
		entry(500, "binance", Trade, -0.049, "BTC"),
		entry(500, "binance", Trade, 1, "ETH"),
		entry(600, "kraken", Gift, 5, "LTC"),
		{Time: at(700), Exchange: "gdax", Symbol: "DOGE", Amount: Q(10)},
		entry(800, "kraken", Trade, 1, "XRP"),
	}

	r := newTestReconciler(t, staticOracle{"BTC": 12000})
	report, err := r.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.State() != Drained {
		t.Errorf("State() = %v, want drained", r.State())
	}

	if got := report.Deposits; !got.Equal(USD(1000)) {
		t.Errorf("Deposits = %v, want 1000", got.Exact())
	}
	// fee 0.001*2000 + network fee 0.001*2000 + sale 0.049*2000
	if got := report.RealizedProfitLoss; !got.Equal(USD(102)) {
		t.Errorf("RealizedProfitLoss = %v, want 102", got.Exact())
	}
	if !report.EstimatedProfitLoss.IsZero() {
		t.Errorf("EstimatedProfitLoss = %v, want 0", report.EstimatedProfitLoss.Exact())
	}

	var trades, transfers int
	for _, m := range report.Matches {
		switch m.Kind {
		case TradeMatch:
			trades++
		case TransferMatch:
			transfers++
		}
	}
	if trades != 2 || transfers != 2 {
		t.Errorf("Matches = %d trades, %d transfers, want 2 and 2: %v", trades, transfers, report.Matches)
	}

	btc := report.Book.Get("BTC")
	if !btc.Balance().Equal(Q(0.049)) || !btc.LotQuantity().Equal(Q(0.049)) {
		t.Errorf("BTC balance = %v, lots = %v, want 0.049", btc.Balance(), btc.LotQuantity())
	}
	if got := report.Book.Get("ETH").AverageUnitCost(); !got.Equal(USD(588)) {
		t.Errorf("ETH AverageUnitCost() = %v, want 588", got.Exact())
	}
	if got := report.Book.Get("USD").Balance(); !got.IsZero() {
		t.Errorf("USD balance = %v, want 0: the bank account is not part of the book", got)
	}
	if got := report.Book.Get("LTC").Balance(); !got.Equal(Q(5)) {
		t.Errorf("LTC balance = %v, want 5", got)
	}
	if report.Book.Get("XRP") != nil {
		t.Errorf("XRP must not be booked while unmatched")
	}

	if len(report.Pending) != 1 || report.Pending[0].Symbol != "XRP" {
		t.Errorf("Pending = %v, want the XRP leg", report.Pending)
	}
	for _, kind := range []WarningKind{UnknownTransactionClass, AmbiguousMatchBuffer, UnresolvedEntries} {
		if n := len(report.Warnings.Of(kind)); n != 1 {
			t.Errorf("%v warnings = %d, want 1", kind, n)
		}
	}
	if len(report.Warnings) != 3 {
		t.Errorf("Warnings = %v, want 3", report.Warnings)
	}

	if got := report.Accounts.Balance("bofa", "USD"); !got.Equal(Q(-1000)) {
		t.Errorf("Accounts[bofa][USD] = %v, want -1000", got)
	}
	if got := report.Accounts.Balance("gdax", "BTC"); !got.Equal(Q(0.049)) {
		t.Errorf("Accounts[gdax][BTC] = %v, want 0.049", got)
	}
	if got := report.Accounts.Balance("kraken", "XRP"); !got.Equal(Q(1)) {
		t.Errorf("Accounts[kraken][XRP] = %v, want 1", got)
	}

	// BTC held at 10000, valued at 12000.
	if got := report.UnrealizedProfitLoss; !got.Equal(USD(98)) {
		t.Errorf("UnrealizedProfitLoss = %v, want 98", got.Exact())
	}
	for _, h := range report.Holdings {
		if h.Symbol == "ETH" && h.Priced {
			t.Errorf("ETH holding = %+v, want unpriced", h)
		}
	}
}

func TestReconciler_QuiescenceSplitsTrade(t *testing.T) {
	entries := []Entry{
		entry(0, "kraken", Gift, 1, "ETH"),
		entry(9.5, "gdax", Trade, 1, "BTC"),
		entry(10.5, "gdax", Trade, -10000, "USD"),
	}
	r := newTestReconciler(t, nil)
	report, err := r.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// the first resolution only sees the BTC leg.
	if n := len(report.Warnings.Of(AmbiguousMatchBuffer)); n != 1 {
		t.Errorf("AmbiguousMatchBuffer warnings = %d, want 1: %v", n, report.Warnings)
	}
	if len(report.Matches) != 1 || len(report.Pending) != 0 {
		t.Errorf("Matches = %v, Pending = %v, want the trade matched at the end", report.Matches, report.Pending)
	}
	if got := report.Book.Get("BTC").AverageUnitCost(); !got.Equal(USD(10000)) {
		t.Errorf("BTC AverageUnitCost() = %v, want 10000", got.Exact())
	}
}

func TestReconciler_Ordering(t *testing.T) {
	// entries are booked in chronological order, whatever the input order.
	entries := []Entry{
		entry(60, "gdax", Trade, 2, "ETH"),
		entry(0, "gdax", Trade, 1, "ETH"),
		entry(0, "gdax", Trade, -100, "USD"),
		entry(60, "gdax", Trade, -300, "USD"),
	}
	r := newTestReconciler(t, nil)
	report, err := r.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Matches) != 2 {
		t.Fatalf("Matches = %v, want 2", report.Matches)
	}
	// (1*100 + 2*150) / 3
	want := USD(must(ParseQuantity("133.33333333")).Decimal())
	if got := report.Book.Get("ETH").AverageUnitCost(); !got.Equal(want) {
		t.Errorf("ETH AverageUnitCost() = %v, want %v", got.Exact(), want.Exact())
	}
	if lots := report.Book.Get("ETH").Lots(); len(lots) != 2 || !lots[0].UnitCost.Equal(USD(100)) {
		t.Errorf("ETH Lots() = %v, want the 100 USD lot first", lots)
	}
}

func TestReconciler_FeeWithTrade(t *testing.T) {
	// the fee is paid in the asset bought, at the instant of the trade.
	entries := []Entry{
		entry(0, "kraken", Trade, -10000, "USD"),
		entry(0, "kraken", Trade, 1, "BTC"),
		entry(0, "kraken", Fee, -0.001, "BTC"),
		entry(1, "kraken", Loss, -0.009, "BTC"),
	}
	r := newTestReconciler(t, staticOracle{"BTC": 10000})
	report, err := r.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", report.Warnings)
	}
	btc := report.Book.Get("BTC")
	if !btc.Balance().Equal(Q(0.99)) || !btc.LotQuantity().Equal(btc.Balance()) {
		t.Errorf("BTC balance = %v, lots = %v, want 0.99", btc.Balance(), btc.LotQuantity())
	}
	if !btc.Shortfall().IsZero() || !report.EstimatedProfitLoss.IsZero() {
		t.Errorf("Shortfall() = %v, EstimatedProfitLoss = %v, want 0", btc.Shortfall(), report.EstimatedProfitLoss.Exact())
	}
	if got := btc.RealizedBy(FeePaid); !got.IsZero() {
		t.Errorf("RealizedBy(FeePaid) = %v, want 0", got.Exact())
	}
	if got := btc.RealizedBy(Lost); !got.IsZero() {
		t.Errorf("RealizedBy(Lost) = %v, want 0", got.Exact())
	}
}

func TestReconciler_FeeHeldAcrossQuiescence(t *testing.T) {
	// a lone trade leg stays pending; later fees of the exchange are still booked.
	entries := []Entry{
		entry(0, "kraken", Gift, 1, "BTC"),
		entry(0, "kraken", Trade, 1, "XRP"),
		entry(5, "kraken", Fee, -0.1, "BTC"),
		entry(60, "kraken", Fee, -0.1, "BTC"),
	}
	r := newTestReconciler(t, staticOracle{"BTC": 10000})
	report, err := r.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := report.Book.Get("BTC").Balance(); !got.Equal(Q(0.8)) {
		t.Errorf("BTC balance = %v, want 0.8", got)
	}
	if len(report.Pending) != 1 || report.Pending[0].Symbol != "XRP" {
		t.Errorf("Pending = %v, want the XRP leg", report.Pending)
	}
}

func TestReconciler_UnknownClass(t *testing.T) {
	jsonl := `{"time":"2018-01-01T00:00:00Z","exchange":"gdax","class":"airdrop","symbol":"BCH","amount":0.5}
`
	entries, err := DecodeEntries(strings.NewReader(jsonl))
	if err != nil {
		t.Fatalf("DecodeEntries() error = %v", err)
	}
	r := newTestReconciler(t, nil)
	report, err := r.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	ws := report.Warnings.Of(UnknownTransactionClass)
	if len(ws) != 1 {
		t.Fatalf("UnknownTransactionClass warnings = %v, want 1", report.Warnings)
	}
	if ws[0].Err == nil || !strings.Contains(ws[0].Err.Error(), `"airdrop"`) {
		t.Errorf("Warning.Err = %v, want the rejected airdrop class", ws[0].Err)
	}
}

func TestReconciler_StaleValuation(t *testing.T) {
	oracle := OracleFunc(func(_ context.Context, _ string, when time.Time) (decimal.Decimal, error) {
		if when.After(at(60)) {
			return decimal.Zero, errors.New("service down")
		}
		return decimal.NewFromInt(10000), nil
	})
	r, err := NewReconciler(DefaultConfig(), oracle, WithValuationTime(at(3600)))
	if err != nil {
		t.Fatalf("NewReconciler() error = %v", err)
	}
	report, err := r.Run(context.Background(), []Entry{
		entry(0, "gdax", Trade, -10000, "USD"),
		entry(0, "gdax", Trade, 1, "BTC"),
		entry(30, "gdax", Fee, -0.1, "BTC"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	var btc Holding
	for _, h := range report.Holdings {
		if h.Symbol == "BTC" {
			btc = h
		}
	}
	if !btc.Priced || !btc.Stale || !btc.MarketPrice.Equal(USD(10000)) {
		t.Errorf("BTC holding = %+v, want a stale price of 10000", btc)
	}
	ws := report.Warnings.Of(PriceUnavailable)
	if len(ws) != 1 || ws[0].Symbol != "BTC" || !ws[0].Time.Equal(at(3600)) {
		t.Errorf("PriceUnavailable warnings = %v, want one for the BTC valuation", ws)
	}
}

func TestNewReconciler_MarketPrice(t *testing.T) {
	// shortfalls are valued at the market price from the first entry on.
	r, err := NewReconciler(DefaultConfig(), staticOracle{"BTC": 10000})
	if err != nil {
		t.Fatalf("NewReconciler() error = %v", err)
	}
	if r.Book().GetOrCreate("ETH").market == nil {
		t.Error("cost bases created by the reconciler have no market price")
	}
	ctx := context.Background()
	if err := r.Feed(ctx, entry(0, "gdax", Loss, -1, "BTC")); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	cb := r.Book().Get("BTC")
	if got := cb.EstimatedProfitLoss(); !got.IsZero() {
		t.Errorf("EstimatedProfitLoss() = %v, want 0 at market price", got.Exact())
	}
	if got := cb.Shortfall(); !got.Equal(Q(1)) {
		t.Errorf("Shortfall() = %v, want 1", got)
	}
}

func TestReconciler_PriceUnavailable(t *testing.T) {
	r := newTestReconciler(t, nil)
	report, err := r.Run(context.Background(), []Entry{
		entry(0, "gdax", Fee, -0.5, "BTC"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	ws := report.Warnings.Of(PriceUnavailable)
	if len(ws) != 1 {
		t.Fatalf("PriceUnavailable warnings = %v, want 1", report.Warnings)
	}
	if !errors.Is(ws[0], ErrPriceUnavailable) {
		t.Errorf("errors.Is(%v, ErrPriceUnavailable) = false", ws[0])
	}
	// nothing was bought: the fee is a shortfall.
	if n := len(report.Warnings.Of(InsufficientLots)); n != 1 {
		t.Errorf("InsufficientLots warnings = %d, want 1", n)
	}
}

func TestReconciler_Feed(t *testing.T) {
	ctx := context.Background()
	r := newTestReconciler(t, staticOracle{"BTC": 10000})

	if err := r.Feed(ctx, entry(10, "gdax", Gift, 1, "BTC")); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if r.State() != Scanning {
		t.Errorf("State() = %v, want scanning", r.State())
	}
	if err := r.Feed(ctx, entry(5, "gdax", Gift, 1, "BTC")); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Feed(older) error = %v, want ErrOutOfOrder", err)
	}

	report, err := r.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if got := report.Book.Get("BTC").Balance(); !got.Equal(Q(1)) {
		t.Errorf("BTC balance = %v, want 1", got)
	}

	if err := r.Feed(ctx, entry(20, "gdax", Gift, 1, "BTC")); !errors.Is(err, ErrDrained) {
		t.Errorf("Feed() after Finish error = %v, want ErrDrained", err)
	}
	if _, err := r.Finish(ctx); !errors.Is(err, ErrDrained) {
		t.Errorf("Finish() twice error = %v, want ErrDrained", err)
	}
}

func TestReconciler_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newTestReconciler(t, nil)
	if _, err := r.Run(ctx, []Entry{entry(0, "gdax", Gift, 1, "BTC")}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestNewReconciler_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeTolerance = 0
	if _, err := NewReconciler(cfg, nil); err == nil {
		t.Error("NewReconciler() error = nil, want an error for a zero time tolerance")
	}
}
