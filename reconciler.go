package cryptobasis

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Reconciler.
type State int

const (
	// Scanning routes entries into the book and the matchers.
	Scanning State = iota
	// Resolving drains the matchers.
	Resolving
	// Drained is final: the report has been produced.
	Drained
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Resolving:
		return "resolving"
	case Drained:
		return "drained"
	default:
		return "unknown"
	}
}

var (
	// ErrDrained is returned when a reconciler is used after Finish.
	ErrDrained = errors.New("reconciler already drained")
	// ErrOutOfOrder is returned when Feed receives an entry older than the previous one.
	ErrOutOfOrder = errors.New("entry out of chronological order")
)

// Report is the outcome of a reconciliation.
type Report struct {
	Method     CostBasisMethod
	Start, End time.Time // first and last entry
	ValuedAt   time.Time // time of the market prices used for holdings

	Book *Book
	// Deposits is the net USD amount that entered the portfolio from fiat accounts.
	Deposits             Money
	RealizedProfitLoss   Money
	EstimatedProfitLoss  Money // part of RealizedProfitLoss based on shortfall valuation
	UnrealizedProfitLoss Money

	Matches  []Match
	Pending  []Entry // entries left unmatched
	Warnings Warnings
	Accounts Accounts
	Holdings []Holding
}

// Holding is the position in a single symbol at the end of a reconciliation.
type Holding struct {
	Symbol          string
	Balance         Quantity
	LotQuantity     Quantity
	AverageUnitCost Money
	TotalCost       Money
	Priced          bool // false when no market price could be found
	Stale           bool // MarketPrice is the last known price, the lookup at valuation time failed
	MarketPrice     Money
	MarketValue     Money
	Unrealized      Money
	Realized        Money
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reconciler) { r.log = log }
}

// WithValuationTime sets the time at which holdings are valued. It defaults
// to the time of the last entry.
func WithValuationTime(t time.Time) Option {
	return func(r *Reconciler) { r.valuedAt = t }
}

// Reconciler reconstructs holdings and profit and loss from a stream of
// entries.
//
// Entries are routed to the book or buffered in the matchers, and the
// matchers are resolved every time the stream moves on by more than the
// quiescence period, and once more at the end. A Reconciler is single use.
//
// Fees and losses of an exchange with trade legs pending are held until the
// trades are resolved, so that a fee paid in the asset just bought consumes
// the lot of that purchase.
type Reconciler struct {
	cfg     Config
	log     *zap.Logger
	pricing *Pricing
	book    *Book
	ctx     context.Context // of the Feed or Finish call in progress

	trades    map[string]*TradeMatcher    // by exchange
	transfers map[string]*TransferMatcher // by symbol
	held      []Entry                     // fees and losses waiting for trades

	state          State
	started        bool
	seq            int
	lastResolution time.Time
	start, end     time.Time
	valuedAt       time.Time

	deposits Money
	accounts Accounts
	matches  []Match
	warnings Warnings
}

// NewReconciler creates a reconciler. oracle may be nil, in which case every
// non quote symbol is priced at zero, with a warning.
func NewReconciler(cfg Config, oracle PriceOracle, opts ...Option) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	r := &Reconciler{
		cfg:       cfg,
		log:       zap.NewNop(),
		trades:    make(map[string]*TradeMatcher),
		transfers: make(map[string]*TransferMatcher),
		deposits:  USD(0),
		accounts:  make(Accounts),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.pricing = NewPricing(oracle, cfg.Quotes, cfg.References, r.log)
	r.pricing.OnWarning(r.collect)
	r.book = NewBook(cfg.Method, cfg.Shortfall, cfg.Pinned...)
	r.book.OnWarning(r.collect)
	r.book.SetMarketPrice(func(symbol string, at time.Time) (Money, bool) {
		return r.pricing.Known(r.ctx, symbol, at)
	})
	return r, nil
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State { return r.state }

// Book returns the book being built.
func (r *Reconciler) Book() *Book { return r.book }

// Run reconciles entries in one go. Entries are sorted chronologically,
// entries sharing a timestamp keep their order in the slice.
func (r *Reconciler) Run(ctx context.Context, entries []Entry) (*Report, error) {
	sorted := slices.Clone(entries)
	Sequence(sorted, r.seq)
	SortEntries(sorted)
	for _, e := range sorted {
		if err := r.feed(ctx, e); err != nil {
			return nil, err
		}
	}
	return r.Finish(ctx)
}

// Feed routes a single entry. Entries must be fed in chronological order.
func (r *Reconciler) Feed(ctx context.Context, e Entry) error {
	e.Seq = r.seq
	return r.feed(ctx, e)
}

func (r *Reconciler) feed(ctx context.Context, e Entry) error {
	if r.state == Drained {
		return ErrDrained
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.ctx = ctx
	r.seq = max(r.seq, e.Seq+1)

	if !r.started {
		r.started = true
		r.start, r.end = e.Time, e.Time
		r.lastResolution = e.Time
	}
	if e.Time.Before(r.end) {
		return fmt.Errorf("%w: %v after %s", ErrOutOfOrder, e, r.end.Format(time.RFC3339))
	}
	if e.Time.Sub(r.lastResolution) > r.cfg.Quiescence {
		if err := r.resolve(ctx, e.Time); err != nil {
			return err
		}
	}
	r.end = e.Time
	r.route(ctx, e)
	return nil
}

// route books or buffers e according to its class.
func (r *Reconciler) route(ctx context.Context, e Entry) {
	if !e.Class.Valid() {
		err := e.classErr
		if err == nil {
			err = fmt.Errorf("%w: %v", ErrUnknownTransactionClass, e.Class)
		}
		r.collect(Warning{Kind: UnknownTransactionClass, Time: e.Time, Exchange: e.Exchange, Symbol: e.Symbol, Quantity: e.Amount, Err: err})
		return
	}
	if e.Amount.IsZero() {
		r.log.Debug("skip zero entry", zap.Stringer("entry", e))
		return
	}
	r.accounts.add(e)

	switch e.Class {
	case Gift:
		r.book.GetOrCreate(e.Symbol).Transfer(e.Amount, e.Time)
	case Transfer:
		if r.cfg.IsFiatAccount(e.Exchange) {
			// money leaving the bank enters the portfolio.
			price := r.pricing.UnitPrice(ctx, e.Symbol, e.Time)
			r.deposits = r.deposits.Sub(price.Mul(e.Amount))
		} else {
			r.book.GetOrCreate(e.Symbol).Transfer(e.Amount, e.Time)
		}
		r.transferMatcher(e.Symbol).Add(e)
	case Fee, Loss:
		if m, ok := r.trades[e.Exchange]; ok && m.Len() > 0 {
			r.log.Debug("hold until trades are resolved", zap.Stringer("entry", e))
			r.held = append(r.held, e)
			return
		}
		r.dispose(ctx, e)
	case Trade:
		r.tradeMatcher(e.Exchange).Add(e)
	}
}

func (r *Reconciler) tradeMatcher(exchange string) *TradeMatcher {
	m, ok := r.trades[exchange]
	if !ok {
		m = NewTradeMatcher(exchange, r.cfg.TimeTolerance)
		r.trades[exchange] = m
	}
	return m
}

func (r *Reconciler) transferMatcher(symbol string) *TransferMatcher {
	m, ok := r.transfers[symbol]
	if !ok {
		m = NewTransferMatcher(symbol, r.cfg.AmountTolerance)
		m.External = r.cfg.IsFiatAccount
		r.transfers[symbol] = m
	}
	return m
}

// dispose books a fee or a loss at the market price.
func (r *Reconciler) dispose(ctx context.Context, e Entry) {
	price := r.pricing.UnitPrice(ctx, e.Symbol, e.Time)
	cb := r.book.GetOrCreate(e.Symbol)
	if e.Class == Loss {
		cb.Loss(e.Amount, price, e.Time)
		return
	}
	cb.Fee(e.Amount, price, e.Time)
}

// resolve resolves every matcher that received entries since its last
// resolution: trades first, then the held fees and losses, then transfers.
func (r *Reconciler) resolve(ctx context.Context, at time.Time) error {
	r.state = Resolving
	defer func() {
		if r.state == Resolving {
			r.state = Scanning
		}
	}()

	for _, exchange := range slices.Sorted(maps.Keys(r.trades)) {
		m := r.trades[exchange]
		if !m.Dirty() {
			continue
		}
		res, err := m.Resolve(ctx, r.book, r.pricing)
		if errors.Is(err, ErrAmbiguousMatchBuffer) {
			r.collect(Warning{Kind: AmbiguousMatchBuffer, Time: at, Exchange: exchange, Quantity: Q(m.Len()), Err: err})
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving trades of %s: %w", exchange, err)
		}
		r.record(res.Matches)
	}

	slices.SortFunc(r.held, compareEntries)
	for _, e := range r.held {
		r.dispose(ctx, e)
	}
	r.held = r.held[:0]

	for _, symbol := range slices.Sorted(maps.Keys(r.transfers)) {
		m := r.transfers[symbol]
		if !m.Dirty() {
			continue
		}
		res, err := m.Resolve(ctx, r.book, r.pricing)
		if err != nil {
			return fmt.Errorf("resolving transfers of %s: %w", symbol, err)
		}
		r.record(res.Matches)
	}
	r.lastResolution = at
	return nil
}

func (r *Reconciler) record(matches []Match) {
	for _, m := range matches {
		r.log.Debug("matched", zap.String("id", m.ID), zap.Stringer("match", m), zap.Stringer("realized", m.Realized))
	}
	r.matches = append(r.matches, matches...)
}

// collect accumulates a warning.
func (r *Reconciler) collect(w Warning) {
	r.log.Warn(w.Kind.String(),
		zap.Time("time", w.Time),
		zap.String("exchange", w.Exchange),
		zap.String("symbol", w.Symbol),
		zap.Stringer("quantity", w.Quantity),
		zap.Error(w.Err),
	)
	r.warnings = append(r.warnings, w)
}

// pending returns all entries left in the matchers, chronologically.
func (r *Reconciler) pending() []Entry {
	var entries []Entry
	for _, m := range r.trades {
		entries = append(entries, m.pending...)
	}
	for _, m := range r.transfers {
		entries = append(entries, m.pending...)
	}
	slices.SortFunc(entries, compareEntries)
	return entries
}

// Finish resolves the matchers one last time and builds the report.
func (r *Reconciler) Finish(ctx context.Context) (*Report, error) {
	if r.state == Drained {
		return nil, ErrDrained
	}
	r.ctx = ctx
	if err := r.resolve(ctx, r.end); err != nil {
		return nil, err
	}
	pending := r.pending()
	if len(pending) > 0 {
		r.collect(Warning{
			Kind:     UnresolvedEntries,
			Time:     r.end,
			Quantity: Q(len(pending)),
			Err:      fmt.Errorf("%d entries left unmatched", len(pending)),
		})
		for _, e := range pending {
			r.log.Debug("unmatched", zap.Stringer("entry", e))
		}
	}
	r.state = Drained

	valuedAt := r.valuedAt
	if valuedAt.IsZero() {
		valuedAt = r.end
	}
	report := &Report{
		Method:              r.cfg.Method,
		Start:               r.start,
		End:                 r.end,
		ValuedAt:            valuedAt,
		Book:                r.book,
		Deposits:            r.deposits,
		RealizedProfitLoss:  r.book.RealizedProfitLoss(),
		EstimatedProfitLoss: r.book.EstimatedProfitLoss(),
		Matches:             r.matches,
		Pending:             pending,
		Accounts:            r.accounts,
	}
	report.Holdings = r.holdings(ctx, valuedAt)
	report.Warnings = r.warnings
	report.UnrealizedProfitLoss = USD(0)
	for _, h := range report.Holdings {
		report.UnrealizedProfitLoss = report.UnrealizedProfitLoss.Add(h.Unrealized)
	}
	return report, nil
}

// holdings values every cost basis of the book at a given time.
func (r *Reconciler) holdings(ctx context.Context, at time.Time) []Holding {
	var holdings []Holding
	for symbol := range r.book.Symbols() {
		cb := r.book.Get(symbol)
		h := Holding{
			Symbol:          symbol,
			Balance:         cb.Balance(),
			LotQuantity:     cb.LotQuantity(),
			AverageUnitCost: cb.AverageUnitCost(),
			TotalCost:       cb.TotalCost(),
			MarketPrice:     USD(0),
			MarketValue:     USD(0),
			Unrealized:      USD(0),
			Realized:        cb.RealizedProfitLoss(),
		}
		if price, stale, ok := r.pricing.valuation(ctx, symbol, at); ok {
			h.Priced = true
			h.Stale = stale
			if stale {
				r.collect(Warning{Kind: PriceUnavailable, Time: at, Symbol: symbol, Err: fmt.Errorf("valued at the last known price %v", price)})
			}
			h.MarketPrice = price
			h.MarketValue = price.Mul(cb.Balance())
			h.Unrealized = cb.UnrealizedProfitLoss(price)
		}
		holdings = append(holdings, h)
	}
	return holdings
}
