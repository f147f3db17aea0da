package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/cryptobasis"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HTTPOracle reads historical USD prices from a JSON web service.
//
// URL is a template where the following placeholders are replaced:
//
//	{symbol} the symbol, e.g. BTC
//	{unix}   the unix time in seconds
//	{time}   the RFC3339 time in UTC
//	{date}   the day in UTC, e.g. 2018-01-31
//
// Path is a JSONPath expression selecting the price in the response, e.g.
// "$.BTC.USD". The value can be a JSON number or a string.
type HTTPOracle struct {
	URL    string
	Path   string
	Client *http.Client
	Log    *zap.Logger
}

var _ cryptobasis.PriceOracle = (*HTTPOracle)(nil)

// NewHTTPOracle creates an oracle using client, or http.DefaultClient if nil.
func NewHTTPOracle(urlTemplate, path string, client *http.Client, log *zap.Logger) *HTTPOracle {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPOracle{URL: urlTemplate, Path: path, Client: client, Log: log}
}

// Address returns the URL queried for symbol at a given time.
func (o *HTTPOracle) Address(symbol string, at time.Time) string {
	at = at.UTC()
	r := strings.NewReplacer(
		"{symbol}", url.QueryEscape(symbol),
		"{unix}", strconv.FormatInt(at.Unix(), 10),
		"{time}", url.QueryEscape(at.Format(time.RFC3339)),
		"{date}", at.Format(time.DateOnly),
	)
	return r.Replace(o.URL)
}

func (o *HTTPOracle) USDPrice(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	addr := o.Address(symbol, at)
	var jobj any
	if err := jwget(ctx, o.Client, addr, &jobj); err != nil {
		return decimal.Zero, fmt.Errorf("error retrieving %s price: %w", symbol, err)
	}
	jval, err := jsonpath.Get(o.Path, jobj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error parsing %s price: %q %w", symbol, o.Path, err)
	}
	// jsonpath returns either a single answer or a list of them: keep the first one.
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}

	var price decimal.Decimal
	switch v := jval.(type) {
	case float64:
		price = decimal.NewFromFloat(v)
	case string:
		price, err = decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("error parsing %s price: %q is not a number: %w", symbol, v, err)
		}
	default:
		return decimal.Zero, fmt.Errorf("error parsing %s price: %q selects %v, not a number", symbol, o.Path, jval)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("no %s price at %s: got %v", symbol, at.UTC().Format(time.RFC3339), price)
	}
	o.Log.Debug("price", zap.String("symbol", symbol), zap.Time("at", at), zap.Stringer("usd", price))
	return price, nil
}
