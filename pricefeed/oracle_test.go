package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/etnz/cryptobasis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2018, 1, 1, 10, 30, 0, 0, time.UTC)

// priceServer serves {"<fsym>":{"USD":<price>}} and counts the requests.
func priceServer(t *testing.T, body func(fsym string, ts int64) string) (*httptest.Server, *int) {
	t.Helper()
	hits := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		ts, err := strconv.ParseInt(r.URL.Query().Get("ts"), 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body(r.URL.Query().Get("fsym"), ts))
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestHTTPOracle_Address(t *testing.T) {
	o := NewHTTPOracle("https://example.com/{symbol}?ts={unix}&on={date}&at={time}", "$.price", nil, nil)
	got := o.Address("BTC", t0.In(time.FixedZone("EST", -5*3600)))
	want := "https://example.com/BTC?ts=1514802600&on=2018-01-01&at=2018-01-01T10%3A30%3A00Z"
	require.Equal(t, want, got)
}

func TestHTTPOracle_USDPrice(t *testing.T) {
	srv, _ := priceServer(t, func(fsym string, ts int64) string {
		return fmt.Sprintf(`{%q:{"USD":13500.5},"ts":%d}`, fsym, ts)
	})
	o := NewHTTPOracle(srv.URL+"/pricehistorical?fsym={symbol}&ts={unix}", "$.BTC.USD", srv.Client(), nil)

	price, err := o.USDPrice(context.Background(), "BTC", t0)
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("13500.5")), "USDPrice() = %v", price)
}

func TestHTTPOracle_StringPrice(t *testing.T) {
	srv, _ := priceServer(t, func(fsym string, ts int64) string {
		return `{"data":[{"symbol":"ETH","price":" 752.10 "}]}`
	})
	o := NewHTTPOracle(srv.URL+"?fsym={symbol}&ts={unix}", "$.data[0].price", srv.Client(), nil)

	price, err := o.USDPrice(context.Background(), "ETH", t0)
	require.NoError(t, err)
	require.Equal(t, "752.1", price.String())
}

func TestHTTPOracle_Errors(t *testing.T) {
	testCases := map[string]struct {
		body string
		path string
	}{
		"missing key":    {body: `{"BTC":{"USD":1}}`, path: "$.BTC.EUR"},
		"not a number":   {body: `{"BTC":{"USD":true}}`, path: "$.BTC.USD"},
		"invalid string": {body: `{"BTC":{"USD":"n/a"}}`, path: "$.BTC.USD"},
		"zero price":     {body: `{"BTC":{"USD":0}}`, path: "$.BTC.USD"},
		"not json":       {body: `<html></html>`, path: "$.BTC.USD"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			srv, _ := priceServer(t, func(string, int64) string { return tc.body })
			o := NewHTTPOracle(srv.URL+"?fsym={symbol}&ts={unix}", tc.path, srv.Client(), nil)
			_, err := o.USDPrice(context.Background(), "BTC", t0)
			require.Error(t, err)
		})
	}
}

func TestHTTPOracle_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	o := NewHTTPOracle(srv.URL+"?fsym={symbol}", "$.price", srv.Client(), nil)
	_, err := o.USDPrice(context.Background(), "BTC", t0)
	require.ErrorContains(t, err, "429")
}

func TestCachingClient(t *testing.T) {
	srv, hits := priceServer(t, func(fsym string, ts int64) string {
		return fmt.Sprintf(`{"price":%d}`, ts)
	})
	client := NewCachingClient(t.TempDir(), nil)
	o := NewHTTPOracle(srv.URL+"?fsym={symbol}&ts={unix}", "$.price", client, nil)
	ctx := context.Background()

	first, err := o.USDPrice(ctx, "BTC", t0)
	require.NoError(t, err)
	second, err := o.USDPrice(ctx, "BTC", t0)
	require.NoError(t, err)
	require.True(t, first.Equal(second))
	require.Equal(t, 1, *hits, "second request must be served from disk")

	_, err = o.USDPrice(ctx, "BTC", t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, *hits)
}

func TestCachingClient_SkipsFailures(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"price":42}`)
	}))
	defer srv.Close()
	o := NewHTTPOracle(srv.URL+"?fsym={symbol}", "$.price", NewCachingClient(t.TempDir(), nil), nil)
	ctx := context.Background()

	_, err := o.USDPrice(ctx, "BTC", t0)
	require.Error(t, err)
	price, err := o.USDPrice(ctx, "BTC", t0)
	require.NoError(t, err)
	require.Equal(t, "42", price.String())
	require.Equal(t, 2, hits)
}

func TestHTTPOracle_CachedOracle(t *testing.T) {
	srv, hits := priceServer(t, func(fsym string, ts int64) string {
		return fmt.Sprintf(`{"price":%d}`, ts%1000)
	})
	o := NewHTTPOracle(srv.URL+"?fsym={symbol}&ts={unix}", "$.price", srv.Client(), nil)
	cached := cryptobasis.NewCachedOracle(o, cryptobasis.NewMemoryCache(), nil)
	ctx := context.Background()

	a, err := cached.USDPrice(ctx, "BTC", t0.Add(5*time.Second))
	require.NoError(t, err)
	b, err := cached.USDPrice(ctx, "BTC", t0.Add(50*time.Second))
	require.NoError(t, err)
	require.True(t, a.Equal(b), "prices within a minute must agree: %v != %v", a, b)
	require.Equal(t, "600", a.String())
	require.Equal(t, 1, *hits)
}
