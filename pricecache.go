package cryptobasis

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceKey identifies a cached price: prices are cached per minute.
type PriceKey struct {
	Symbol string
	Minute time.Time
}

// KeyOf returns the cache key of symbol at a given time.
func KeyOf(symbol string, at time.Time) PriceKey {
	return PriceKey{Symbol: symbol, Minute: at.UTC().Truncate(time.Minute)}
}

func (k PriceKey) String() string {
	return fmt.Sprintf("%s@%s", k.Symbol, k.Minute.Format(time.RFC3339))
}

// PriceCache stores prices returned by an oracle. Lookups for the same key
// must always return the same value, so entries never expire.
type PriceCache interface {
	Get(ctx context.Context, key PriceKey) (price decimal.Decimal, ok bool, err error)
	Put(ctx context.Context, key PriceKey, price decimal.Decimal) error
}

// MemoryCache is an in-process PriceCache. Its zero value is ready to use.
type MemoryCache struct {
	prices map[PriceKey]decimal.Decimal
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{prices: make(map[PriceKey]decimal.Decimal)}
}

func (c *MemoryCache) Get(_ context.Context, key PriceKey) (decimal.Decimal, bool, error) {
	p, ok := c.prices[key]
	return p, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key PriceKey, price decimal.Decimal) error {
	if c.prices == nil {
		c.prices = make(map[PriceKey]decimal.Decimal)
	}
	c.prices[key] = price
	return nil
}

// Len returns the number of cached prices.
func (c *MemoryCache) Len() int { return len(c.prices) }

// CachedOracle is a read-through cache in front of a PriceOracle.
// Cache failures are logged and otherwise ignored.
type CachedOracle struct {
	Oracle PriceOracle
	Cache  PriceCache
	Log    *zap.Logger
}

// NewCachedOracle wraps oracle with cache.
func NewCachedOracle(oracle PriceOracle, cache PriceCache, log *zap.Logger) *CachedOracle {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedOracle{Oracle: oracle, Cache: cache, Log: log}
}

func (c *CachedOracle) USDPrice(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	key := KeyOf(symbol, at)
	price, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.Log.Warn("price cache read failed (ignored)", zap.Stringer("key", key), zap.Error(err))
	}
	if ok {
		return price, nil
	}

	// query at the start of the minute so that all lookups of a key agree.
	price, err = c.Oracle.USDPrice(ctx, symbol, key.Minute)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.Cache.Put(ctx, key, price); err != nil {
		c.Log.Warn("price cache write failed (ignored)", zap.Stringer("key", key), zap.Error(err))
	}
	return price, nil
}
