package pricefeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/etnz/cryptobasis"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisCache is a cryptobasis.PriceCache stored in Redis. Prices are kept
// without expiration under "<prefix><symbol>@<minute>".
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

var _ cryptobasis.PriceCache = (*RedisCache)(nil)

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix}
}

// DialRedis connects to the Redis server at url, e.g. "redis://localhost:6379/0".
func DialRedis(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisCache(rdb, prefix), nil
}

func (c *RedisCache) key(k cryptobasis.PriceKey) string { return c.prefix + k.String() }

func (c *RedisCache) Get(ctx context.Context, key cryptobasis.PriceKey) (decimal.Decimal, bool, error) {
	s, err := c.rdb.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid cached price %s=%q: %w", c.key(key), s, err)
	}
	return price, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key cryptobasis.PriceKey, price decimal.Decimal) error {
	return c.rdb.Set(ctx, c.key(key), price.String(), 0).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error { return c.rdb.Close() }
