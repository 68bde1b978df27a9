// Package cache is a small Redis-backed cache that fails safe: when Redis
// is unreachable every read is a miss and every write is dropped.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps redis.Client. A nil *Client is a valid, always-missing cache.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New creates a Redis cache. An empty addr returns nil, which disables
// caching.
func New(addr, password string, db int, prefix string) *Client {
	if addr == "" {
		return nil
	}
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  500 * time.Millisecond,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   -1,
		}),
		prefix: prefix,
	}
}

func (c *Client) key(k string) string { return c.prefix + k }

// Ping reports whether Redis answers. A nil client reports nil.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// GetInt returns the cached integer and whether it was present.
func (c *Client) GetInt(ctx context.Context, key string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	s, err := c.rdb.Get(ctx, c.key(key)).Result()
	if err != nil {
		// redis.Nil and connectivity errors are both misses
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetInt stores n under key with ttl. Errors are ignored.
func (c *Client) SetInt(ctx context.Context, key string, n int64, ttl time.Duration) {
	if c == nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(key), strconv.FormatInt(n, 10), ttl).Err()
}

// Delete removes keys. Errors are ignored.
func (c *Client) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	_ = c.rdb.Del(ctx, full...).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
