// Package cache wraps Redis for the coordination state shared between API replicas.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"civicbudget/internal/logger"
)

// Client is a logging wrapper around a go-redis client.
type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *zap.SugaredLogger
}

// NewClient parses redisURL, connects and pings the server.
func NewClient(redisURL, environment string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = 10
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, KeyBuilder: NewKeyBuilder(environment), log: logger.Named("redis")}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// SetNX sets key only if it does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		c.log.Infow("redis_setnx", "key", key, "duration", time.Since(start), "error", err)
	} else {
		c.log.Debugw("redis_setnx", "key", key, "result", ok, "duration", time.Since(start))
	}
	return ok, err
}

// Get returns the value at key. A missing key yields redis.Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		c.log.Infow("redis_get", "key", key, "error", err)
	}
	return val, err
}

// CompareAndDelete deletes key when it still holds value, reporting whether it did.
func (c *Client) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, c.rdb, []string{key}, value).Int()
	if err != nil {
		c.log.Infow("redis_compare_and_delete", "key", key, "error", err)
		return false, err
	}
	return n == 1, nil
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	err := c.rdb.Ping(ctx).Err()
	if err != nil {
		c.log.Infow("redis_ping", "error", err)
	}
	return err
}

var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
