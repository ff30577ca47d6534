// Package cache wraps a Redis connection with the key namespacing and TTL
// defaults shared by the conversation and object helpers. Reads report
// hit/miss explicitly so callers can tell a miss from a backend failure.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Addr     string
	Password string
	DB       int

	// Name namespaces every key as "<name>:<key>". Empty means no prefix.
	Name string

	// DefaultTTL is applied when a write does not carry its own TTL.
	DefaultTTL time.Duration
}

type Client struct {
	rdb        *redis.Client
	name       string
	defaultTTL time.Duration
	log        *logrus.Logger
}

func New(opts Options, log *logrus.Logger) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Client{
		rdb:        rdb,
		name:       opts.Name,
		defaultTTL: opts.DefaultTTL,
		log:        log,
	}
}

func (c *Client) key(k string) string {
	if c.name == "" {
		return k
	}
	return c.name + ":" + k
}

// Get returns the value stored under key. The boolean reports a cache hit;
// a miss is not an error.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return data, true, nil
}

// Set stores value under key. A non-positive ttl falls back to the client
// default.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// GetList returns the stored sequence for key in insertion order. The
// boolean reports whether the list exists.
func (c *Client) GetList(ctx context.Context, key string) ([]string, bool, error) {
	vals, err := c.rdb.LRange(ctx, c.key(key), 0, -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("cache list get %q: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, false, nil
	}
	return vals, true, nil
}

// AppendList appends values to the tail of the stored sequence and refreshes
// its TTL. The push and the TTL refresh run in one transaction, so a
// multi-record append lands as a unit.
func (c *Client) AppendList(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}

	k := c.key(key)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, k, args...)
	pipe.Expire(ctx, k, c.defaultTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache list append %q: %w", key, err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
