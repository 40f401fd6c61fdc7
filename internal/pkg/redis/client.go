// internal/pkg/redis/client.go
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client with the few primitives the services
// actually use: dedup keys and the customer-spend leaderboard.
type Client struct {
	rdb *goredis.Client
}

func NewClient(addr string) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) GetClient() *goredis.Client {
	return c.rdb
}

// SetNX claims key for ttl. Returns true when this caller won the claim,
// false when another worker already holds it. This is what makes
// at-least-once consumers effectively once.
func (c *Client) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// SetNXValue claims key with an explicit value for ttl. Returns true when
// this caller won the claim.
func (c *Client) SetNXValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Get returns the value at key, or "" when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return val, err
}

// Set writes key unconditionally with ttl.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// ZIncrBy adjusts a leaderboard member score. Negative deltas are fine
// (refunds reduce a customer's spend).
func (c *Client) ZIncrBy(ctx context.Context, key, member string, delta float64) error {
	return c.rdb.ZIncrBy(ctx, key, delta, member).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
