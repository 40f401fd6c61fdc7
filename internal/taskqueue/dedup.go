// internal/taskqueue/dedup.go
package taskqueue

import (
	"context"
	"sync"
	"time"

	"fulfillment/internal/pkg/redis"
)

// RedisDeduper claims keys with SETNX so a claim survives worker crashes and
// is visible across the whole pool.
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func (d *RedisDeduper) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, key, ttl)
}

// InmemDeduper is the test/local counterpart.
type InmemDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewInmemDeduper() *InmemDeduper {
	return &InmemDeduper{seen: make(map[string]struct{})}
}

func (d *InmemDeduper) Once(_ context.Context, key string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}
