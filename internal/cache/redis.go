package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint passed to SCAN during invalidation.
const scanBatch = 200

// Redis is a Cache shared between API replicas. Keys are "<prefix>:<namespace>:<key>".
// Generation counters live under "<prefix>#gen:" so Clear never deletes them.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection with PING.
func NewRedis(ctx context.Context, addr, prefix string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("NewRedis: ping %s: %w", addr, err)
	}
	return NewRedisWithClient(client, prefix, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "psp-ledger"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (c *Redis) key(namespace, key string) string {
	return c.prefix + ":" + namespace + ":" + key
}

func (c *Redis) genKey(namespace string) string {
	return c.prefix + "#gen:" + namespace
}

func (c *Redis) epochKey() string {
	return c.prefix + "#epoch"
}

// Get returns the entry for (namespace, key). A missing key is a miss, not an error.
func (c *Redis) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, c.key(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache.Redis.Get: %w", err)
	}
	return v, true, nil
}

// Set stores value for (namespace, key) with the configured TTL.
func (c *Redis) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := c.client.Set(ctx, c.key(namespace, key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache.Redis.Set: %w", err)
	}
	return nil
}

// Generation returns the shared generation of namespace. Missing counters read as 0.
func (c *Redis) Generation(ctx context.Context, namespace string) (string, error) {
	vals, err := c.client.MGet(ctx, c.epochKey(), c.genKey(namespace)).Result()
	if err != nil {
		return "", fmt.Errorf("cache.Redis.Generation: %w", err)
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = "0"
		if s, ok := v.(string); ok {
			parts[i] = s
		}
	}
	return strings.Join(parts, "."), nil
}

// DeleteNamespace bumps the namespace generation, then removes every key under
// namespace using SCAN, so it never blocks the server the way KEYS would.
func (c *Redis) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := c.client.Incr(ctx, c.genKey(namespace)).Err(); err != nil {
		return fmt.Errorf("cache.Redis.DeleteNamespace: %w", err)
	}
	return c.deleteMatching(ctx, c.prefix+":"+namespace+":*")
}

// Clear bumps the cache epoch and removes every entry under the prefix.
func (c *Redis) Clear(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.epochKey()).Err(); err != nil {
		return fmt.Errorf("cache.Redis.Clear: %w", err)
	}
	return c.deleteMatching(ctx, c.prefix+":*")
}

func (c *Redis) deleteMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("cache.Redis: scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache.Redis: del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close closes the underlying client.
func (c *Redis) Close() error {
	return c.client.Close()
}

var _ Cache = (*Redis)(nil)
