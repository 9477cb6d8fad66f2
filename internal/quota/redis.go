package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "mcp:quota:"

// RedisCounter is a fixed-window Counter kept in Redis. Each caller gets one
// key per window holding a request count; the key expires with its window.
type RedisCounter struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// RedisOption configures a RedisCounter.
type RedisOption func(*RedisCounter)

// WithKeyPrefix sets the prefix for every counter key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisCounter) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithRedisClock overrides the time source used to pick the window.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(c *RedisCounter) {
		if now != nil {
			c.now = now
		}
	}
}

// NewRedisCounter connects to addr and verifies the connection with a PING.
func NewRedisCounter(ctx context.Context, addr string, opts ...RedisOption) (*RedisCounter, error) {
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	c := &RedisCounter{client: cl, keyPrefix: defaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the Redis client.
func (c *RedisCounter) Close() error { return c.client.Close() }

func (c *RedisCounter) Take(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := c.now()
	slot := now.UnixNano() / int64(window)
	windowEnd := time.Unix(0, (slot+1)*int64(window))
	k := c.keyPrefix + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	if _, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.PExpire(ctx, k, window)
		return nil
	}); err != nil {
		return Decision{}, fmt.Errorf("quota incr: %w", err)
	}

	count := int(incr.Val())
	if count <= limit {
		return Decision{Allowed: true, Limit: limit, Remaining: limit - count}, nil
	}
	return Decision{Allowed: false, Limit: limit, RetryAfter: windowEnd.Sub(now)}, nil
}
