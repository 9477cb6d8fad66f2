package quota

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCounter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	clock := newClock()
	c, err := NewRedisCounter(context.Background(), addr,
		WithKeyPrefix("mcp-gateway-test:"+uuid.NewString()+":"),
		WithRedisClock(clock.Now),
	)
	if err != nil {
		t.Skipf("skipping redis quota tests: %v", err)
		return
	}
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := c.Take(ctx, "user:a", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1-i, d.Remaining)
	}

	clock.Advance(15 * time.Second)
	d, err := c.Take(ctx, "user:a", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 45*time.Second, d.RetryAfter)

	d, err = c.Take(ctx, "user:b", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	clock.Advance(45 * time.Second)
	d, err = c.Take(ctx, "user:a", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a new window starts fresh")
}

func TestNewRedisCounterUnreachable(t *testing.T) {
	_, err := NewRedisCounter(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}
