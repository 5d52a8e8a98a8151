package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows requests within the limit", func(t *testing.T) {
		limiter := NewMemoryLimiter()

		for i := 0; i < 3; i++ {
			allowed, _ := limiter.CheckLimit(ctx, "user1", 3, 10*time.Second)
			assert.True(t, allowed, "request %d should be allowed", i+1)
		}

		allowed, resetAt := limiter.CheckLimit(ctx, "user1", 3, 10*time.Second)
		assert.False(t, allowed)
		assert.True(t, resetAt.After(time.Now()))
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		window := 200 * time.Millisecond

		allowed, _ := limiter.CheckLimit(ctx, "user2", 1, window)
		assert.True(t, allowed)
		allowed, _ = limiter.CheckLimit(ctx, "user2", 1, window)
		assert.False(t, allowed)

		time.Sleep(window + 50*time.Millisecond)

		allowed, _ = limiter.CheckLimit(ctx, "user2", 1, window)
		assert.True(t, allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		limiter := NewMemoryLimiter()

		allowed, _ := limiter.CheckLimit(ctx, "user3", 1, 10*time.Second)
		assert.True(t, allowed)
		allowed, _ = limiter.CheckLimit(ctx, "user3", 1, 10*time.Second)
		assert.False(t, allowed)

		allowed, _ = limiter.CheckLimit(ctx, "user4", 1, 10*time.Second)
		assert.True(t, allowed)
	})
}

// Uses DB 15 of a local Redis, skipped when none is running.
func TestRedisLimiter(t *testing.T) {
	opts, err := redis.ParseURL("redis://localhost:6379/15")
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}

	client := redis.NewClient(opts)
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	ctx := context.Background()
	client.FlushDB(ctx)

	limiter := NewRedisLimiter(client)

	t.Run("allows requests within the limit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, _ := limiter.CheckLimit(ctx, "test:user1", 3, 10*time.Second)
			assert.True(t, allowed, "request %d should be allowed", i+1)
		}

		allowed, resetAt := limiter.CheckLimit(ctx, "test:user1", 3, 10*time.Second)
		assert.False(t, allowed)
		assert.True(t, resetAt.After(time.Now()))
	})

	t.Run("keys are independent", func(t *testing.T) {
		allowed, _ := limiter.CheckLimit(ctx, "test:user2", 1, 10*time.Second)
		assert.True(t, allowed)
		allowed, _ = limiter.CheckLimit(ctx, "test:user2", 1, 10*time.Second)
		assert.False(t, allowed)

		allowed, _ = limiter.CheckLimit(ctx, "test:user3", 1, 10*time.Second)
		assert.True(t, allowed)
	})
}
