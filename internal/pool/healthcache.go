package pool

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"sqlgateway/internal/logger"
)

// RedisHealthCache memoizes Healthy() results for a short TTL so a fleet of
// gateway replicas doesn't all hammer a struggling database's connection-
// test query at once. It is a pure optimization: when absent (or on any
// Redis error) Manager.Healthy falls back to probing live, so correctness
// never depends on it.
type RedisHealthCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisHealthCache dials addr eagerly; callers should treat a non-nil
// error as "run without a health cache", not a fatal startup condition.
func NewRedisHealthCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisHealthCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisHealthCache{client: client, prefix: "sqlgateway:health:", ttl: ttl}, nil
}

func (c *RedisHealthCache) Get(ctx context.Context, name string) (healthy bool, found bool) {
	val, err := c.client.Get(ctx, c.prefix+name).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

func (c *RedisHealthCache) Set(ctx context.Context, name string, healthy bool) {
	val := "0"
	if healthy {
		val = "1"
	}
	if err := c.client.Set(ctx, c.prefix+name, val, c.ttl).Err(); err != nil {
		logger.WithComponent("pool").Warn("health cache write failed", "database", name, "error", err.Error())
	}
}

func (c *RedisHealthCache) Close() error {
	return c.client.Close()
}
