package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sqlgateway/internal/logger"
)

// RedisQueueSink LPUSHes every sampled PerformanceRecord onto a bounded
// list, trimmed on write, for an out-of-process consumer to drain.
type RedisQueueSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

func NewRedisQueueSink(addr, password string, db int) (*RedisQueueSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisQueueSink{client: client, key: "sqlgateway:metrics:queue", maxLen: 10000}, nil
}

func (s *RedisQueueSink) Send(ctx context.Context, rec PerformanceRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		logger.WithComponent("metrics").Warn("marshaling performance record failed", "error", err.Error())
		return
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.key, payload)
	pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.WithComponent("metrics").Warn("redis metrics queue push failed", "error", err.Error())
	}
}

func (s *RedisQueueSink) Close() error {
	return s.client.Close()
}
