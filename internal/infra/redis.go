package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache commands serve request middleware and must fail fast.
const redisCommandTimeout = 2 * time.Second

// NewRedisClient opens the cache used for signup idempotency and login rate
// limiting, and checks that it answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = redisCommandTimeout
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = redisCommandTimeout
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisProbe reports whether the cache answers PING. A nil client is disabled.
func RedisProbe(client *redis.Client) Probe {
	p := Probe{Name: "redis"}
	if client != nil {
		p.Ping = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return p
}
