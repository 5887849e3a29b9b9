// Package cache wraps the Redis client shared by the quota/session
// tracker (C5) and the webhook idempotency table (C9).
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Client struct {
	Raw    *redis.Client
	logger *zap.Logger
}

type Config struct {
	URL        string
	MaxRetries int
	PoolSize   int
}

// New parses URL (redis://host:port/db) and verifies connectivity with a
// bounded ping before returning, so a misconfigured deployment fails at
// startup rather than on the first quota check.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}

	logger.Info("connected to redis", zap.String("addr", opts.Addr))
	return &Client{Raw: client, logger: logger}, nil
}

// SetNX sets key to value with the given TTL only if it does not already
// exist, returning whether this call created it — the building block for
// both quota reservation and webhook idempotency.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.Raw.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: setnx %s: %w", key, err)
	}
	return ok, nil
}

func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := c.Raw.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: incrby %s: %w", key, err)
	}
	return v, nil
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.Raw.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("cache: expire %s: %w", key, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.Raw.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache: get %s: %w", key, err)
	}
	return v, nil
}

func (c *Client) Del(ctx context.Context, key string) error {
	if err := c.Raw.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: del %s: %w", key, err)
	}
	return nil
}

func (c *Client) SAdd(ctx context.Context, key, member string, ttl time.Duration) error {
	pipe := c.Raw.TxPipeline()
	pipe.SAdd(ctx, key, member)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cache: sadd %s: %w", key, err)
	}
	return nil
}

func (c *Client) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := c.Raw.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("cache: sismember %s: %w", key, err)
	}
	return ok, nil
}

func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	n, err := c.Raw.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: scard %s: %w", key, err)
	}
	return n, nil
}

func (c *Client) SRem(ctx context.Context, key, member string) error {
	if err := c.Raw.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("cache: srem %s: %w", key, err)
	}
	return nil
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	v, err := c.Raw.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: smembers %s: %w", key, err)
	}
	return v, nil
}

func (c *Client) HSet(ctx context.Context, key string, fields map[string]string) error {
	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	if err := c.Raw.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("cache: hset %s: %w", key, err)
	}
	return nil
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := c.Raw.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: hgetall %s: %w", key, err)
	}
	return v, nil
}

func (c *Client) HDel(ctx context.Context, key, field string) error {
	if err := c.Raw.HDel(ctx, key, field).Err(); err != nil {
		return fmt.Errorf("cache: hdel %s: %w", key, err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.Raw.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *Client) Close() error { return c.Raw.Close() }
