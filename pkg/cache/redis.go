package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecentPostsTTL bounds how long a post list outlives the last write to it.
const RecentPostsTTL = 24 * time.Hour

type Cache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to url and pings it. Keys are namespaced under prefix.
func NewRedisCache(ctx context.Context, url string, prefix string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{
		client: client,
		prefix: prefix,
	}, nil
}

func (c *Cache) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// PushCapped pushes values onto the head of the list at key, keeps at most
// limit entries and refreshes the ttl, all in one MULTI/EXEC.
func (c *Cache) PushCapped(ctx context.Context, key string, limit int, ttl time.Duration, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, args...)
		if limit > 0 {
			pipe.LTrim(ctx, key, 0, int64(limit-1))
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

// LRange returns the entries between start and stop, head first.
func (c *Cache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.client.LRange(ctx, key, start, stop).Result()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
