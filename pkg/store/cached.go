package store

import (
	"context"
	"encoding/json"
	"time"

	"rileybot/pkg/cache"

	"github.com/rs/zerolog/log"
)

// ListCache is the slice of *cache.Cache that CachedStore needs.
type ListCache interface {
	Key(parts ...string) string
	PushCapped(ctx context.Context, key string, limit int, ttl time.Duration, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// CachedStore keeps the newest posts in a Redis list in front of a slower
// store. The wrapped store stays the source of truth; cache errors only cost
// a fallback read.
type CachedStore struct {
	Store
	cache ListCache
	size  int
	scope []string
}

// NewCachedStore puts c in front of store. scope names the backing history
// (backend, path) so two histories never share a cached list.
func NewCachedStore(store Store, c ListCache, size int, scope ...string) *CachedStore {
	if size <= 0 {
		size = 50
	}
	return &CachedStore{Store: store, cache: c, size: size, scope: scope}
}

func (c *CachedStore) key() string {
	return c.cache.Key(append([]string{"recent_posts"}, c.scope...)...)
}

func (c *CachedStore) Append(ctx context.Context, p Post) error {
	if err := c.Store.Append(ctx, p); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	key := c.key()
	if err := c.cache.PushCapped(ctx, key, c.size, cache.RecentPostsTTL, string(data)); err != nil {
		log.Debug().Err(err).Msg("Failed to cache post")
		_ = c.cache.Delete(ctx, key)
	}
	return nil
}

func (c *CachedStore) Recent(ctx context.Context, n int) ([]Post, error) {
	if n <= 0 {
		return nil, nil
	}
	key := c.key()

	if n <= c.size {
		data, err := c.cache.LRange(ctx, key, 0, int64(n-1))
		if err == nil && len(data) == n {
			posts := make([]Post, 0, n)
			for i := len(data) - 1; i >= 0; i-- {
				var p Post
				if err := json.Unmarshal([]byte(data[i]), &p); err != nil {
					posts = nil
					break
				}
				posts = append(posts, p)
			}
			if posts != nil {
				return posts, nil
			}
		}
	}

	posts, err := c.Store.Recent(ctx, max(n, c.size))
	if err != nil {
		return nil, err
	}
	c.refill(ctx, key, posts)
	return tail(posts, n), nil
}

func (c *CachedStore) refill(ctx context.Context, key string, posts []Post) {
	_ = c.cache.Delete(ctx, key)
	if len(posts) == 0 {
		return
	}
	values := make([]string, 0, len(posts))
	for _, p := range posts {
		data, err := json.Marshal(p)
		if err != nil {
			return
		}
		values = append(values, string(data))
	}
	// LPUSH a b c leaves c at the head, so oldest-first input puts the newest first
	if err := c.cache.PushCapped(ctx, key, c.size, cache.RecentPostsTTL, values...); err != nil {
		log.Debug().Err(err).Msg("Failed to refill post cache")
	}
}

func (c *CachedStore) Close() error {
	err := c.Store.Close()
	if closer, ok := c.cache.(interface{ Close() error }); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
