// Package socialcache serves account join dates for external social services.
// Dates are read through Redis, backed by an in-process LRU, and filled on
// miss by a per-service Loader.
package socialcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/credscope/credscope/internal/cache"
	"github.com/credscope/credscope/pkg/signals"
)

const (
	keyPrefix = "credscope:joined:"
	// notFound marks an account the loader has no record of.
	notFound = "-"

	DefaultTTL = 7 * 24 * time.Hour
)

// Loader fetches the join date of an account on one service.
type Loader interface {
	JoinDate(ctx context.Context, accountID string) (joined time.Time, found bool, err error)
}

type lookup struct {
	joined time.Time
	found  bool
}

// Cache implements signals.SocialProfiles.
type Cache struct {
	redis   redis.Cmdable
	local   *cache.LRU[lookup]
	loaders map[string]Loader
	ttl     time.Duration
	logger  *slog.Logger
}

var _ signals.SocialProfiles = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

// WithRedis enables the shared Redis layer. A nil client leaves it disabled.
func WithRedis(rdb *redis.Client) Option {
	return func(c *Cache) {
		if rdb != nil {
			c.redis = rdb
		}
	}
}

// WithLoader registers the loader for service.
func WithLoader(service string, l Loader) Option {
	return func(c *Cache) { c.loaders[service] = l }
}

// WithTTL sets how long cached dates live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache. Without Redis it serves from the in-process LRU only.
func New(opts ...Option) *Cache {
	c := &Cache{
		loaders: map[string]Loader{},
		ttl:     DefaultTTL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.local = cache.NewLRU[lookup](4096, c.ttl)
	return c
}

func key(service, accountID string) string {
	return keyPrefix + service + ":" + accountID
}

// JoinDate implements signals.SocialProfiles.
func (c *Cache) JoinDate(ctx context.Context, service, accountID string) (time.Time, bool, error) {
	k := key(service, accountID)
	if v, ok := c.local.Get(k); ok {
		return v.joined, v.found, nil
	}

	if c.redis != nil {
		v, ok, err := c.readRedis(ctx, k)
		if err != nil {
			// Redis trouble degrades to the loader rather than failing the signal.
			c.logger.WarnContext(ctx, "social cache read failed", "key", k, "error", err)
		} else if ok {
			c.local.Put(k, v)
			return v.joined, v.found, nil
		}
	}

	loader, ok := c.loaders[service]
	if !ok {
		return time.Time{}, false, nil
	}
	joined, found, err := loader.JoinDate(ctx, accountID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load %s join date for %s: %w", service, accountID, err)
	}
	v := lookup{joined: joined.UTC(), found: found}
	c.store(ctx, k, v)
	return v.joined, v.found, nil
}

func (c *Cache) readRedis(ctx context.Context, k string) (lookup, bool, error) {
	raw, err := c.redis.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return lookup{}, false, nil
	}
	if err != nil {
		return lookup{}, false, err
	}
	if raw == notFound {
		return lookup{found: false}, true, nil
	}
	joined, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return lookup{}, false, fmt.Errorf("parse cached join date %q: %w", raw, err)
	}
	return lookup{joined: joined.UTC(), found: true}, true, nil
}

func (c *Cache) store(ctx context.Context, k string, v lookup) {
	c.local.Put(k, v)
	if c.redis == nil {
		return
	}
	raw := notFound
	if v.found {
		raw = v.joined.Format(time.RFC3339)
	}
	if err := c.redis.Set(ctx, k, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "social cache write failed", "key", k, "error", err)
	}
}
