// Package ratelimit limits API requests per client, sharing counters through
// Redis when available and falling back to in-process token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter allows Limit requests per Period for each key.
type Limiter struct {
	limit  int
	period time.Duration
	redis  *redis_rate.Limiter
	logger *slog.Logger

	mu       sync.Mutex
	fallback map[string]*entry
	now      func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithRedis shares counters across processes. A nil client is ignored.
func WithRedis(rdb *redis.Client) Option {
	return func(l *Limiter) {
		if rdb != nil {
			l.redis = redis_rate.NewLimiter(rdb)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Limiter) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// New creates a limiter allowing limit requests per period and key.
func New(limit int, period time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:    limit,
		period:   period,
		logger:   slog.Default(),
		fallback: make(map[string]*entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request for key.
func (l *Limiter) Allow(ctx context.Context, key string) Result {
	if l.redis != nil {
		res, err := l.allowRedis(ctx, key)
		if err == nil {
			return res
		}
		l.logger.WarnContext(ctx, "redis rate limit check failed, using fallback", "key", key, "error", err)
	}
	return l.allowLocal(key)
}

func (l *Limiter) allowRedis(ctx context.Context, key string) (Result, error) {
	res, err := l.redis.Allow(ctx, "credscope:ratelimit:"+key, redis_rate.Limit{
		Rate:   l.limit,
		Burst:  l.limit,
		Period: l.period,
	})
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit: %w", err)
	}
	return Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		RetryAfter: max(res.RetryAfter, 0),
	}, nil
}

func (l *Limiter) allowLocal(key string) Result {
	now := l.now()

	l.mu.Lock()
	e, ok := l.fallback[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(float64(l.limit)/l.period.Seconds()), l.limit)}
		l.fallback[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	res := Result{Limit: l.limit}
	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		return res
	}
	res.Allowed = true
	res.Remaining = max(int(e.limiter.TokensAt(now)), 0)
	return res
}

// Sweep drops in-process buckets idle for longer than one period.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.period)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, e := range l.fallback {
		if e.lastSeen.Before(cutoff) {
			delete(l.fallback, key)
			n++
		}
	}
	return n
}

// Run sweeps idle buckets every period until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.DebugContext(ctx, "swept idle rate limiters", "count", n)
			}
		}
	}
}
