package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backend-fieldtrack/internal/shared/apperrors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Per-user caps carried over from the mobile clients' update cadence:
// GPS pings at most every ~10s, visits bounded by real-world stop frequency.
const (
	gpsLimit    = 6
	gpsWindow   = time.Minute
	visitLimit  = 10
	visitWindow = time.Hour
)

var nowFn = time.Now

// CounterStore is a fixed-window counter keyed by user+operation. Incr
// bumps the counter for the window containing now and returns the new
// count. The Redis implementation makes limits hold across processes;
// the in-memory one is a single-process approximation.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	bucket := nowFn().Unix() / int64(window.Seconds())
	bucketKey := fmt.Sprintf("%s:%d", key, bucket)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
}

type windowCounter struct {
	start time.Time
	count int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: map[string]*windowCounter{}}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.Sub(c.start) >= window {
		c = &windowCounter{start: now}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Limiter enforces the per-user tracking caps before any store mutation.
type Limiter struct {
	store CounterStore
}

// New picks the Redis-backed store when a client is available, otherwise
// falls back to process-local counters.
func New(client *redis.Client) *Limiter {
	if client != nil {
		return &Limiter{store: NewRedisStore(client)}
	}
	return &Limiter{store: NewMemoryStore()}
}

func NewWithStore(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// AllowGPS admits up to 6 position updates per rolling minute per user.
func (l *Limiter) AllowGPS(ctx context.Context, userID string) error {
	return l.allow(ctx, "rl:gps:"+userID, gpsLimit, gpsWindow)
}

// AllowVisit admits up to 10 visit check-ins per rolling hour per user.
func (l *Limiter) AllowVisit(ctx context.Context, userID string) error {
	return l.allow(ctx, "rl:visit:"+userID, visitLimit, visitWindow)
}

func (l *Limiter) allow(ctx context.Context, key string, limit int64, window time.Duration) error {
	n, err := l.store.Incr(ctx, key, window)
	if err != nil {
		// Fail open: a counter-store outage must not take tracking down.
		log.Error().Err(err).Str("key", key).Msg("rate limit counter failed")
		return nil
	}
	if n > limit {
		return apperrors.ErrRateLimited
	}
	return nil
}
