package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

// TTLCache is a keyed cache whose entries expire after a fixed time-to-live.
type TTLCache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Purge(ctx context.Context) error
}

// CacheRepository abstracts the JSON key/value store behind the Redis cache driver.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RedisCache adapts a CacheRepository to TTLCache. Keys are scoped by prefix so Purge only touches this cache.
type RedisCache[V any] struct {
	repo   CacheRepository
	prefix string
	ttl    time.Duration
}

// NewRedisCache constructs a Redis backed TTLCache.
func NewRedisCache[V any](repo CacheRepository, prefix string, ttl time.Duration) *RedisCache[V] {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache[V]{repo: repo, prefix: strings.TrimSuffix(prefix, ":"), ttl: ttl}
}

func (c *RedisCache[V]) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get loads and decodes a value.
func (c *RedisCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var value V
	if err := c.repo.Get(ctx, c.key(key), &value); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return value, false, nil
		}
		return value, false, err
	}
	return value, true, nil
}

// Set stores a value with the cache TTL.
func (c *RedisCache[V]) Set(ctx context.Context, key string, value V) error {
	return c.repo.Set(ctx, c.key(key), value, c.ttl)
}

// Delete removes a key.
func (c *RedisCache[V]) Delete(ctx context.Context, key string) error {
	return c.repo.Delete(ctx, c.key(key))
}

// DeletePrefix removes all keys starting with prefix.
func (c *RedisCache[V]) DeletePrefix(ctx context.Context, prefix string) error {
	return c.repo.DeleteByPattern(ctx, c.key(prefix)+"*")
}

// Purge removes every key of this cache.
func (c *RedisCache[V]) Purge(ctx context.Context) error {
	return c.repo.DeleteByPattern(ctx, c.key("*"))
}

// CacheService wraps a TTLCache driver with metrics and logging. Read and write failures degrade to misses;
// invalidation failures are returned because a stale entry would keep serving outdated data.
type CacheService[V any] struct {
	name    string
	driver  TTLCache[V]
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCacheService constructs a named cache service. A nil driver disables caching.
func NewCacheService[V any](name string, driver TTLCache[V], metrics *MetricsService, logger *zap.Logger) *CacheService[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService[V]{name: name, driver: driver, metrics: metrics, logger: logger}
}

// Enabled indicates whether a driver is configured.
func (s *CacheService[V]) Enabled() bool {
	return s != nil && s.driver != nil
}

// Get returns the cached value and whether it was hit.
func (s *CacheService[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if !s.Enabled() {
		return zero, false
	}
	start := time.Now()
	value, ok, err := s.driver.Get(ctx, key)
	s.metrics.RecordCacheOperation(s.name, ok && err == nil, time.Since(start))
	if err != nil {
		s.logger.Warn("cache get failed", zap.String("cache", s.name), zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return value, ok
}

// Set stores a value.
func (s *CacheService[V]) Set(ctx context.Context, key string, value V) {
	if !s.Enabled() {
		return
	}
	start := time.Now()
	err := s.driver.Set(ctx, key, value)
	s.metrics.ObserveCacheWrite(s.name, time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("cache", s.name), zap.String("key", key), zap.Error(err))
	}
}

// Delete removes one key.
func (s *CacheService[V]) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.driver.Delete(ctx, key); err != nil {
		s.logger.Warn("cache delete failed", zap.String("cache", s.name), zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate removes every key starting with prefix.
func (s *CacheService[V]) Invalidate(ctx context.Context, prefix string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.driver.DeletePrefix(ctx, prefix); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("cache", s.name), zap.String("prefix", prefix), zap.Error(err))
		return err
	}
	return nil
}

// Purge drops the whole cache.
func (s *CacheService[V]) Purge(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.driver.Purge(ctx); err != nil {
		s.logger.Warn("cache purge failed", zap.String("cache", s.name), zap.Error(err))
		return err
	}
	return nil
}
