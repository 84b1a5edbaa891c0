// Package cache provides a best-effort response cache. Every operation
// degrades to a miss or a reported failure when the backend is absent or
// failing; callers never see an error and never block on cache health.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/taskhub/internal/platform/logger"
)

// DefaultTTL is the lifetime of cached list responses.
const DefaultTTL = time.Hour

// ErrMiss is returned by a Backend when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Backend is the key-value store behind the cache.
type Backend interface {
	// Get returns ErrMiss when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a trailing-* glob and
	// reports how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Cache wraps a Backend with JSON encoding and failure isolation.
type Cache struct {
	backend    Backend
	defaultTTL time.Duration
	logger     *slog.Logger
}

// New creates a Cache over backend. A nil backend yields a disabled cache.
func New(backend Backend, defaultTTL time.Duration, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		backend:    backend,
		defaultTTL: defaultTTL,
		logger:     log.With(slog.String("component", "cache")),
	}
}

// Disabled returns a cache on which every get misses.
func Disabled(log *slog.Logger) *Cache {
	return New(nil, DefaultTTL, log)
}

// Enabled reports whether a backend is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.backend != nil
}

// Get returns the raw value stored under key and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string) (raw []byte, hit bool) {
	if !c.Enabled() {
		return nil, false
	}
	defer c.recoverOp(ctx, "get", key, func() { raw, hit = nil, false })

	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.log(ctx).Warn("cache get failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	return data, true
}

// GetJSON decodes the value stored under key into dest and reports whether it did.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log(ctx).Warn("cached value could not be decoded", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Set stores value under key as JSON. A non-positive ttl uses the default.
// It reports whether the value was stored.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) (ok bool) {
	if !c.Enabled() {
		return false
	}
	defer c.recoverOp(ctx, "set", key, func() { ok = false })

	data, err := json.Marshal(value)
	if err != nil {
		c.log(ctx).Warn("value could not be encoded for cache", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		c.log(ctx).Warn("cache set failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Invalidate deletes key, or every key matching it when it ends in "*".
// It reports whether the backend accepted the delete.
func (c *Cache) Invalidate(ctx context.Context, keyOrPattern string) (ok bool) {
	if !c.Enabled() {
		return false
	}
	defer c.recoverOp(ctx, "invalidate", keyOrPattern, func() { ok = false })

	if strings.HasSuffix(keyOrPattern, "*") {
		n, err := c.backend.DeletePattern(ctx, keyOrPattern)
		if err != nil {
			c.log(ctx).Warn("cache pattern invalidation failed",
				slog.String("pattern", keyOrPattern), slog.String("error", err.Error()))
			return false
		}
		c.log(ctx).Debug("cache entries invalidated", slog.String("pattern", keyOrPattern), slog.Int("count", n))
		return true
	}

	if err := c.backend.Delete(ctx, keyOrPattern); err != nil {
		c.log(ctx).Warn("cache invalidation failed", slog.String("key", keyOrPattern), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Ping checks backend health.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("cache disabled")
	}
	return c.backend.Ping(ctx)
}

// Close releases the backend.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.backend.Close()
}

func (c *Cache) recoverOp(ctx context.Context, op, key string, onPanic func()) {
	if p := recover(); p != nil {
		c.log(ctx).Error("cache backend panicked",
			slog.String("op", op), slog.String("key", key), slog.Any("panic", p))
		onPanic()
	}
}

func (c *Cache) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, c.logger)
}

// MatchPattern reports whether key matches a glob that is either exact or
// ends in a single trailing "*".
func MatchPattern(key, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return key == pattern
}
