// Package cache keeps exported rasters in Redis keyed by the SVG content and
// the export settings, so repeated conversions skip the browser.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"svg2img/internal/document"
	u "svg2img/internal/utils"
)

const keyPrefix = "rastercache:"

// RenderCache is a Redis-backed raster store. A nil *RenderCache is a valid,
// always-missing cache.
type RenderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns nil when caching is disabled.
func New(cfg u.CacheConfig) *RenderCache {
	if !cfg.Enabled {
		return nil
	}
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr: cfg.RedisHost,
		DB:   cfg.RedisDB,
	}), cfg.TTL)
}

func NewWithClient(rdb *redis.Client, ttl time.Duration) *RenderCache {
	return &RenderCache{rdb: rdb, ttl: ttl}
}

// Key derives the cache key for svg rendered as f.
func Key(svg []byte, f document.Format, jpegQuality float64) string {
	h := sha256.New()
	h.Write(svg)
	h.Write([]byte{0})
	h.Write([]byte(f))
	if f.Opaque() {
		h.Write([]byte(strconv.FormatFloat(jpegQuality, 'f', 3, 64)))
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached raster and whether it was found. Redis errors are
// logged and reported as a miss.
func (c *RenderCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		u.FromContext(ctx).Warn("Redis read failed", "error", err)
		return nil, false
	}
	u.FromContext(ctx).Debug("Raster cache hit", "key", key)
	return data, true
}

// Set stores data; a non-positive TTL falls back to one minute.
func (c *RenderCache) Set(ctx context.Context, key string, data []byte) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	ttl := c.ttl
	if ttl <= 0 {
		ttl = 1 * time.Minute
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		u.FromContext(ctx).Warn("Redis write failed", "error", err)
	}
}

func (c *RenderCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
