// Package cache keeps fetched page text in Redis so repeated scans of the
// same site skip the network.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"beacon/internal/ports"
)

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

const keyPrefix = "beacon:page:"

// PageKey is the cache key for a URL. Scheme, case and trailing slashes do
// not produce distinct entries.
func PageKey(rawURL string) string {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	u = strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	u = strings.TrimRight(u, "/")
	sum := sha256.Sum256([]byte(u))
	return keyPrefix + hex.EncodeToString(sum[:12])
}

// PageCache decorates a PageFetcher. Redis errors are logged and the call
// falls through to the wrapped fetcher.
type PageCache struct {
	next   ports.PageFetcher
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewPageCache(next ports.PageFetcher, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *PageCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageCache{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *PageCache) Fetch(ctx context.Context, url string) (string, error) {
	key := PageKey(url)
	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "page cache read failed", "url", url, "error", err)
	}

	content, err := c.next.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if content == "" {
		return content, nil
	}
	if err := c.rdb.Set(ctx, key, content, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "page cache write failed", "url", url, "error", err)
	}
	return content, nil
}
