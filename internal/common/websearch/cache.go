// internal/common/websearch/cache.go
package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

// CachedDiscovery is a read-through Redis cache in front of a Discovery.
// Cache failures never fail a call; they fall through to the wrapped client.
type CachedDiscovery struct {
	next   Discovery
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedDiscovery(next Discovery, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedDiscovery {
	return &CachedDiscovery{
		next:  next,
		redis: rdb,
		ttl:   ttl,
		logger: log.With(map[string]interface{}{
			"component": "discovery-cache",
		}),
	}
}

// SearchKey is the cache key for a search call.
func SearchKey(query string, opts SearchOptions) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	return cacheKey("search", fmt.Sprintf("%s|%s|%d", normalized, opts.SearchDepth, opts.MaxResults))
}

// ExtractKey is the cache key for one extracted URL.
func ExtractKey(url string) string {
	return cacheKey("extract", strings.TrimSpace(url))
}

func cacheKey(operation, input string) string {
	sum := sha256.Sum256([]byte(input))
	return "discovery:" + operation + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedDiscovery) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	key := SearchKey(query, opts)

	var hits []Hit
	if c.lookup(ctx, key, &hits) {
		metrics.DiscoveryCacheHits.WithLabelValues("search").Inc()
		return hits, nil
	}

	hits, err := c.next.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, hits)
	return hits, nil
}

// Extract serves cached pages and forwards only the misses. Failed pages are
// never cached.
func (c *CachedDiscovery) Extract(ctx context.Context, urls []string) ([]Page, error) {
	cached := make(map[string]Page, len(urls))
	var misses []string
	for _, u := range urls {
		var page Page
		if c.lookup(ctx, ExtractKey(u), &page) {
			cached[u] = page
			continue
		}
		misses = append(misses, u)
	}
	if len(cached) > 0 {
		metrics.DiscoveryCacheHits.WithLabelValues("extract").Add(float64(len(cached)))
	}

	if len(misses) > 0 {
		fetched, err := c.next.Extract(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, page := range fetched {
			cached[page.URL] = page
			if page.Error == "" {
				c.store(ctx, ExtractKey(page.URL), page)
			}
		}
	}

	pages := make([]Page, 0, len(urls))
	for _, u := range urls {
		page, ok := cached[u]
		if !ok {
			page = Page{URL: u, Error: "no content returned"}
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (c *CachedDiscovery) lookup(ctx context.Context, key string, out interface{}) bool {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", map[string]interface{}{
				"key":   key,
				"error": err,
			})
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("cache entry corrupt", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		return false
	}
	return true
}

func (c *CachedDiscovery) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}
}
