package geoid

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheTTL is the default time geoid heights are cached for.
	DefaultCacheTTL = 24 * time.Hour

	// DefaultCachePrecision is the default number of decimals coordinates
	// are rounded to before being looked up. 4 decimals are about 11 meters
	// at the equator.
	DefaultCachePrecision = 4

	defaultCachePrefix = "geoid:"

	resultLabel = "result"
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "geoid_cache_lookups",
	Help: "The geoid height cache lookups.",
}, []string{resultLabel})

func instrumentCacheLookup(result string) {
	cacheLookups.
		With(prometheus.Labels{resultLabel: result}).
		Inc()
}

// CacheClient is the subset of the Redis client used by Cache.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cache is a source that caches the heights of another source in Redis.
// Coordinates are rounded before lookup so that nearby positions share
// entries, and concurrent lookups of the same entry hit the underlying
// source once.
type Cache struct {
	source    Source
	client    CacheClient
	ttl       time.Duration
	precision int
	prefix    string
	inflight  singleflight.Group
}

// CacheOption configures a cache.
type CacheOption func(*Cache)

// WithCacheTTL sets how long heights are cached for.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCachePrecision sets the number of decimals coordinates are rounded to.
func WithCachePrecision(decimals int) CacheOption {
	return func(c *Cache) {
		c.precision = max(0, min(decimals, 8))
	}
}

// WithCachePrefix sets the prefix of the Redis keys.
func WithCachePrefix(prefix string) CacheOption {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// NewCache returns a cache in front of src.
func NewCache(src Source, client CacheClient, opts ...CacheOption) *Cache {
	c := &Cache{
		source:    src,
		client:    client,
		ttl:       DefaultCacheTTL,
		precision: DefaultCachePrecision,
		prefix:    defaultCachePrefix,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Height returns the cached geoid height at the rounded position, querying
// the underlying source on cache misses. Redis failures are logged and
// bypass the cache.
func (c *Cache) Height(ctx context.Context, lon, lat float64) (float64, error) {
	lon = c.round(lon)
	lat = c.round(lat)
	key := c.key(lon, lat)

	s, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if h, parseErr := strconv.ParseFloat(s, 64); parseErr == nil {
			instrumentCacheLookup(resultHit)
			return h, nil
		}
		instrumentCacheLookup(resultError)
		logs.WithTag("key", key).Warn(errors.New("invalid cached geoid height").
			WithTag("value", s))

	case err == redis.Nil:
		instrumentCacheLookup(resultMiss)

	default:
		instrumentCacheLookup(resultError)
		logs.WithTag("key", key).Warn(errors.New("getting cached geoid height failed").Wrap(err))
	}

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		h, err := c.source.Height(ctx, lon, lat)
		if err != nil {
			return 0.0, err
		}

		value := strconv.FormatFloat(h, 'g', -1, 64)
		if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
			logs.WithTag("key", key).Warn(errors.New("caching geoid height failed").Wrap(err))
		}
		return h, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (c *Cache) round(v float64) float64 {
	p := math.Pow10(c.precision)
	return math.Round(v*p) / p
}

func (c *Cache) key(lon, lat float64) string {
	return c.prefix +
		strconv.FormatFloat(lon, 'f', c.precision, 64) + ":" +
		strconv.FormatFloat(lat, 'f', c.precision, 64)
}
