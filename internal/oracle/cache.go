package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/model"
)

// DefaultCacheTTL bounds how long an oracle answer is reused.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores oracle answers by key. Get reports a miss with ok=false.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// RedisCache implements Cache on Redis.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCache creates a RedisCache. Keys are namespaced under prefix.
func NewRedisCache(rdb redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "outreach:oracle:"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if eris.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "oracle: cache get")
	}
	return data, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return eris.Wrap(err, "oracle: cache set")
	}
	return nil
}

// Cached memoizes an Oracle. Cache failures are logged and bypassed; they
// never fail a call.
type Cached struct {
	next  Oracle
	cache Cache
	ttl   time.Duration
}

// NewCached wraps next with cache.
func NewCached(next Oracle, cache Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, cache: cache, ttl: ttl}
}

func cacheKey(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
		h.Write([]byte{0})
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

func cachedCall[T any](ctx context.Context, c *Cached, key string, fn func() (T, error)) (T, error) {
	log := zap.L().With(zap.String("cache_key", key))
	if data, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Warn("oracle: cache read failed", zap.Error(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			log.Debug("oracle: cache hit")
			return v, nil
		}
	}

	v, err := fn()
	if err != nil {
		return v, err
	}
	if data, err := json.Marshal(v); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			log.Warn("oracle: cache write failed", zap.Error(err))
		}
	}
	return v, nil
}

// GenerateFilters implements FilterOracle.
func (c *Cached) GenerateFilters(ctx context.Context, audience, url string) (filter.SearchFilter, error) {
	return cachedCall(ctx, c, cacheKey("filters", audience, url), func() (filter.SearchFilter, error) {
		return c.next.GenerateFilters(ctx, audience, url)
	})
}

// GenerateCopy implements CopyOracle.
func (c *Cached) GenerateCopy(ctx context.Context, url, audience string) ([]model.CopyVariant, error) {
	return cachedCall(ctx, c, cacheKey("copy", url, audience), func() ([]model.CopyVariant, error) {
		return c.next.GenerateCopy(ctx, url, audience)
	})
}

// SuggestICPs implements ICPOracle.
func (c *Cached) SuggestICPs(ctx context.Context, url string) ([]ICP, error) {
	return cachedCall(ctx, c, cacheKey("icps", url), func() ([]ICP, error) {
		return c.next.SuggestICPs(ctx, url)
	})
}
