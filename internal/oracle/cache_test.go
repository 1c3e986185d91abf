package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/model"
)

type countingOracle struct {
	calls map[string]int
	err   error
}

func newCountingOracle() *countingOracle { return &countingOracle{calls: map[string]int{}} }

func (c *countingOracle) GenerateFilters(_ context.Context, audience, _ string) (filter.SearchFilter, error) {
	c.calls["filters"]++
	if c.err != nil {
		return filter.SearchFilter{}, c.err
	}
	return filter.SearchFilter{Title: &filter.IncludeExclude{Include: []string{audience}}}, nil
}

func (c *countingOracle) GenerateCopy(context.Context, string, string) ([]model.CopyVariant, error) {
	c.calls["copy"]++
	if c.err != nil {
		return nil, c.err
	}
	return []model.CopyVariant{{Subject: "s", Body: "b"}}, nil
}

func (c *countingOracle) SuggestICPs(context.Context, string) ([]ICP, error) {
	c.calls["icps"]++
	return []ICP{{Name: "n", TargetAudience: "t"}}, c.err
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCached_HitsCacheOnSecondCall(t *testing.T) {
	mr, rdb := newTestRedis(t)
	next := newCountingOracle()
	c := NewCached(next, NewRedisCache(rdb, ""), time.Hour)
	ctx := context.Background()

	for range 2 {
		f, err := c.GenerateFilters(ctx, "CTOs", "acme.io")
		require.NoError(t, err)
		assert.Equal(t, []string{"CTOs"}, f.Title.Include)

		vs, err := c.GenerateCopy(ctx, "acme.io", "CTOs")
		require.NoError(t, err)
		assert.Len(t, vs, 1)

		_, err = c.SuggestICPs(ctx, "acme.io")
		require.NoError(t, err)
	}

	assert.Equal(t, map[string]int{"filters": 1, "copy": 1, "icps": 1}, next.calls)
	assert.Len(t, mr.Keys(), 3)
	for _, k := range mr.Keys() {
		assert.Contains(t, k, "outreach:oracle:")
		assert.Equal(t, time.Hour, mr.TTL(k))
	}
}

func TestCached_KeyIgnoresCaseAndSpace(t *testing.T) {
	assert.Equal(t, cacheKey("copy", "Acme.io", " CTOs"), cacheKey("copy", "acme.io", "ctos"))
	assert.NotEqual(t, cacheKey("copy", "acme.io", "ctos"), cacheKey("filters", "acme.io", "ctos"))
	assert.NotEqual(t, cacheKey("copy", "ab", "c"), cacheKey("copy", "a", "bc"))
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	mr, rdb := newTestRedis(t)
	next := newCountingOracle()
	next.err = errors.New("model down")
	c := NewCached(next, NewRedisCache(rdb, "t:"), 0)

	_, err := c.GenerateCopy(context.Background(), "acme.io", "CTOs")
	require.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	next := newCountingOracle()
	c := NewCached(next, NewRedisCache(rdb, ""), time.Minute)

	vs, err := c.GenerateCopy(context.Background(), "acme.io", "CTOs")
	require.NoError(t, err)
	assert.Len(t, vs, 1)
	assert.Equal(t, 1, next.calls["copy"])
}

func TestRedisCache_Miss(t *testing.T) {
	_, rdb := newTestRedis(t)
	data, ok, err := NewRedisCache(rdb, "").Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}
