package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coocood/freecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, closeFn, err := NewRedisCache(zap.NewNop(), &RedisCacheConfig{Addr: mr.Addr(), ConnectTimeout: 1})
	require.NoError(t, err)
	t.Cleanup(closeFn)
	return c, mr
}

func TestCacheImplementations(t *testing.T) {
	redisCache, _ := newRedisTestCache(t)
	impls := map[string]Cache{
		"freecache": NewFreeCache(freecache.NewCache(1024 * 1024)),
		"redis":     redisCache,
	}
	for name, c := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := c.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, c.Set(ctx, "k", "v1", time.Minute))
			got, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v1", got)

			ok, err := c.SetNX(ctx, "k", "v2", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)
			got, err = c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v1", got)

			ok, err = c.SetNX(ctx, "fresh", "v3", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, c.Delete(ctx, "fresh"))
			_, err = c.Get(ctx, "fresh")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestRedisCacheExpiry(t *testing.T) {
	c, mr := newRedisTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "dedupe", "id-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = c.SetNX(ctx, "dedupe", "id-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, _, err = NewRedisCache(zap.NewNop(), &RedisCacheConfig{Addr: addr, ConnectTimeout: 1})
	assert.Error(t, err)
}

func TestTTLSeconds(t *testing.T) {
	assert.Equal(t, 0, ttlSeconds(0))
	assert.Equal(t, 0, ttlSeconds(-time.Second))
	assert.Equal(t, 1, ttlSeconds(200*time.Millisecond))
	assert.Equal(t, 60, ttlSeconds(time.Minute))
}
