package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos_checkout/internal/backend"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, 30*time.Second), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &backend.Client{ID: 12, Name: "Ana", Debt: decimal.RequireFromString("25000.50")}))
	assert.True(t, mr.Exists(cacheKey(12)))
	assert.Equal(t, 30*time.Second, mr.TTL(cacheKey(12)))

	got, err := c.Get(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.True(t, decimal.RequireFromString("25000.50").Equal(got.Debt))
}

func TestRedisCache_Miss(t *testing.T) {
	c, _ := setupTestRedis(t)
	got, err := c.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestRedisCache_Expires(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &backend.Client{ID: 5, Name: "Luis"}))
	mr.FastForward(31 * time.Second)

	_, err := c.Get(ctx, 5)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &backend.Client{ID: 5}))
	require.NoError(t, c.Delete(ctx, 5))
	assert.False(t, mr.Exists(cacheKey(5)))
}

func TestRedisCache_InvalidJSON(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey(7), `{"id": 7, "name":`))

	_, err := c.Get(context.Background(), 7)
	assert.ErrorContains(t, err, "unmarshal client failed")
}
