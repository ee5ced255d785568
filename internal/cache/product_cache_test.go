package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func sampleProduct(id string) domain.Product {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Product{
		ID:        id,
		Name:      "Milk",
		PriceUSD:  decimal.RequireFromString("1.25"),
		PriceINR:  decimal.RequireFromString("104.5"),
		Category:  "dairy",
		Stock:     40,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestProductCache_GetSet(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewProductCache(client)
	ctx := context.Background()

	_, found, err := cache.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, sampleProduct("p-1")))

	got, found, err := cache.Get(ctx, "p-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Milk", got.Name)
	assert.True(t, got.PriceUSD.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, got.CreatedAt.Equal(sampleProduct("p-1").CreatedAt))
}

func TestProductCache_TTLAndPrefix(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewProductCache(client, WithTTL(time.Minute), WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleProduct("p-1")))
	assert.True(t, mr.Exists("test:p-1"))
	assert.Equal(t, time.Minute, mr.TTL("test:p-1"))

	mr.FastForward(2 * time.Minute)

	_, found, err := cache.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, found, "entry must expire after TTL")
}

func TestProductCache_GetMany(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewProductCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleProduct("p-1"), sampleProduct("p-3")))

	got, err := cache.GetMany(ctx, []string{"p-1", "p-2", "p-3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "p-1")
	assert.Contains(t, got, "p-3")
	assert.NotContains(t, got, "p-2")

	empty, err := cache.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProductCache_Invalidate(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewProductCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleProduct("p-1")))
	require.NoError(t, cache.Invalidate(ctx, "p-1", "missing"))

	_, found, err := cache.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestProductCache_CorruptEntryIsMiss(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewProductCache(client)

	require.NoError(t, mr.Set(DefaultPrefix+"p-1", "{not json"))

	_, found, err := cache.Get(context.Background(), "p-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestProductCache_ErrorsWhenRedisUnavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewProductCache(client)
	mr.Close()

	_, _, err := cache.Get(context.Background(), "p-1")
	assert.Error(t, err)
	assert.Error(t, cache.Ping(context.Background()))
}

func TestDial(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := Dial(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = Dial(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}
