package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache pointed at it.
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client, 15*time.Minute), mr
}

func testCart(customerID int64) *domain.Cart {
	size := "large"
	return &domain.Cart{
		ID:         uuid.New(),
		CustomerID: customerID,
		Lines: []domain.CartLine{
			{ID: uuid.New(), MenuItemID: 1, Quantity: 2, Size: &size, Extras: []string{"cheese"}},
			{ID: uuid.New(), MenuItemID: 2, Quantity: 1},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		Version:   1,
	}
}

func TestGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	cart := testCart(7)

	data, err := json.Marshal(cart)
	require.NoError(t, err)
	mr.HSet(cacheKey(7), fieldVersion, "1", fieldCart, string(data))

	result, err := cache.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, result.ID)
	require.Len(t, result.Lines, 2)
	assert.Equal(t, "large", *result.Lines[0].Size)
	assert.Equal(t, []string{"cheese"}, result.Lines[0].Extras)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	result, err := cache.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.HSet(cacheKey(7), fieldVersion, "1", fieldCart, "{not json")

	result, err := cache.Get(context.Background(), 7)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestSet_AppliesTTLWithJitter(t *testing.T) {
	cache, mr := setupTestRedis(t)

	require.NoError(t, cache.Set(context.Background(), 7, testCart(7)))

	assert.True(t, mr.Exists(cacheKey(7)))
	ttl := mr.TTL(cacheKey(7))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)
}

func TestSet_ExpiresAfterTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, cache.Set(context.Background(), 7, testCart(7)))

	mr.FastForward(21 * time.Minute)

	_, err := cache.Get(context.Background(), 7)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSet_KeepsNewerVersion(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	fresh := testCart(7)
	fresh.Version = 3
	fresh.Lines = fresh.Lines[:1]
	require.NoError(t, cache.Set(ctx, 7, fresh))

	// a reader that loaded the cart before the last write lands afterwards
	stale := testCart(7)
	stale.ID = fresh.ID
	stale.Version = 2
	require.NoError(t, cache.Set(ctx, 7, stale))

	got, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.Len(t, got.Lines, 1)
	assert.Equal(t, "3", mr.HGet(cacheKey(7), fieldVersion))
}

func TestSet_ReplacesOlderVersion(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	first := testCart(7)
	require.NoError(t, cache.Set(ctx, 7, first))

	second := testCart(7)
	second.Version = 2
	second.Lines = nil
	require.NoError(t, cache.Set(ctx, 7, second))

	got, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Empty(t, got.Lines)
}

func TestSet_EqualVersionIsNotRewritten(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, testCart(7)))
	mr.FastForward(10 * time.Minute)
	require.NoError(t, cache.Set(ctx, 7, testCart(7)))

	assert.Less(t, mr.TTL(cacheKey(7)), 11*time.Minute)
}

func TestRedisUnavailable(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), 7)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
