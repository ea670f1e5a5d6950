package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/redis/go-redis/v9"
)

const maxJitterMinutes = 5

const (
	fieldVersion = "version"
	fieldCart    = "cart"
)

// setIfNewer writes the entry unless the stored one already has the same or a newer version.
// KEYS[1] cart key, ARGV[1] version, ARGV[2] cart json, ARGV[3] ttl in milliseconds.
var setIfNewer = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version'))
if current and current >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'cart', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func NewRedisCache(client redis.UniversalClient, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, customerID int64) (*domain.Cart, error) {
	data, err := r.client.HGet(ctx, cacheKey(customerID), fieldCart).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// Set stores the cart with the base TTL plus up to five minutes of jitter so entries written
// together do not expire together. A cart older than the cached one is dropped silently.
func (r *RedisCache) Set(ctx context.Context, customerID int64, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + time.Duration(rand.Intn(maxJitterMinutes))*time.Minute
	err = setIfNewer.Run(ctx, r.client, []string{cacheKey(customerID)},
		strconv.FormatInt(cart.Version, 10), data, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(customerID int64) string {
	return fmt.Sprintf("canteen:cart:%d", customerID)
}
