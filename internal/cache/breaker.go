package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerCache stops calling a failing cache for a while. With the breaker open every call
// fails fast, which readers treat as a miss.
//
// A write that fails or is rejected leaves the cached entry stale, so the cart is kept as
// pending and written again before that customer's next read or write reaches the cache.
// Until the retry succeeds reads for the customer fail instead of returning the stale entry.
type BreakerCache struct {
	next CartCache
	cb   *gobreaker.CircuitBreaker[*domain.Cart]
	log  zerolog.Logger

	mu      sync.Mutex
	pending map[int64]*domain.Cart
}

func NewBreakerCache(next CartCache, openFor time.Duration, log zerolog.Logger) *BreakerCache {
	if openFor <= 0 {
		openFor = 10 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "cart-cache",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &BreakerCache{
		next:    next,
		cb:      gobreaker.NewCircuitBreaker[*domain.Cart](settings),
		log:     log,
		pending: make(map[int64]*domain.Cart),
	}
}

func (b *BreakerCache) Get(ctx context.Context, customerID int64) (*domain.Cart, error) {
	if cart, ok := b.pendingCart(customerID); ok {
		if err := b.Set(ctx, customerID, cart); err != nil {
			return nil, err
		}
	}
	return b.cb.Execute(func() (*domain.Cart, error) {
		return b.next.Get(ctx, customerID)
	})
}

// Set writes the newer of cart and the customer's pending cart. On failure the written cart
// becomes the pending one.
func (b *BreakerCache) Set(ctx context.Context, customerID int64, cart *domain.Cart) error {
	if pending, ok := b.pendingCart(customerID); ok && pending.Version > cart.Version {
		cart = pending
	}
	_, err := b.cb.Execute(func() (*domain.Cart, error) {
		return nil, b.next.Set(ctx, customerID, cart)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.pending[customerID]
	switch {
	case err != nil && (!ok || current.Version < cart.Version):
		b.pending[customerID] = cart
		b.log.Debug().Int64("customer_id", customerID).Int64("version", cart.Version).Msg("cart cache write deferred")
	case err == nil && ok && current.Version <= cart.Version:
		delete(b.pending, customerID)
	}
	return err
}

func (b *BreakerCache) pendingCart(customerID int64) (*domain.Cart, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cart, ok := b.pending[customerID]
	return cart, ok
}

func (b *BreakerCache) State() gobreaker.State {
	return b.cb.State()
}
