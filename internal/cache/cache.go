package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/canteen/internal/domain"
)

// CartCache stores cart contents keyed by customer. Prices are never cached; readers reprice
// every hit from the catalog.
//
// Set only replaces an entry holding an older cart version, so a reader that loaded the cart
// before a concurrent write cannot overwrite the written cart with its stale copy.
type CartCache interface {
	Get(ctx context.Context, customerID int64) (*domain.Cart, error)
	Set(ctx context.Context, customerID int64, cart *domain.Cart) error
}

var ErrCacheMiss = errors.New("cache miss")
