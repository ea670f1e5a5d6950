package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/canteen/internal/cache"
	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/logger"
	"github.com/fjod/go_cart/canteen/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type AddItemRequest struct {
	MenuItemID   int64
	Quantity     int
	Size         *string
	Extras       []string
	Instructions string
	Location     string
}

type CartService struct {
	tx      TxRunner
	carts   CartStore
	catalog Catalog
	cache   cache.CartCache
	sfg     singleflight.Group
	opts    options
}

func NewCartService(tx TxRunner, carts CartStore, catalog Catalog, cartCache cache.CartCache, opts ...Option) *CartService {
	return &CartService{
		tx:      tx,
		carts:   carts,
		catalog: catalog,
		cache:   cartCache,
		opts:    buildOptions(opts),
	}
}

// Snapshot returns the customer's cart priced against the current catalog, creating an empty
// cart on first read. Only the stored lines are cached; prices are resolved on every call.
func (s *CartService) Snapshot(ctx context.Context, customerID int64) (*domain.CartSnapshot, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(customerID, 10), func() (interface{}, error) {
		return s.loadCart(ctx, customerID)
	})
	if err != nil {
		return nil, err
	}
	return s.price(ctx, v.(*domain.Cart))
}

func (s *CartService) loadCart(ctx context.Context, customerID int64) (*domain.Cart, error) {
	log := logger.FromContext(ctx)

	cart, err := s.cache.Get(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Int64("customer_id", customerID).Msg("cart cache get failed")
	}

	cart, err = s.carts.GetCart(ctx, s.tx.Reader(), customerID)
	if errors.Is(err, domain.ErrNotFound) {
		err = s.tx.Atomic(ctx, func(q repository.Queryer) error {
			var errEnsure error
			cart, errEnsure = s.carts.EnsureCart(ctx, q, customerID, s.opts.clock())
			return errEnsure
		})
	}
	if err != nil {
		return nil, err
	}

	if errSet := s.cache.Set(ctx, customerID, cart); errSet != nil {
		log.Warn().Err(errSet).Int64("customer_id", customerID).Msg("cart cache set failed")
	}
	return cart, nil
}

func (s *CartService) price(ctx context.Context, cart *domain.Cart) (*domain.CartSnapshot, error) {
	items, err := s.catalog.GetMenuItems(ctx, cart.MenuItemIDs())
	if err != nil {
		return nil, fmt.Errorf("resolve cart prices: %w", err)
	}
	return domain.Price(cart, items), nil
}

// AddItem merges the selection into the cart: an identical item, size and extras combination
// bumps the existing line's quantity, anything else appends a line.
func (s *CartService) AddItem(ctx context.Context, customerID int64, req AddItemRequest) (*domain.CartSnapshot, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", domain.ErrValidation)
	}
	// an empty size means no size, as it does for updates
	if req.Size != nil && strings.TrimSpace(*req.Size) == "" {
		req.Size = nil
	}
	item, err := s.catalog.GetMenuItem(ctx, req.MenuItemID)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, fmt.Errorf("menu item %d is not available: %w", item.ID, domain.ErrValidation)
	}
	if _, err := item.UnitPrice(req.Size, req.Extras); err != nil {
		return nil, err
	}

	var cart *domain.Cart
	err = s.tx.Atomic(ctx, func(q repository.Queryer) error {
		now := s.opts.clock()
		var errTx error
		cart, errTx = s.carts.EnsureCart(ctx, q, customerID, now)
		if errTx != nil {
			return errTx
		}

		line, added, errTx := cart.AddLine(domain.CartLine{
			MenuItemID:   req.MenuItemID,
			Quantity:     req.Quantity,
			Size:         req.Size,
			Extras:       req.Extras,
			Instructions: req.Instructions,
			Location:     req.Location,
			AddedAt:      now,
		})
		if errTx != nil {
			return errTx
		}
		if added {
			errTx = s.carts.InsertLine(ctx, q, line)
		} else {
			errTx = s.carts.UpdateLine(ctx, q, line)
		}
		if errTx != nil {
			return errTx
		}

		cart.UpdatedAt = now
		return s.carts.Touch(ctx, q, cart)
	})
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Int64("customer_id", customerID).Msg("add cart item failed")
		return nil, err
	}

	storeCart(ctx, s.cache, cart)
	return s.price(ctx, cart)
}

// UpdateItem applies a partial update to one of the customer's cart lines.
func (s *CartService) UpdateItem(ctx context.Context, customerID int64, lineID uuid.UUID, patch domain.LinePatch) (*domain.CartSnapshot, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrValidation)
	}

	var cart *domain.Cart
	err := s.tx.Atomic(ctx, func(q repository.Queryer) error {
		var errTx error
		cart, errTx = s.lockOwnedCart(ctx, q, customerID, lineID)
		if errTx != nil {
			return errTx
		}

		updated, absorbed, errTx := cart.ApplyPatch(lineID, patch)
		if errTx != nil {
			return errTx
		}
		if patch.Size != nil || patch.Extras != nil {
			item, errItem := s.catalog.GetMenuItem(ctx, updated.MenuItemID)
			if errItem != nil {
				return errItem
			}
			if _, errItem = item.UnitPrice(updated.Size, updated.Extras); errItem != nil {
				return errItem
			}
		}

		if absorbed != uuid.Nil {
			if errTx = s.carts.DeleteLine(ctx, q, absorbed); errTx != nil {
				return errTx
			}
		}
		if errTx = s.carts.UpdateLine(ctx, q, updated); errTx != nil {
			return errTx
		}

		cart.UpdatedAt = s.opts.clock()
		return s.carts.Touch(ctx, q, cart)
	})
	if err != nil {
		return nil, err
	}

	storeCart(ctx, s.cache, cart)
	return s.price(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, customerID int64, lineID uuid.UUID) (*domain.CartSnapshot, error) {
	var cart *domain.Cart
	err := s.tx.Atomic(ctx, func(q repository.Queryer) error {
		var errTx error
		cart, errTx = s.lockOwnedCart(ctx, q, customerID, lineID)
		if errTx != nil {
			return errTx
		}
		if errTx = cart.RemoveLine(lineID); errTx != nil {
			return errTx
		}
		if errTx = s.carts.DeleteLine(ctx, q, lineID); errTx != nil {
			return errTx
		}
		cart.UpdatedAt = s.opts.clock()
		return s.carts.Touch(ctx, q, cart)
	})
	if err != nil {
		return nil, err
	}

	storeCart(ctx, s.cache, cart)
	return s.price(ctx, cart)
}

// Clear empties the cart. It fails with ErrNotFound when the customer never had one.
func (s *CartService) Clear(ctx context.Context, customerID int64) error {
	var cart *domain.Cart
	err := s.tx.Atomic(ctx, func(q repository.Queryer) error {
		var errTx error
		cart, errTx = s.carts.LockCart(ctx, q, customerID)
		if errTx != nil {
			return errTx
		}
		if errTx = s.carts.DeleteLines(ctx, q, cart.ID); errTx != nil {
			return errTx
		}
		cart.Lines = nil
		cart.UpdatedAt = s.opts.clock()
		return s.carts.Touch(ctx, q, cart)
	})
	if err != nil {
		return err
	}

	storeCart(ctx, s.cache, cart)
	return nil
}

// SetPickup stores the requested pickup time; nil clears it.
func (s *CartService) SetPickup(ctx context.Context, customerID int64, pickupAt *time.Time) (*domain.CartSnapshot, error) {
	now := s.opts.clock()
	if pickupAt != nil && pickupAt.Before(now) {
		return nil, fmt.Errorf("pickup time %s is in the past: %w", pickupAt.Format(time.RFC3339), domain.ErrValidation)
	}

	var cart *domain.Cart
	err := s.tx.Atomic(ctx, func(q repository.Queryer) error {
		var errTx error
		cart, errTx = s.carts.EnsureCart(ctx, q, customerID, now)
		if errTx != nil {
			return errTx
		}
		cart.PickupAt = pickupAt
		cart.UpdatedAt = now
		return s.carts.Touch(ctx, q, cart)
	})
	if err != nil {
		return nil, err
	}

	storeCart(ctx, s.cache, cart)
	return s.price(ctx, cart)
}

func (s *CartService) lockOwnedCart(ctx context.Context, q repository.Queryer, customerID int64, lineID uuid.UUID) (*domain.Cart, error) {
	owner, err := s.carts.LineOwner(ctx, q, lineID)
	if err != nil {
		return nil, err
	}
	if owner != customerID {
		return nil, fmt.Errorf("cart line %s belongs to another customer: %w", lineID, domain.ErrUnauthorized)
	}
	return s.carts.LockCart(ctx, q, customerID)
}

// storeCart writes the committed cart through to the cache. The cache keeps the highest version
// it has seen, so a concurrent reader holding an older copy cannot replace it. Failures only
// log: the breaker retries the write before the next read for this customer.
func storeCart(ctx context.Context, c cache.CartCache, cart *domain.Cart) {
	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := c.Set(setCtx, cart.CustomerID, cart); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Int64("customer_id", cart.CustomerID).Msg("cart cache write failed")
	}
}
