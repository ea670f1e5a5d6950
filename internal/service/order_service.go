package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/canteen/internal/cache"
	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/logger"
	"github.com/fjod/go_cart/canteen/internal/policy"
	"github.com/fjod/go_cart/canteen/internal/repository"
	"github.com/google/uuid"
)

type CreateOrderRequest struct {
	CustomerID    int64
	CanteenID     int64
	PaymentMethod string
	Phone         string
	PromoCode     string
	CustomerNote  string
	IsPreOrder    bool
	PickupTime    *time.Time
}

type OrderService struct {
	tx      TxRunner
	carts   CartStore
	orders  OrderStore
	promos  PromotionStore
	outbox  EventOutbox
	catalog Catalog
	checker *policy.Checker
	cache   cache.CartCache
	opts    options
}

func NewOrderService(
	tx TxRunner,
	carts CartStore,
	orders OrderStore,
	promos PromotionStore,
	outbox EventOutbox,
	catalog Catalog,
	checker *policy.Checker,
	cartCache cache.CartCache,
	opts ...Option,
) *OrderService {
	return &OrderService{
		tx:      tx,
		carts:   carts,
		orders:  orders,
		promos:  promos,
		outbox:  outbox,
		catalog: catalog,
		checker: checker,
		cache:   cartCache,
		opts:    buildOptions(opts),
	}
}

func (r CreateOrderRequest) validate(now time.Time) error {
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return fmt.Errorf("payment method is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("phone is required: %w", domain.ErrValidation)
	}
	if r.PickupTime != nil && r.PickupTime.Before(now) {
		return fmt.Errorf("pickup time is in the past: %w", domain.ErrValidation)
	}
	return nil
}

// CreateOrder turns the customer's stored cart into a pending order. Prices are resolved from the
// catalog again, the promotion (if any) is redeemed, and the cart is emptied, all in one
// transaction. Nothing changes when any step fails.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	log := logger.FromContext(ctx)
	now := s.opts.clock()
	if err := req.validate(now); err != nil {
		return nil, err
	}

	canteen, err := s.catalog.GetCanteen(ctx, req.CanteenID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("canteen %d does not exist: %w", req.CanteenID, domain.ErrValidation)
	}
	if err != nil {
		return nil, err
	}
	if !canteen.IsOpen {
		return nil, fmt.Errorf("canteen %d is closed: %w", canteen.ID, domain.ErrValidation)
	}

	var order *domain.Order
	var cart *domain.Cart
	err = s.tx.Atomic(ctx, func(q repository.Queryer) error {
		var errTx error
		cart, errTx = s.carts.LockCart(ctx, q, req.CustomerID)
		if errors.Is(errTx, domain.ErrNotFound) || (errTx == nil && len(cart.Lines) == 0) {
			return fmt.Errorf("cart is empty: %w", domain.ErrValidation)
		}
		if errTx != nil {
			return errTx
		}

		pickup := pickupTime(req.PickupTime, cart.PickupAt, now)
		if req.IsPreOrder && pickup == nil {
			return fmt.Errorf("pre-order needs a pickup time: %w", domain.ErrValidation)
		}

		lines, subtotal, errTx := s.resolveLines(ctx, cart, req.CanteenID)
		if errTx != nil {
			return errTx
		}

		order = &domain.Order{
			ID:            uuid.New(),
			CustomerID:    req.CustomerID,
			CanteenID:     req.CanteenID,
			Lines:         lines,
			Subtotal:      subtotal,
			Total:         subtotal,
			Status:        domain.OrderStatusPending,
			PaymentMethod: strings.TrimSpace(req.PaymentMethod),
			PaymentStatus: domain.PaymentStatusPending,
			CustomerNote:  req.CustomerNote,
			Phone:         strings.TrimSpace(req.Phone),
			IsPreOrder:    req.IsPreOrder,
			PickupTime:    pickup,
			OrderTime:     now,
			Version:       1,
			UpdatedAt:     now,
		}

		if code := strings.TrimSpace(req.PromoCode); code != "" {
			if errTx = s.redeemPromotion(ctx, q, order, code, cart.MenuItemIDs(), now); errTx != nil {
				return errTx
			}
		}

		if errTx = s.orders.CreateOrder(ctx, q, order); errTx != nil {
			return errTx
		}
		if errTx = s.carts.DeleteLines(ctx, q, cart.ID); errTx != nil {
			return errTx
		}
		cart.Lines = nil
		cart.PickupAt = nil
		cart.UpdatedAt = now
		if errTx = s.carts.Touch(ctx, q, cart); errTx != nil {
			return errTx
		}
		return s.outbox.AddEvent(ctx, q, domain.NewOrderEvent(domain.EventOrderCreated, order, req.CustomerID, now))
	})
	if err != nil {
		log.Error().Err(err).Int64("customer_id", req.CustomerID).Int64("canteen_id", req.CanteenID).Msg("create order failed")
		return nil, err
	}

	storeCart(ctx, s.cache, cart)
	log.Info().
		Str("order_id", order.ID.String()).
		Int64("canteen_id", order.CanteenID).
		Str("total", order.Total.String()).
		Msg("order created")
	return order, nil
}

// pickupTime prefers the time sent with the order and falls back to the one stored on the cart.
// A cart time that has already passed is ignored.
func pickupTime(requested, fromCart *time.Time, now time.Time) *time.Time {
	if requested != nil {
		return requested
	}
	if fromCart != nil && !fromCart.Before(now) {
		t := *fromCart
		return &t
	}
	return nil
}

// resolveLines prices every cart line from the catalog. Client-side prices never enter an order.
func (s *OrderService) resolveLines(ctx context.Context, cart *domain.Cart, canteenID int64) ([]domain.OrderLine, domain.Money, error) {
	items, err := s.catalog.GetMenuItems(ctx, cart.MenuItemIDs())
	if err != nil {
		return nil, 0, fmt.Errorf("resolve order prices: %w", err)
	}

	var subtotal domain.Money
	lines := make([]domain.OrderLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		item, ok := items[l.MenuItemID]
		if !ok {
			return nil, 0, fmt.Errorf("menu item %d no longer exists: %w", l.MenuItemID, domain.ErrValidation)
		}
		if item.CanteenID != canteenID {
			return nil, 0, fmt.Errorf("menu item %d is not sold by canteen %d: %w", item.ID, canteenID, domain.ErrValidation)
		}
		if !item.Available {
			return nil, 0, fmt.Errorf("menu item %d is not available: %w", item.ID, domain.ErrValidation)
		}
		unit, err := item.UnitPrice(l.Size, l.Extras)
		if err != nil {
			return nil, 0, err
		}

		line := domain.OrderLine{
			MenuItemID: item.ID,
			Name:       item.Name,
			Quantity:   l.Quantity,
			UnitPrice:  unit,
			Note:       l.Instructions,
			Location:   l.Location,
		}
		if l.Size != nil {
			line.Customizations = append(line.Customizations, "size:"+*l.Size)
		}
		for _, e := range l.Extras {
			line.Customizations = append(line.Customizations, "extra:"+e)
		}
		lines = append(lines, line)
		subtotal += line.Total()
	}
	return lines, subtotal, nil
}

// redeemPromotion locks the promotion row so concurrent checkouts with the same code queue up;
// the loser of a race on the last use sees the exhausted counter.
func (s *OrderService) redeemPromotion(ctx context.Context, q repository.Queryer, order *domain.Order, code string, itemIDs []int64, now time.Time) error {
	promo, err := s.promos.LockPromotionByCode(ctx, q, order.CanteenID, code)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("promo code %q is not valid: %w", code, domain.ErrValidation)
	}
	if err != nil {
		return err
	}
	if !promo.Validate(order.Subtotal, itemIDs, now) {
		return fmt.Errorf("promo code %q does not apply: %w", code, domain.ErrValidation)
	}
	if err := s.promos.IncrementUses(ctx, q, promo.ID, now); err != nil {
		return err
	}

	order.Discount = promo.ComputeDiscount(order.Subtotal)
	order.Total = order.Subtotal - order.Discount
	id := promo.ID
	order.PromotionID = &id
	return nil
}

// Transition moves an order along the status graph. Checks run in order: existence,
// authorization, then legality of the move.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, target domain.OrderStatus, actorID int64, reason string) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.Atomic(ctx, func(q repository.Queryer) error {
		var errTx error
		order, errTx = s.orders.LockOrder(ctx, q, orderID)
		if errTx != nil {
			return errTx
		}
		if errTx = s.checker.CanTransition(ctx, actorID, order, target); errTx != nil {
			return errTx
		}

		now := s.opts.clock()
		if errTx = order.Transition(target, now, reason); errTx != nil {
			return errTx
		}
		if errTx = s.orders.UpdateOrder(ctx, q, order); errTx != nil {
			return errTx
		}
		return s.outbox.AddEvent(ctx, q, domain.NewOrderEvent(domain.EventOrderStatusChanged, order, actorID, order.UpdatedAt))
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("order_id", order.ID.String()).
		Str("status", order.Status.String()).
		Int64("actor_id", actorID).
		Msg("order status changed")
	return order, nil
}

func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, actorID int64, reason string) (*domain.Order, error) {
	return s.Transition(ctx, orderID, domain.OrderStatusCancelled, actorID, reason)
}

// UpdatePaymentStatus is independent of fulfillment status and uses the operator rule.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status domain.PaymentStatus, actorID int64) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.Atomic(ctx, func(q repository.Queryer) error {
		var errTx error
		order, errTx = s.orders.LockOrder(ctx, q, orderID)
		if errTx != nil {
			return errTx
		}
		if errTx = s.checker.CanUpdatePayment(ctx, actorID, order); errTx != nil {
			return errTx
		}

		now := s.opts.clock()
		order.PaymentStatus = status
		order.UpdatedAt = now
		if errTx = s.orders.UpdateOrder(ctx, q, order); errTx != nil {
			return errTx
		}
		return s.outbox.AddEvent(ctx, q, domain.NewOrderEvent(domain.EventOrderPaymentUpdated, order, actorID, now))
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, actorID int64) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, s.tx.Reader(), orderID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CanViewOrder(ctx, actorID, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListCustomerOrders returns the customer's orders newest first.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID int64, activeOnly bool) ([]*domain.Order, error) {
	return s.orders.ListOrders(ctx, s.tx.Reader(), repository.OrderFilter{
		CustomerID: customerID,
		ActiveOnly: activeOnly,
	})
}

func (s *OrderService) ListCanteenOrders(ctx context.Context, canteenID, actorID int64, activeOnly bool) ([]*domain.Order, error) {
	if _, err := s.catalog.GetCanteen(ctx, canteenID); err != nil {
		return nil, err
	}
	if err := s.checker.CanManageCanteen(ctx, actorID, canteenID); err != nil {
		return nil, err
	}
	return s.orders.ListOrders(ctx, s.tx.Reader(), repository.OrderFilter{
		CanteenID:  canteenID,
		ActiveOnly: activeOnly,
	})
}
