// Package policy holds every authorization decision of the ordering core in one place.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/canteen/internal/domain"
)

// Identity resolves who a user is and which canteens they operate.
type Identity interface {
	ResolveRole(ctx context.Context, userID int64) (domain.Role, error)
	OwnsCanteen(ctx context.Context, userID, canteenID int64) (bool, error)
}

type Checker struct {
	identity Identity
}

func NewChecker(identity Identity) *Checker {
	return &Checker{identity: identity}
}

// CanManageCanteen allows admins and the canteen's own operator.
func (c *Checker) CanManageCanteen(ctx context.Context, actorID, canteenID int64) error {
	role, err := c.identity.ResolveRole(ctx, actorID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("user %d is unknown: %w", actorID, domain.ErrUnauthorized)
	}
	if err != nil {
		return err
	}

	switch role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleOperator:
		owns, err := c.identity.OwnsCanteen(ctx, actorID, canteenID)
		if err != nil {
			return err
		}
		if owns {
			return nil
		}
	}
	return fmt.Errorf("user %d does not operate canteen %d: %w", actorID, canteenID, domain.ErrUnauthorized)
}

// CanTransition guards status changes. Operators move orders of their canteen; the ordering
// customer may only cancel while the order is still pending.
func (c *Checker) CanTransition(ctx context.Context, actorID int64, order *domain.Order, target domain.OrderStatus) error {
	if target == domain.OrderStatusCancelled && actorID == order.CustomerID && order.Status == domain.OrderStatusPending {
		return nil
	}
	return c.CanManageCanteen(ctx, actorID, order.CanteenID)
}

// CanUpdatePayment uses the same rule as status transitions by the operator.
func (c *Checker) CanUpdatePayment(ctx context.Context, actorID int64, order *domain.Order) error {
	return c.CanManageCanteen(ctx, actorID, order.CanteenID)
}

func (c *Checker) CanViewOrder(ctx context.Context, actorID int64, order *domain.Order) error {
	if actorID == order.CustomerID {
		return nil
	}
	return c.CanManageCanteen(ctx, actorID, order.CanteenID)
}

// CanFileComplaint allows only the customer who placed the order.
func (c *Checker) CanFileComplaint(_ context.Context, actorID int64, order *domain.Order) error {
	if actorID == order.CustomerID {
		return nil
	}
	return fmt.Errorf("user %d did not place order %s: %w", actorID, order.ID, domain.ErrUnauthorized)
}

// CanEditComplaint covers edits and escalation, both reserved to the complainant.
func (c *Checker) CanEditComplaint(_ context.Context, actorID int64, complaint *domain.Complaint) error {
	if actorID == complaint.CustomerID {
		return nil
	}
	return fmt.Errorf("user %d did not file complaint %s: %w", actorID, complaint.ID, domain.ErrUnauthorized)
}

func (c *Checker) CanViewComplaint(ctx context.Context, actorID int64, complaint *domain.Complaint) error {
	if actorID == complaint.CustomerID {
		return nil
	}
	return c.CanManageCanteen(ctx, actorID, complaint.CanteenID)
}
