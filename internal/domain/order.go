package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderLine struct {
	MenuItemID     int64    `json:"menu_item_id"`
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	UnitPrice      Money    `json:"unit_price_cents"`
	Customizations []string `json:"customizations,omitempty"`
	Note           string   `json:"note,omitempty"`
	Location       string   `json:"location,omitempty"`
}

func (l OrderLine) Total() Money {
	return l.UnitPrice.Mul(l.Quantity)
}

type Order struct {
	ID                 uuid.UUID     `json:"id"`
	CustomerID         int64         `json:"customer_id"`
	CanteenID          int64         `json:"canteen_id"`
	Lines              []OrderLine   `json:"lines"`
	Subtotal           Money         `json:"subtotal_cents"`
	Discount           Money         `json:"discount_cents"`
	Total              Money         `json:"total_cents"`
	PromotionID        *uuid.UUID    `json:"promotion_id,omitempty"`
	Status             OrderStatus   `json:"status"`
	PaymentMethod      string        `json:"payment_method"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	CustomerNote       string        `json:"customer_note,omitempty"`
	Phone              string        `json:"phone"`
	IsPreOrder         bool          `json:"is_pre_order"`
	PickupTime         *time.Time    `json:"pickup_time,omitempty"`
	OrderTime          time.Time     `json:"order_time"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	PreparingAt        *time.Time    `json:"preparing_at,omitempty"`
	ReadyAt            *time.Time    `json:"ready_at,omitempty"`
	DeliveredAt        *time.Time    `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CancellationReason *string       `json:"cancellation_reason,omitempty"`
	Version            int           `json:"version"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// latestMilestone returns the most recent timestamp written on the order.
func (o *Order) latestMilestone() time.Time {
	latest := o.OrderTime
	for _, t := range []*time.Time{o.ConfirmedAt, o.PreparingAt, o.ReadyAt, o.DeliveredAt, o.CancelledAt} {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	return latest
}

// Transition moves the order to target and stamps the matching milestone. Milestones never go
// backwards: a clock reading earlier than the latest milestone is clamped to it.
func (o *Order) Transition(target OrderStatus, now time.Time, reason string) error {
	if !o.Status.CanTransitionTo(target) {
		return fmt.Errorf("order %s: %s -> %s: %w", o.ID, o.Status, target, ErrInvalidTransition)
	}
	reason = strings.TrimSpace(reason)
	if target == OrderStatusCancelled && reason == "" {
		return fmt.Errorf("cancellation reason is required: %w", ErrValidation)
	}

	if latest := o.latestMilestone(); now.Before(latest) {
		now = latest
	}
	stamp := now
	switch target {
	case OrderStatusConfirmed:
		o.ConfirmedAt = &stamp
	case OrderStatusPreparing:
		o.PreparingAt = &stamp
	case OrderStatusReady:
		o.ReadyAt = &stamp
	case OrderStatusDelivered:
		o.DeliveredAt = &stamp
	case OrderStatusCancelled:
		o.CancelledAt = &stamp
		o.CancellationReason = &reason
	}
	o.Status = target
	o.UpdatedAt = stamp
	return nil
}

// WaitingTime is the time since the order was placed, zero once it is terminal.
func (o *Order) WaitingTime(now time.Time) time.Duration {
	if o.Status.IsTerminal() || now.Before(o.OrderTime) {
		return 0
	}
	return now.Sub(o.OrderTime)
}

// PreparationTime is ready minus confirmed; ok is false when either milestone is missing.
func (o *Order) PreparationTime() (time.Duration, bool) {
	if o.ConfirmedAt == nil || o.ReadyAt == nil {
		return 0, false
	}
	return o.ReadyAt.Sub(*o.ConfirmedAt), true
}

// EarnsRevenue reports whether the order counts towards revenue: not cancelled, and either
// paid or delivered.
func (o *Order) EarnsRevenue() bool {
	if o.Status == OrderStatusCancelled {
		return false
	}
	return o.PaymentStatus == PaymentStatusPaid || o.Status == OrderStatusDelivered
}
