package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventOrderCreated        EventType = "order.created"
	EventOrderStatusChanged  EventType = "order.status_changed"
	EventOrderPaymentUpdated EventType = "order.payment_updated"
)

// OrderEvent is written to the outbox in the same transaction as the change it describes.
type OrderEvent struct {
	EventID       uuid.UUID     `json:"event_id"`
	Type          EventType     `json:"type"`
	OrderID       uuid.UUID     `json:"order_id"`
	CanteenID     int64         `json:"canteen_id"`
	CustomerID    int64         `json:"customer_id"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Total         Money         `json:"total_cents"`
	ActorID       int64         `json:"actor_id"`
	Reason        string        `json:"reason,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func NewOrderEvent(t EventType, o *Order, actorID int64, at time.Time) OrderEvent {
	e := OrderEvent{
		EventID:       uuid.New(),
		Type:          t,
		OrderID:       o.ID,
		CanteenID:     o.CanteenID,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		ActorID:       actorID,
		OccurredAt:    at,
	}
	if o.CancellationReason != nil && o.Status == OrderStatusCancelled {
		e.Reason = *o.CancellationReason
	}
	return e
}
