package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/service"
	"github.com/fjod/go_cart/canteen/internal/timeline"
	"github.com/google/uuid"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*domain.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, target domain.OrderStatus, actorID int64, reason string) (*domain.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actorID int64, reason string) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status domain.PaymentStatus, actorID int64) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actorID int64) (*domain.Order, error)
	ListCustomerOrders(ctx context.Context, customerID int64, activeOnly bool) ([]*domain.Order, error)
	ListCanteenOrders(ctx context.Context, canteenID, actorID int64, activeOnly bool) ([]*domain.Order, error)
}

type TimelineReader interface {
	GetTimeline(ctx context.Context, orderID uuid.UUID) ([]timeline.Entry, error)
}

type OrdersHandler struct {
	orders   OrderService
	timeline TimelineReader
	timeout  time.Duration
	now      func() time.Time
}

func NewOrdersHandler(orders OrderService, timeline TimelineReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:   orders,
		timeline: timeline,
		timeout:  timeout,
		now:      time.Now,
	}
}

type CreateOrderRequestDTO struct {
	CanteenID     int64      `json:"canteen_id"`
	PaymentMethod string     `json:"payment_method"`
	Phone         string     `json:"phone"`
	PromoCode     string     `json:"promo_code,omitempty"`
	CustomerNote  string     `json:"customer_note,omitempty"`
	IsPreOrder    bool       `json:"is_pre_order,omitempty"`
	PickupTime    *time.Time `json:"pickup_time,omitempty"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type CancelOrderRequestDTO struct {
	Reason string `json:"reason"`
}

type UpdatePaymentRequestDTO struct {
	PaymentStatus string `json:"payment_status"`
}

// OrderResponseDTO is the order read model.
type OrderResponseDTO struct {
	*domain.Order
	WaitingMinutes int `json:"waiting_minutes"`
}

func (h *OrdersHandler) view(o *domain.Order) OrderResponseDTO {
	return OrderResponseDTO{
		Order:          o,
		WaitingMinutes: int(o.WaitingTime(h.now()) / time.Minute),
	}
}

func (h *OrdersHandler) views(orders []*domain.Order) []OrderResponseDTO {
	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, h.view(o))
	}
	return dtos
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CanteenID <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_canteen_id", "canteen_id must be positive")
		return
	}

	order, err := h.orders.CreateOrder(ctx, service.CreateOrderRequest{
		CustomerID:    getUserIDFromContext(r.Context()),
		CanteenID:     req.CanteenID,
		PaymentMethod: req.PaymentMethod,
		Phone:         req.Phone,
		PromoCode:     strings.TrimSpace(req.PromoCode),
		CustomerNote:  req.CustomerNote,
		IsPreOrder:    req.IsPreOrder,
		PickupTime:    req.PickupTime,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, h.view(order))
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.listCustomerOrders(w, r, false)
}

// GET /api/v1/orders/active
func (h *OrdersHandler) ListActiveOrders(w http.ResponseWriter, r *http.Request) {
	h.listCustomerOrders(w, r, true)
}

func (h *OrdersHandler) listCustomerOrders(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListCustomerOrders(ctx, getUserIDFromContext(r.Context()), activeOnly)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.views(orders))
}

// GET /api/v1/orders/{orderID}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.view(order))
}

// GET /api/v1/orders/{orderID}/timeline
func (h *OrdersHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	if h.timeline == nil {
		respondError(w, r, http.StatusServiceUnavailable, "service_unavailable", "order timeline is not configured")
		return
	}

	// same visibility rule as the order itself
	if _, err := h.orders.GetOrder(ctx, orderID, getUserIDFromContext(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}
	entries, err := h.timeline.GetTimeline(ctx, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []timeline.Entry{}
	}
	respondJSON(w, r, http.StatusOK, entries)
}

// POST /api/v1/orders/{orderID}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	target, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	order, err := h.orders.Transition(ctx, orderID, target, getUserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.view(order))
}

// POST /api/v1/orders/{orderID}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	var req CancelOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.Cancel(ctx, orderID, getUserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.view(order))
}

// POST /api/v1/orders/{orderID}/payment
func (h *OrdersHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	var req UpdatePaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := domain.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	order, err := h.orders.UpdatePaymentStatus(ctx, orderID, status, getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.view(order))
}
