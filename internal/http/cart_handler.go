package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CartService interface {
	Snapshot(ctx context.Context, customerID int64) (*domain.CartSnapshot, error)
	AddItem(ctx context.Context, customerID int64, req service.AddItemRequest) (*domain.CartSnapshot, error)
	UpdateItem(ctx context.Context, customerID int64, lineID uuid.UUID, patch domain.LinePatch) (*domain.CartSnapshot, error)
	RemoveItem(ctx context.Context, customerID int64, lineID uuid.UUID) (*domain.CartSnapshot, error)
	Clear(ctx context.Context, customerID int64) error
	SetPickup(ctx context.Context, customerID int64, pickupAt *time.Time) (*domain.CartSnapshot, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	MenuItemID          int64    `json:"menu_item_id"`
	Quantity            int      `json:"quantity"`
	Size                *string  `json:"size,omitempty"`
	Extras              []string `json:"extras,omitempty"`
	SpecialInstructions string   `json:"special_instructions,omitempty"`
	Location            string   `json:"location,omitempty"`
}

// UpdateItemRequestDTO is a partial update: absent fields are left alone. An empty size clears it.
type UpdateItemRequestDTO struct {
	Quantity            *int      `json:"quantity,omitempty"`
	Size                *string   `json:"size,omitempty"`
	Extras              *[]string `json:"extras,omitempty"`
	SpecialInstructions *string   `json:"special_instructions,omitempty"`
	Location            *string   `json:"location,omitempty"`
}

type SetPickupRequestDTO struct {
	PickupAt *time.Time `json:"pickup_at"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snap, err := h.carts.Snapshot(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MenuItemID <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_menu_item_id", "menu_item_id must be positive")
		return
	}
	if req.Quantity < 1 || req.Quantity > 99 {
		respondError(w, r, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	snap, err := h.carts.AddItem(ctx, getUserIDFromContext(r.Context()), service.AddItemRequest{
		MenuItemID:   req.MenuItemID,
		Quantity:     req.Quantity,
		Size:         req.Size,
		Extras:       req.Extras,
		Instructions: req.SpecialInstructions,
		Location:     req.Location,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, snap)
}

// PATCH /api/v1/cart/items/{lineID}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineID, ok := uuidParam(w, r, "lineID")
	if !ok {
		return
	}
	var req UpdateItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	snap, err := h.carts.UpdateItem(ctx, getUserIDFromContext(r.Context()), lineID, domain.LinePatch{
		Quantity:     req.Quantity,
		Size:         req.Size,
		Extras:       req.Extras,
		Instructions: req.SpecialInstructions,
		Location:     req.Location,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

// DELETE /api/v1/cart/items/{lineID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineID, ok := uuidParam(w, r, "lineID")
	if !ok {
		return
	}

	snap, err := h.carts.RemoveItem(ctx, getUserIDFromContext(r.Context()), lineID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.Clear(ctx, getUserIDFromContext(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/cart/pickup
func (h *CartHandler) SetPickup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetPickupRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	snap, err := h.carts.SetPickup(ctx, getUserIDFromContext(r.Context()), req.PickupAt)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_id", name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
