package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type StatsService interface {
	GetCanteenStats(ctx context.Context, actorID, canteenID int64, from, to *time.Time) (*domain.CanteenStats, error)
}

type PromotionService interface {
	Create(ctx context.Context, actorID int64, p *domain.Promotion) (*domain.Promotion, error)
	List(ctx context.Context, actorID, canteenID int64) ([]*domain.Promotion, error)
}

type MenuReader interface {
	GetCanteen(ctx context.Context, id int64) (*domain.Canteen, error)
	ListMenu(ctx context.Context, canteenID int64) ([]*domain.MenuItem, error)
}

// CanteenHandler serves the operator side: canteen order boards, stats, promotions and the menu.
type CanteenHandler struct {
	orders  OrderService
	stats   StatsService
	promos  PromotionService
	menu    MenuReader
	views   *OrdersHandler
	loc     *time.Location
	timeout time.Duration
}

// NewCanteenHandler builds the handler. Date-only stats bounds are read in loc.
func NewCanteenHandler(orders OrderService, stats StatsService, promos PromotionService, menu MenuReader, loc *time.Location, timeout time.Duration) *CanteenHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CanteenHandler{
		orders:  orders,
		stats:   stats,
		promos:  promos,
		menu:    menu,
		views:   NewOrdersHandler(orders, nil, timeout),
		loc:     loc,
		timeout: timeout,
	}
}

type CreatePromotionRequestDTO struct {
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	DiscountType       string          `json:"discount_type"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
	StartDate          string          `json:"start_date"`
	EndDate            string          `json:"end_date"`
	Active             *bool           `json:"active,omitempty"`
	MinOrderValueCents *int64          `json:"min_order_value_cents,omitempty"`
	ApplicableItems    []int64         `json:"applicable_items,omitempty"`
	MaxUses            *int            `json:"max_uses,omitempty"`
	Code               string          `json:"code,omitempty"`
}

type MenuResponseDTO struct {
	Canteen *domain.Canteen    `json:"canteen"`
	Items   []*domain.MenuItem `json:"items"`
}

// GET /api/v1/canteens/{canteenID}/orders[?active=true]
func (h *CanteenHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	canteenID, ok := canteenIDParam(w, r)
	if !ok {
		return
	}
	activeOnly, ok := boolQuery(w, r, "active")
	if !ok {
		return
	}

	orders, err := h.orders.ListCanteenOrders(ctx, canteenID, getUserIDFromContext(r.Context()), activeOnly)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.views.views(orders))
}

// GET /api/v1/canteens/{canteenID}/stats?from=&to=
func (h *CanteenHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	canteenID, ok := canteenIDParam(w, r)
	if !ok {
		return
	}
	from, err := h.parseBound(r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_from", "from must be a date or RFC 3339 timestamp")
		return
	}
	to, err := h.parseBound(r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_to", "to must be a date or RFC 3339 timestamp")
		return
	}

	stats, err := h.stats.GetCanteenStats(ctx, getUserIDFromContext(r.Context()), canteenID, from, to)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, stats)
}

// parseBound accepts "2006-01-02" (midnight in the handler's zone) or RFC 3339. Empty means open.
func (h *CanteenHandler) parseBound(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, h.loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// POST /api/v1/canteens/{canteenID}/promotions
func (h *CanteenHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	canteenID, ok := canteenIDParam(w, r)
	if !ok {
		return
	}
	var req CreatePromotionRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := time.ParseInLocation(time.DateOnly, req.StartDate, h.loc)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.ParseInLocation(time.DateOnly, req.EndDate, h.loc)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
		return
	}

	p := &domain.Promotion{
		CanteenID:       canteenID,
		Name:            req.Name,
		Description:     req.Description,
		DiscountType:    domain.DiscountType(req.DiscountType),
		DiscountValue:   req.DiscountValue,
		StartDate:       start,
		EndDate:         end,
		Active:          req.Active == nil || *req.Active,
		ApplicableItems: req.ApplicableItems,
		MaxUses:         req.MaxUses,
		Code:            req.Code,
	}
	if req.MinOrderValueCents != nil {
		m := domain.Money(*req.MinOrderValueCents)
		p.MinOrderValue = &m
	}

	created, err := h.promos.Create(ctx, getUserIDFromContext(r.Context()), p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, created)
}

// GET /api/v1/canteens/{canteenID}/promotions
func (h *CanteenHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	canteenID, ok := canteenIDParam(w, r)
	if !ok {
		return
	}

	promos, err := h.promos.List(ctx, getUserIDFromContext(r.Context()), canteenID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if promos == nil {
		promos = []*domain.Promotion{}
	}
	respondJSON(w, r, http.StatusOK, promos)
}

// GET /api/v1/canteens/{canteenID}/menu
func (h *CanteenHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	canteenID, ok := canteenIDParam(w, r)
	if !ok {
		return
	}

	canteen, err := h.menu.GetCanteen(ctx, canteenID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	items, err := h.menu.ListMenu(ctx, canteenID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.MenuItem{}
	}
	respondJSON(w, r, http.StatusOK, MenuResponseDTO{Canteen: canteen, Items: items})
}

func canteenIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "canteenID"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_canteen_id", "canteenID must be a positive integer")
		return 0, false
	}
	return id, true
}

// boolQuery reads an optional boolean query parameter; absent means false.
func boolQuery(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, true
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_"+name, name+" must be a boolean")
		return false, false
	}
	return parsed, true
}
