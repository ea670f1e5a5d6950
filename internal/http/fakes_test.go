package http

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/service"
	"github.com/fjod/go_cart/canteen/internal/timeline"
	"github.com/google/uuid"
)

type fakeCarts struct {
	mu       sync.Mutex
	snap     *domain.CartSnapshot
	err      error
	lastUser int64
	lastAdd  service.AddItemRequest
	lastLine uuid.UUID
	patch    domain.LinePatch
	pickup   *time.Time
	cleared  bool
}

func (f *fakeCarts) record(customerID int64) (*domain.CartSnapshot, error) {
	f.lastUser = customerID
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *fakeCarts) Snapshot(_ context.Context, customerID int64) (*domain.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record(customerID)
}

func (f *fakeCarts) AddItem(_ context.Context, customerID int64, req service.AddItemRequest) (*domain.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAdd = req
	return f.record(customerID)
}

func (f *fakeCarts) UpdateItem(_ context.Context, customerID int64, lineID uuid.UUID, patch domain.LinePatch) (*domain.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLine = lineID
	f.patch = patch
	return f.record(customerID)
}

func (f *fakeCarts) RemoveItem(_ context.Context, customerID int64, lineID uuid.UUID) (*domain.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLine = lineID
	return f.record(customerID)
}

func (f *fakeCarts) Clear(_ context.Context, customerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser = customerID
	if f.err != nil {
		return f.err
	}
	f.cleared = true
	return nil
}

func (f *fakeCarts) SetPickup(_ context.Context, customerID int64, pickupAt *time.Time) (*domain.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pickup = pickupAt
	return f.record(customerID)
}

type fakeOrders struct {
	mu         sync.Mutex
	order      *domain.Order
	list       []*domain.Order
	err        error
	created    service.CreateOrderRequest
	target     domain.OrderStatus
	reason     string
	payment    domain.PaymentStatus
	actor      int64
	activeOnly bool
	canteenID  int64
}

func (f *fakeOrders) result() (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

func (f *fakeOrders) CreateOrder(_ context.Context, req service.CreateOrderRequest) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = req
	return f.result()
}

func (f *fakeOrders) Transition(_ context.Context, _ uuid.UUID, target domain.OrderStatus, actorID int64, reason string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target, f.actor, f.reason = target, actorID, reason
	return f.result()
}

func (f *fakeOrders) Cancel(_ context.Context, _ uuid.UUID, actorID int64, reason string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target, f.actor, f.reason = domain.OrderStatusCancelled, actorID, reason
	return f.result()
}

func (f *fakeOrders) UpdatePaymentStatus(_ context.Context, _ uuid.UUID, status domain.PaymentStatus, actorID int64) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payment, f.actor = status, actorID
	return f.result()
}

func (f *fakeOrders) GetOrder(_ context.Context, _ uuid.UUID, actorID int64) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor = actorID
	return f.result()
}

func (f *fakeOrders) ListCustomerOrders(_ context.Context, customerID int64, activeOnly bool) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor, f.activeOnly = customerID, activeOnly
	return f.list, f.err
}

func (f *fakeOrders) ListCanteenOrders(_ context.Context, canteenID, actorID int64, activeOnly bool) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canteenID, f.actor, f.activeOnly = canteenID, actorID, activeOnly
	return f.list, f.err
}

type fakeTimeline struct {
	entries []timeline.Entry
	err     error
}

func (f *fakeTimeline) GetTimeline(_ context.Context, _ uuid.UUID) ([]timeline.Entry, error) {
	return f.entries, f.err
}

type fakeStats struct {
	from, to *time.Time
	err      error
}

func (f *fakeStats) GetCanteenStats(_ context.Context, _, canteenID int64, from, to *time.Time) (*domain.CanteenStats, error) {
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CanteenStats{CanteenID: canteenID, TotalOrders: 3}, nil
}

type fakePromotions struct {
	created *domain.Promotion
	list    []*domain.Promotion
	err     error
}

func (f *fakePromotions) Create(_ context.Context, _ int64, p *domain.Promotion) (*domain.Promotion, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = p
	return p, nil
}

func (f *fakePromotions) List(_ context.Context, _, _ int64) ([]*domain.Promotion, error) {
	return f.list, f.err
}

type fakeMenu struct {
	canteen *domain.Canteen
	items   []*domain.MenuItem
}

func (f *fakeMenu) GetCanteen(_ context.Context, id int64) (*domain.Canteen, error) {
	if f.canteen == nil || f.canteen.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.canteen, nil
}

func (f *fakeMenu) ListMenu(_ context.Context, _ int64) ([]*domain.MenuItem, error) {
	return f.items, nil
}

type fakeComplaints struct {
	mu            sync.Mutex
	complaint     *domain.Complaint
	list          []*domain.Complaint
	err           error
	filed         service.FileComplaintRequest
	patch         domain.ComplaintPatch
	outcome       domain.ComplaintStatus
	response      string
	actor         int64
	canteenID     int64
	openOnly      bool
	escalatedOnly bool
}

func (f *fakeComplaints) result() (*domain.Complaint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.complaint, nil
}

func (f *fakeComplaints) File(_ context.Context, actorID int64, req service.FileComplaintRequest) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor, f.filed = actorID, req
	return f.result()
}

func (f *fakeComplaints) Edit(_ context.Context, actorID int64, _ uuid.UUID, patch domain.ComplaintPatch) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor, f.patch = actorID, patch
	return f.result()
}

func (f *fakeComplaints) Escalate(_ context.Context, actorID int64, _ uuid.UUID) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor = actorID
	return f.result()
}

func (f *fakeComplaints) Close(_ context.Context, actorID int64, _ uuid.UUID, outcome domain.ComplaintStatus, response string) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor, f.outcome, f.response = actorID, outcome, response
	return f.result()
}

func (f *fakeComplaints) Get(_ context.Context, actorID int64, _ uuid.UUID) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor = actorID
	return f.result()
}

func (f *fakeComplaints) ListCustomerComplaints(_ context.Context, customerID int64) ([]*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor = customerID
	return f.list, f.err
}

func (f *fakeComplaints) ListCanteenComplaints(_ context.Context, actorID, canteenID int64, openOnly, escalatedOnly bool) ([]*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor, f.canteenID, f.openOnly, f.escalatedOnly = actorID, canteenID, openOnly, escalatedOnly
	return f.list, f.err
}

func (f *fakeComplaints) ListOrderComplaints(_ context.Context, actorID int64, _ uuid.UUID) ([]*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor = actorID
	return f.list, f.err
}
