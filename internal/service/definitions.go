package service

import (
	"context"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/repository"
	"github.com/google/uuid"
)

// TxRunner is the persistence scope: Atomic runs fn in one transaction, Reader serves plain reads.
type TxRunner interface {
	Atomic(ctx context.Context, fn func(q repository.Queryer) error) error
	Reader() repository.Queryer
}

type CartStore interface {
	GetCart(ctx context.Context, q repository.Queryer, customerID int64) (*domain.Cart, error)
	LockCart(ctx context.Context, q repository.Queryer, customerID int64) (*domain.Cart, error)
	EnsureCart(ctx context.Context, q repository.Queryer, customerID int64, now time.Time) (*domain.Cart, error)
	LineOwner(ctx context.Context, q repository.Queryer, lineID uuid.UUID) (int64, error)
	InsertLine(ctx context.Context, q repository.Queryer, line domain.CartLine) error
	UpdateLine(ctx context.Context, q repository.Queryer, line domain.CartLine) error
	DeleteLine(ctx context.Context, q repository.Queryer, lineID uuid.UUID) error
	DeleteLines(ctx context.Context, q repository.Queryer, cartID uuid.UUID) error
	Touch(ctx context.Context, q repository.Queryer, cart *domain.Cart) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, q repository.Queryer, order *domain.Order) error
	GetOrderByID(ctx context.Context, q repository.Queryer, id uuid.UUID) (*domain.Order, error)
	LockOrder(ctx context.Context, q repository.Queryer, id uuid.UUID) (*domain.Order, error)
	UpdateOrder(ctx context.Context, q repository.Queryer, order *domain.Order) error
	ListOrders(ctx context.Context, q repository.Queryer, f repository.OrderFilter) ([]*domain.Order, error)
}

type PromotionStore interface {
	CreatePromotion(ctx context.Context, q repository.Queryer, p *domain.Promotion) error
	LockPromotionByCode(ctx context.Context, q repository.Queryer, canteenID int64, code string) (*domain.Promotion, error)
	IncrementUses(ctx context.Context, q repository.Queryer, id uuid.UUID, now time.Time) error
	ListPromotions(ctx context.Context, q repository.Queryer, canteenID int64) ([]*domain.Promotion, error)
}

type ComplaintStore interface {
	CreateComplaint(ctx context.Context, q repository.Queryer, c *domain.Complaint) error
	GetComplaint(ctx context.Context, q repository.Queryer, id uuid.UUID) (*domain.Complaint, error)
	LockComplaint(ctx context.Context, q repository.Queryer, id uuid.UUID) (*domain.Complaint, error)
	UpdateComplaint(ctx context.Context, q repository.Queryer, c *domain.Complaint) error
	ListComplaints(ctx context.Context, q repository.Queryer, f repository.ComplaintFilter) ([]*domain.Complaint, error)
}

type EventOutbox interface {
	AddEvent(ctx context.Context, q repository.Queryer, event domain.OrderEvent) error
}

// Catalog is the read-only menu lookup.
type Catalog interface {
	GetMenuItem(ctx context.Context, id int64) (*domain.MenuItem, error)
	GetMenuItems(ctx context.Context, ids []int64) (map[int64]*domain.MenuItem, error)
	GetCanteen(ctx context.Context, id int64) (*domain.Canteen, error)
	ListMenu(ctx context.Context, canteenID int64) ([]*domain.MenuItem, error)
}

type options struct {
	now func() time.Time
	loc *time.Location
}

type Option func(*options)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the zone used for calendar days: promotion date ranges and stats buckets.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) clock() time.Time {
	return o.now().In(o.loc)
}
