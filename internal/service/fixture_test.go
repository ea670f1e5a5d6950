package service

import (
	"testing"
	"time"

	"github.com/fjod/go_cart/canteen/internal/policy"
)

const (
	customerID      int64 = 1
	operatorID      int64 = 2
	otherOperatorID int64 = 3
	adminID         int64 = 4
	otherCustomerID int64 = 5
)

type fixture struct {
	now     time.Time
	tx      *mockTx
	carts   *mockCartStore
	orders  *mockOrderStore
	promos  *mockPromotionStore
	claims  *mockComplaintStore
	outbox  *mockOutbox
	catalog *mockCatalog
	cache   *mockCache

	cartSvc  *CartService
	orderSvc *OrderService
	promoSvc *PromotionService
	statsSvc *StatsService
	claimSvc *ComplaintService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		tx:      &mockTx{},
		carts:   newMockCartStore(),
		orders:  newMockOrderStore(),
		promos:  newMockPromotionStore(),
		claims:  newMockComplaintStore(),
		outbox:  &mockOutbox{},
		catalog: newMockCatalog(),
		cache:   newMockCache(),
	}
	clock := WithClock(func() time.Time { return f.now })
	checker := policy.NewChecker(f.catalog)

	f.cartSvc = NewCartService(f.tx, f.carts, f.catalog, f.cache, clock)
	f.orderSvc = NewOrderService(f.tx, f.carts, f.orders, f.promos, f.outbox, f.catalog, checker, f.cache, clock)
	f.promoSvc = NewPromotionService(f.tx, f.promos, f.catalog, checker, clock)
	f.statsSvc = NewStatsService(f.tx, f.orders, f.catalog, checker, clock)
	f.claimSvc = NewComplaintService(f.tx, f.claims, f.orders, f.catalog, checker, clock)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
