package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/canteen/internal/cache"
	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/repository"
	"github.com/google/uuid"
)

// mockTx serializes atomic units, which is what row locks give the real store for a single key.
type mockTx struct {
	m     sync.Mutex
	calls int
	err   error
}

func (m *mockTx) Atomic(_ context.Context, fn func(q repository.Queryer) error) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	return fn(nil)
}

func (m *mockTx) Reader() repository.Queryer {
	return nil
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Lines = make([]domain.CartLine, len(c.Lines))
	for i, l := range c.Lines {
		l.Extras = append([]string(nil), l.Extras...)
		if len(l.Extras) == 0 {
			l.Extras = nil
		}
		cp.Lines[i] = l
	}
	return &cp
}

type mockCartStore struct {
	m     sync.RWMutex
	carts map[int64]*domain.Cart
	reads int
	// afterRead runs once a GetCart has copied the stored cart, outside the store lock.
	afterRead func(customerID int64)
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{carts: make(map[int64]*domain.Cart)}
}

func (m *mockCartStore) GetCart(_ context.Context, _ repository.Queryer, customerID int64) (*domain.Cart, error) {
	m.m.Lock()
	m.reads++
	c, ok := m.carts[customerID]
	var cp *domain.Cart
	if ok {
		cp = copyCart(c)
	}
	hook := m.afterRead
	m.m.Unlock()

	if !ok {
		return nil, fmt.Errorf("cart for customer %d: %w", customerID, domain.ErrNotFound)
	}
	if hook != nil {
		hook(customerID)
	}
	return cp, nil
}

func (m *mockCartStore) LockCart(_ context.Context, _ repository.Queryer, customerID int64) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[customerID]
	if !ok {
		return nil, fmt.Errorf("cart for customer %d: %w", customerID, domain.ErrNotFound)
	}
	return copyCart(c), nil
}

func (m *mockCartStore) EnsureCart(ctx context.Context, q repository.Queryer, customerID int64, now time.Time) (*domain.Cart, error) {
	m.m.Lock()
	if _, ok := m.carts[customerID]; !ok {
		m.carts[customerID] = &domain.Cart{
			ID:         uuid.New(),
			CustomerID: customerID,
			CreatedAt:  now,
			UpdatedAt:  now,
			Version:    1,
		}
	}
	m.m.Unlock()
	return m.LockCart(ctx, q, customerID)
}

func (m *mockCartStore) findLine(lineID uuid.UUID) (*domain.Cart, int) {
	for _, c := range m.carts {
		for i := range c.Lines {
			if c.Lines[i].ID == lineID {
				return c, i
			}
		}
	}
	return nil, -1
}

func (m *mockCartStore) LineOwner(_ context.Context, _ repository.Queryer, lineID uuid.UUID) (int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, _ := m.findLine(lineID)
	if c == nil {
		return 0, fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
	}
	return c.CustomerID, nil
}

func (m *mockCartStore) InsertLine(_ context.Context, _ repository.Queryer, line domain.CartLine) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, c := range m.carts {
		if c.ID == line.CartID {
			c.Lines = append(c.Lines, line)
			return nil
		}
	}
	return fmt.Errorf("cart %s: %w", line.CartID, domain.ErrNotFound)
}

func (m *mockCartStore) UpdateLine(_ context.Context, _ repository.Queryer, line domain.CartLine) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, i := m.findLine(line.ID)
	if c == nil {
		return fmt.Errorf("cart line %s: %w", line.ID, domain.ErrNotFound)
	}
	c.Lines[i] = line
	return nil
}

func (m *mockCartStore) DeleteLine(_ context.Context, _ repository.Queryer, lineID uuid.UUID) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, i := m.findLine(lineID)
	if c == nil {
		return fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return nil
}

func (m *mockCartStore) DeleteLines(_ context.Context, _ repository.Queryer, cartID uuid.UUID) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, c := range m.carts {
		if c.ID == cartID {
			c.Lines = nil
		}
	}
	return nil
}

func (m *mockCartStore) Touch(_ context.Context, _ repository.Queryer, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[cart.CustomerID]
	if !ok {
		return fmt.Errorf("cart %s: %w", cart.ID, domain.ErrNotFound)
	}
	c.PickupAt = cart.PickupAt
	c.UpdatedAt = cart.UpdatedAt
	c.Version++
	cart.Version = c.Version
	return nil
}

func (m *mockCartStore) stored(customerID int64) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[customerID]
	if !ok {
		return nil
	}
	return copyCart(c)
}

type mockOrderStore struct {
	m      sync.RWMutex
	orders map[uuid.UUID]*domain.Order
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{orders: make(map[uuid.UUID]*domain.Order)}
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &cp
}

func (m *mockOrderStore) CreateOrder(_ context.Context, _ repository.Queryer, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return repository.ErrDuplicateOrder
	}
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *mockOrderStore) GetOrderByID(_ context.Context, _ repository.Queryer, id uuid.UUID) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return copyOrder(o), nil
}

func (m *mockOrderStore) LockOrder(ctx context.Context, q repository.Queryer, id uuid.UUID) (*domain.Order, error) {
	return m.GetOrderByID(ctx, q, id)
}

func (m *mockOrderStore) UpdateOrder(_ context.Context, _ repository.Queryer, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrConcurrencyConflict)
	}
	order.Version++
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *mockOrderStore) ListOrders(_ context.Context, _ repository.Queryer, f repository.OrderFilter) ([]*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
			continue
		}
		if f.CanteenID != 0 && o.CanteenID != f.CanteenID {
			continue
		}
		if f.ActiveOnly && !o.Status.IsActive() {
			continue
		}
		if f.From != nil && o.OrderTime.Before(*f.From) {
			continue
		}
		if f.To != nil && !o.OrderTime.Before(*f.To) {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderTime.After(out[j].OrderTime) })
	return out, nil
}

func (m *mockOrderStore) put(o *domain.Order) {
	m.m.Lock()
	defer m.m.Unlock()
	m.orders[o.ID] = copyOrder(o)
}

type mockPromotionStore struct {
	m      sync.RWMutex
	promos map[uuid.UUID]*domain.Promotion
}

func newMockPromotionStore() *mockPromotionStore {
	return &mockPromotionStore{promos: make(map[uuid.UUID]*domain.Promotion)}
}

func (m *mockPromotionStore) CreatePromotion(_ context.Context, _ repository.Queryer, p *domain.Promotion) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, existing := range m.promos {
		if p.Code != "" && existing.CanteenID == p.CanteenID && existing.Code == p.Code {
			return fmt.Errorf("promotion code %q already exists: %w", p.Code, domain.ErrValidation)
		}
	}
	cp := *p
	m.promos[p.ID] = &cp
	return nil
}

func (m *mockPromotionStore) LockPromotionByCode(_ context.Context, _ repository.Queryer, canteenID int64, code string) (*domain.Promotion, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, p := range m.promos {
		if p.CanteenID == canteenID && p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("promotion %q: %w", code, domain.ErrNotFound)
}

func (m *mockPromotionStore) IncrementUses(_ context.Context, _ repository.Queryer, id uuid.UUID, now time.Time) error {
	m.m.Lock()
	defer m.m.Unlock()
	p, ok := m.promos[id]
	if !ok || (p.MaxUses != nil && p.CurrentUses >= *p.MaxUses) {
		return fmt.Errorf("promotion %s exhausted: %w", id, domain.ErrConcurrencyConflict)
	}
	p.CurrentUses++
	p.UpdatedAt = now
	return nil
}

func (m *mockPromotionStore) ListPromotions(_ context.Context, _ repository.Queryer, canteenID int64) ([]*domain.Promotion, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Promotion
	for _, p := range m.promos {
		if p.CanteenID == canteenID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPromotionStore) uses(code string) int {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, p := range m.promos {
		if p.Code == code {
			return p.CurrentUses
		}
	}
	return -1
}

type mockOutbox struct {
	m      sync.Mutex
	events []domain.OrderEvent
}

func (m *mockOutbox) AddEvent(_ context.Context, _ repository.Queryer, event domain.OrderEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockOutbox) recorded() []domain.OrderEvent {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]domain.OrderEvent(nil), m.events...)
}

// mockCatalog serves both the menu lookup and the identity collaborator.
type mockCatalog struct {
	m        sync.RWMutex
	items    map[int64]*domain.MenuItem
	canteens map[int64]*domain.Canteen
	roles    map[int64]domain.Role
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		items: map[int64]*domain.MenuItem{
			1: {ID: 1, CanteenID: 1, Name: "Veg Burger", Price: 450, Available: true,
				Sizes:  map[string]domain.Money{"regular": 0, "large": 150},
				Extras: map[string]domain.Money{"cheese": 50, "jalapeno": 30}},
			2: {ID: 2, CanteenID: 1, Name: "Masala Dosa", Price: 380, Available: true},
			3: {ID: 3, CanteenID: 2, Name: "Cold Coffee", Price: 250, Available: true},
			5: {ID: 5, CanteenID: 1, Name: "Muffin", Price: 220, Available: false},
			6: {ID: 6, CanteenID: 1, Name: "Party Platter", Price: 10000, Available: true},
		},
		canteens: map[int64]*domain.Canteen{
			1: {ID: 1, Name: "Main Block", OperatorID: 2, IsOpen: true},
			2: {ID: 2, Name: "Library Cafe", OperatorID: 3, IsOpen: true},
			3: {ID: 3, Name: "Night Kiosk", OperatorID: 2, IsOpen: false},
		},
		roles: map[int64]domain.Role{
			1: domain.RoleCustomer,
			2: domain.RoleOperator,
			3: domain.RoleOperator,
			4: domain.RoleAdmin,
			5: domain.RoleCustomer,
		},
	}
}

func (m *mockCatalog) GetMenuItem(_ context.Context, id int64) (*domain.MenuItem, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("menu item %d: %w", id, domain.ErrNotFound)
	}
	cp := *item
	return &cp, nil
}

func (m *mockCatalog) GetMenuItems(_ context.Context, ids []int64) (map[int64]*domain.MenuItem, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := make(map[int64]*domain.MenuItem, len(ids))
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			cp := *item
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *mockCatalog) GetCanteen(_ context.Context, id int64) (*domain.Canteen, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.canteens[id]
	if !ok {
		return nil, fmt.Errorf("canteen %d: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *mockCatalog) ListMenu(_ context.Context, canteenID int64) ([]*domain.MenuItem, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.MenuItem
	for _, item := range m.items {
		if item.CanteenID == canteenID {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockCatalog) ResolveRole(_ context.Context, userID int64) (domain.Role, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	r, ok := m.roles[userID]
	if !ok {
		return "", fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return r, nil
}

func (m *mockCatalog) OwnsCanteen(_ context.Context, userID, canteenID int64) (bool, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.canteens[canteenID]
	return ok && c.OperatorID == userID, nil
}

func (m *mockCatalog) removeItem(id int64) {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.items, id)
}

func (m *mockCatalog) setPrice(id int64, price domain.Money) {
	m.m.Lock()
	defer m.m.Unlock()
	m.items[id].Price = price
}

// mockCache keeps the newest version per customer like the redis cache does.
type mockCache struct {
	m     sync.RWMutex
	carts map[int64]*domain.Cart
	hits  int
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[int64]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, customerID int64) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[customerID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	m.hits++
	return copyCart(c), nil
}

func (m *mockCache) Set(_ context.Context, customerID int64, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if current, ok := m.carts[customerID]; ok && current.Version >= cart.Version {
		return nil
	}
	m.carts[customerID] = copyCart(cart)
	return nil
}

func (m *mockCache) cached(customerID int64) (*domain.Cart, bool) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[customerID]
	if !ok {
		return nil, false
	}
	return copyCart(c), true
}

func (m *mockCache) evict(customerID int64) {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, customerID)
}

type mockComplaintStore struct {
	m          sync.RWMutex
	complaints map[uuid.UUID]*domain.Complaint
}

func newMockComplaintStore() *mockComplaintStore {
	return &mockComplaintStore{complaints: make(map[uuid.UUID]*domain.Complaint)}
}

func (m *mockComplaintStore) CreateComplaint(_ context.Context, _ repository.Queryer, c *domain.Complaint) error {
	m.m.Lock()
	defer m.m.Unlock()
	cp := *c
	m.complaints[c.ID] = &cp
	return nil
}

func (m *mockComplaintStore) GetComplaint(_ context.Context, _ repository.Queryer, id uuid.UUID) (*domain.Complaint, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.complaints[id]
	if !ok {
		return nil, fmt.Errorf("complaint %s: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *mockComplaintStore) LockComplaint(ctx context.Context, q repository.Queryer, id uuid.UUID) (*domain.Complaint, error) {
	return m.GetComplaint(ctx, q, id)
}

func (m *mockComplaintStore) UpdateComplaint(_ context.Context, _ repository.Queryer, c *domain.Complaint) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.complaints[c.ID]; !ok {
		return fmt.Errorf("complaint %s: %w", c.ID, domain.ErrNotFound)
	}
	cp := *c
	m.complaints[c.ID] = &cp
	return nil
}

func (m *mockComplaintStore) ListComplaints(_ context.Context, _ repository.Queryer, f repository.ComplaintFilter) ([]*domain.Complaint, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Complaint
	for _, c := range m.complaints {
		if f.CustomerID != 0 && c.CustomerID != f.CustomerID {
			continue
		}
		if f.CanteenID != 0 && c.CanteenID != f.CanteenID {
			continue
		}
		if f.OrderID != uuid.Nil && c.OrderID != f.OrderID {
			continue
		}
		if f.EscalatedOnly && !c.Escalated {
			continue
		}
		if f.OpenOnly && !c.IsOpen() {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
