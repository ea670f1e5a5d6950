package domain

import (
	"fmt"
	"sort"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID   int64
	Name string
	Role Role
}

type Canteen struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	OperatorID int64  `json:"operator_id"`
	IsOpen     bool   `json:"is_open"`
}

type MenuItem struct {
	ID        int64            `json:"id"`
	CanteenID int64            `json:"canteen_id"`
	Name      string           `json:"name"`
	Price     Money            `json:"price_cents"`
	Available bool             `json:"available"`
	Sizes     map[string]Money `json:"sizes,omitempty"`
	Extras    map[string]Money `json:"extras,omitempty"`
}

// UnitPrice resolves the price of one unit with the given size and extras applied.
func (m *MenuItem) UnitPrice(size *string, extras []string) (Money, error) {
	price := m.Price
	if size != nil {
		delta, ok := m.Sizes[*size]
		if !ok {
			return 0, fmt.Errorf("menu item %d has no size %q: %w", m.ID, *size, ErrValidation)
		}
		price += delta
	}
	for _, e := range extras {
		delta, ok := m.Extras[e]
		if !ok {
			return 0, fmt.Errorf("menu item %d has no extra %q: %w", m.ID, e, ErrValidation)
		}
		price += delta
	}
	return price, nil
}

// SizeNames returns the configured sizes in stable order.
func (m *MenuItem) SizeNames() []string {
	names := make([]string, 0, len(m.Sizes))
	for n := range m.Sizes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
