package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var hundred = decimal.NewFromInt(100)

// Promotion is scoped to one canteen. DiscountValue is a percentage for percentage promotions
// and an amount in major units for fixed ones. StartDate and EndDate are whole days, inclusive.
type Promotion struct {
	ID              uuid.UUID       `json:"id"`
	CanteenID       int64           `json:"canteen_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	DiscountType    DiscountType    `json:"discount_type"`
	DiscountValue   decimal.Decimal `json:"discount_value"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	Active          bool            `json:"active"`
	MinOrderValue   *Money          `json:"min_order_value_cents,omitempty"`
	ApplicableItems []int64         `json:"applicable_items,omitempty"`
	MaxUses         *int            `json:"max_uses,omitempty"`
	CurrentUses     int             `json:"current_uses"`
	Code            string          `json:"code,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Validate reports whether the promotion applies to an order with the given subtotal and items
// on the calendar day of today.
func (p *Promotion) Validate(subtotal Money, menuItemIDs []int64, today time.Time) bool {
	if !p.Active {
		return false
	}
	day := dateOf(today)
	if day.Before(dateOf(p.StartDate)) || day.After(dateOf(p.EndDate)) {
		return false
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false
	}
	if p.MinOrderValue != nil && subtotal < *p.MinOrderValue {
		return false
	}
	if len(p.ApplicableItems) > 0 {
		allowed := make(map[int64]struct{}, len(p.ApplicableItems))
		for _, id := range p.ApplicableItems {
			allowed[id] = struct{}{}
		}
		for _, id := range menuItemIDs {
			if _, ok := allowed[id]; ok {
				return true
			}
		}
		return false
	}
	return true
}

// ComputeDiscount never returns less than zero or more than subtotal.
func (p *Promotion) ComputeDiscount(subtotal Money) Money {
	if subtotal <= 0 {
		return 0
	}
	var discount Money
	switch p.DiscountType {
	case DiscountPercentage:
		discount = MoneyFromDecimal(subtotal.Decimal().Mul(p.DiscountValue).Div(hundred))
	case DiscountFixed:
		discount = MoneyFromDecimal(p.DiscountValue)
	}
	if discount < 0 {
		return 0
	}
	if discount > subtotal {
		return subtotal
	}
	return discount
}

// Check validates a promotion definition before it is stored.
func (p *Promotion) Check() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("promotion name is required: %w", ErrValidation)
	}
	switch p.DiscountType {
	case DiscountPercentage:
		if p.DiscountValue.GreaterThan(hundred) {
			return fmt.Errorf("percentage discount above 100: %w", ErrValidation)
		}
	case DiscountFixed:
	default:
		return fmt.Errorf("unknown discount type %q: %w", p.DiscountType, ErrValidation)
	}
	if !p.DiscountValue.IsPositive() {
		return fmt.Errorf("discount value must be positive: %w", ErrValidation)
	}
	if dateOf(p.EndDate).Before(dateOf(p.StartDate)) {
		return fmt.Errorf("end date before start date: %w", ErrValidation)
	}
	if p.MaxUses != nil && *p.MaxUses < 1 {
		return fmt.Errorf("max uses must be at least 1: %w", ErrValidation)
	}
	if p.MinOrderValue != nil && *p.MinOrderValue < 0 {
		return fmt.Errorf("min order value must not be negative: %w", ErrValidation)
	}
	return nil
}
