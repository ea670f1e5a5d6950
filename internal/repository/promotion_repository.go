package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PromotionRepository struct{}

func NewPromotionRepository() *PromotionRepository {
	return &PromotionRepository{}
}

type promotionRow struct {
	ID                 uuid.UUID       `db:"id"`
	CanteenID          int64           `db:"canteen_id"`
	Name               string          `db:"name"`
	Description        string          `db:"description"`
	DiscountType       string          `db:"discount_type"`
	DiscountValue      decimal.Decimal `db:"discount_value"`
	StartDate          time.Time       `db:"start_date"`
	EndDate            time.Time       `db:"end_date"`
	Active             bool            `db:"active"`
	MinOrderValueCents *int64          `db:"min_order_value_cents"`
	ApplicableItems    pq.Int64Array   `db:"applicable_items"`
	MaxUses            *int            `db:"max_uses"`
	CurrentUses        int             `db:"current_uses"`
	Code               *string         `db:"code"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r *promotionRow) toDomain() *domain.Promotion {
	p := &domain.Promotion{
		ID:            r.ID,
		CanteenID:     r.CanteenID,
		Name:          r.Name,
		Description:   r.Description,
		DiscountType:  domain.DiscountType(r.DiscountType),
		DiscountValue: r.DiscountValue,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Active:        r.Active,
		MaxUses:       r.MaxUses,
		CurrentUses:   r.CurrentUses,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.MinOrderValueCents != nil {
		m := domain.Money(*r.MinOrderValueCents)
		p.MinOrderValue = &m
	}
	if len(r.ApplicableItems) > 0 {
		p.ApplicableItems = []int64(r.ApplicableItems)
	}
	if r.Code != nil {
		p.Code = *r.Code
	}
	return p
}

const promotionColumns = `id, canteen_id, name, description, discount_type, discount_value, start_date, end_date,
	active, min_order_value_cents, applicable_items, max_uses, current_uses, code, created_at, updated_at`

func (r *PromotionRepository) CreatePromotion(ctx context.Context, q Queryer, p *domain.Promotion) error {
	var minOrder *int64
	if p.MinOrderValue != nil {
		v := int64(*p.MinOrderValue)
		minOrder = &v
	}
	var items interface{}
	if len(p.ApplicableItems) > 0 {
		items = pq.Int64Array(p.ApplicableItems)
	}
	var code *string
	if p.Code != "" {
		code = &p.Code
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO promotions (id, canteen_id, name, description, discount_type, discount_value, start_date, end_date,
		    active, min_order_value_cents, applicable_items, max_uses, current_uses, code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		p.ID, p.CanteenID, p.Name, p.Description, p.DiscountType, p.DiscountValue,
		p.StartDate, p.EndDate, p.Active, minOrder, items, p.MaxUses, p.CurrentUses, code, p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("promotion code %q already exists: %w", p.Code, domain.ErrValidation)
		}
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

// LockPromotionByCode finds the canteen's promotion by code and locks its row, serializing
// concurrent redemptions of the same code.
func (r *PromotionRepository) LockPromotionByCode(ctx context.Context, q Queryer, canteenID int64, code string) (*domain.Promotion, error) {
	var row promotionRow
	err := q.GetContext(ctx, &row, `SELECT `+promotionColumns+`
		FROM promotions WHERE canteen_id = $1 AND code = $2 FOR UPDATE`, canteenID, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("promotion %q: %w", code, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query promotion: %w", err)
	}
	return row.toDomain(), nil
}

// IncrementUses consumes one use. It never lets current_uses pass max_uses.
func (r *PromotionRepository) IncrementUses(ctx context.Context, q Queryer, id uuid.UUID, now time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE promotions
		SET current_uses = current_uses + 1, updated_at = $2
		WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)`, id, now)
	if err != nil {
		return fmt.Errorf("increment promotion uses: %w", err)
	}
	return expectOne(res, fmt.Errorf("promotion %s exhausted: %w", id, domain.ErrConcurrencyConflict))
}

func (r *PromotionRepository) ListPromotions(ctx context.Context, q Queryer, canteenID int64) ([]*domain.Promotion, error) {
	var rows []promotionRow
	err := q.SelectContext(ctx, &rows, `SELECT `+promotionColumns+`
		FROM promotions WHERE canteen_id = $1 ORDER BY created_at DESC`, canteenID)
	if err != nil {
		return nil, fmt.Errorf("query promotions: %w", err)
	}
	promos := make([]*domain.Promotion, 0, len(rows))
	for i := range rows {
		promos = append(promos, rows[i].toDomain())
	}
	return promos, nil
}
