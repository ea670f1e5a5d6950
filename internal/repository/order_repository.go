package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrDuplicateOrder = errors.New("order already exists")

type OrderRepository struct{}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

type orderRow struct {
	ID                 uuid.UUID  `db:"id"`
	CustomerID         int64      `db:"customer_id"`
	CanteenID          int64      `db:"canteen_id"`
	Lines              []byte     `db:"lines"`
	SubtotalCents      int64      `db:"subtotal_cents"`
	DiscountCents      int64      `db:"discount_cents"`
	TotalCents         int64      `db:"total_cents"`
	PromotionID        *uuid.UUID `db:"promotion_id"`
	Status             string     `db:"status"`
	PaymentMethod      string     `db:"payment_method"`
	PaymentStatus      string     `db:"payment_status"`
	CustomerNote       string     `db:"customer_note"`
	Phone              string     `db:"phone"`
	IsPreOrder         bool       `db:"is_pre_order"`
	PickupTime         *time.Time `db:"pickup_time"`
	OrderTime          time.Time  `db:"order_time"`
	ConfirmedAt        *time.Time `db:"confirmed_at"`
	PreparingAt        *time.Time `db:"preparing_at"`
	ReadyAt            *time.Time `db:"ready_at"`
	DeliveredAt        *time.Time `db:"delivered_at"`
	CancelledAt        *time.Time `db:"cancelled_at"`
	CancellationReason *string    `db:"cancellation_reason"`
	Version            int        `db:"version"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (r *orderRow) toDomain() (*domain.Order, error) {
	o := &domain.Order{
		ID:                 r.ID,
		CustomerID:         r.CustomerID,
		CanteenID:          r.CanteenID,
		Subtotal:           domain.Money(r.SubtotalCents),
		Discount:           domain.Money(r.DiscountCents),
		Total:              domain.Money(r.TotalCents),
		PromotionID:        r.PromotionID,
		Status:             domain.OrderStatus(r.Status),
		PaymentMethod:      r.PaymentMethod,
		PaymentStatus:      domain.PaymentStatus(r.PaymentStatus),
		CustomerNote:       r.CustomerNote,
		Phone:              r.Phone,
		IsPreOrder:         r.IsPreOrder,
		PickupTime:         r.PickupTime,
		OrderTime:          r.OrderTime,
		ConfirmedAt:        r.ConfirmedAt,
		PreparingAt:        r.PreparingAt,
		ReadyAt:            r.ReadyAt,
		DeliveredAt:        r.DeliveredAt,
		CancelledAt:        r.CancelledAt,
		CancellationReason: r.CancellationReason,
		Version:            r.Version,
		UpdatedAt:          r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}
	return o, nil
}

const orderColumns = `id, customer_id, canteen_id, lines, subtotal_cents, discount_cents, total_cents,
	promotion_id, status, payment_method, payment_status, customer_note, phone, is_pre_order,
	pickup_time, order_time, confirmed_at, preparing_at, ready_at, delivered_at, cancelled_at,
	cancellation_reason, version, updated_at`

func (r *OrderRepository) CreateOrder(ctx context.Context, q Queryer, order *domain.Order) error {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal order lines: %w", err)
	}

	query := `INSERT INTO orders (id, customer_id, canteen_id, lines, subtotal_cents, discount_cents, total_cents,
	              promotion_id, status, payment_method, payment_status, customer_note, phone, is_pre_order,
	              pickup_time, order_time, version, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $16)`

	_, insertErr := q.ExecContext(ctx, query,
		order.ID,
		order.CustomerID,
		order.CanteenID,
		linesJSON,
		int64(order.Subtotal),
		int64(order.Discount),
		int64(order.Total),
		order.PromotionID,
		order.Status,
		order.PaymentMethod,
		order.PaymentStatus,
		order.CustomerNote,
		order.Phone,
		order.IsPreOrder,
		order.PickupTime,
		order.OrderTime,
		order.Version)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *OrderRepository) GetOrderByID(ctx context.Context, q Queryer, id uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// LockOrder reads the order holding its row lock until the transaction ends.
func (r *OrderRepository) LockOrder(ctx context.Context, q Queryer, id uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) getOrder(ctx context.Context, q Queryer, query string, id uuid.UUID) (*domain.Order, error) {
	var row orderRow
	err := q.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return row.toDomain()
}

// UpdateOrder writes the mutable fields if the stored version still matches order.Version,
// then bumps the version. A mismatch means another writer got there first.
func (r *OrderRepository) UpdateOrder(ctx context.Context, q Queryer, order *domain.Order) error {
	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET status = $3, payment_status = $4, confirmed_at = $5, preparing_at = $6, ready_at = $7,
		    delivered_at = $8, cancelled_at = $9, cancellation_reason = $10,
		    version = version + 1, updated_at = $11
		WHERE id = $1 AND version = $2`,
		order.ID,
		order.Version,
		order.Status,
		order.PaymentStatus,
		order.ConfirmedAt,
		order.PreparingAt,
		order.ReadyAt,
		order.DeliveredAt,
		order.CancelledAt,
		order.CancellationReason,
		order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if err := expectOne(res, fmt.Errorf("order %s version %d: %w", order.ID, order.Version, domain.ErrConcurrencyConflict)); err != nil {
		return err
	}
	order.Version++
	return nil
}

// OrderFilter selects orders for listings and stats. Zero values mean no restriction.
type OrderFilter struct {
	CustomerID int64
	CanteenID  int64
	ActiveOnly bool
	From       *time.Time
	To         *time.Time
}

// ListOrders returns matching orders newest first.
func (r *OrderRepository) ListOrders(ctx context.Context, q Queryer, f OrderFilter) ([]*domain.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != 0 {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.CanteenID != 0 {
		add("canteen_id = $%d", f.CanteenID)
	}
	if f.From != nil {
		add("order_time >= $%d", *f.From)
	}
	if f.To != nil {
		add("order_time < $%d", *f.To)
	}
	if f.ActiveOnly {
		active := make([]string, 0, 4)
		for _, s := range domain.AllOrderStatuses {
			if s.IsActive() {
				active = append(active, string(s))
			}
		}
		add("status = ANY($%d)", pq.StringArray(active))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY order_time DESC`

	var rows []orderRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
