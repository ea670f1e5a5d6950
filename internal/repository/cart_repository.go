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
)

type CartRepository struct{}

func NewCartRepository() *CartRepository {
	return &CartRepository{}
}

type cartRow struct {
	ID         uuid.UUID  `db:"id"`
	CustomerID int64      `db:"customer_id"`
	PickupAt   *time.Time `db:"pickup_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
	Version    int64      `db:"version"`
}

type cartLineRow struct {
	ID           uuid.UUID      `db:"id"`
	CartID       uuid.UUID      `db:"cart_id"`
	MenuItemID   int64          `db:"menu_item_id"`
	Quantity     int            `db:"quantity"`
	Size         *string        `db:"size"`
	Extras       pq.StringArray `db:"extras"`
	Instructions string         `db:"instructions"`
	Location     string         `db:"location"`
	AddedAt      time.Time      `db:"added_at"`
}

func (r cartLineRow) toDomain() domain.CartLine {
	var extras []string
	if len(r.Extras) > 0 {
		extras = []string(r.Extras)
	}
	return domain.CartLine{
		ID:           r.ID,
		CartID:       r.CartID,
		MenuItemID:   r.MenuItemID,
		Quantity:     r.Quantity,
		Size:         r.Size,
		Extras:       extras,
		Instructions: r.Instructions,
		Location:     r.Location,
		AddedAt:      r.AddedAt,
	}
}

const cartColumns = `id, customer_id, pickup_at, created_at, updated_at, version`

// GetCart loads the customer's cart with its lines, or ErrNotFound.
func (r *CartRepository) GetCart(ctx context.Context, q Queryer, customerID int64) (*domain.Cart, error) {
	return r.getCart(ctx, q, `SELECT `+cartColumns+` FROM carts WHERE customer_id = $1`, customerID)
}

// LockCart is GetCart holding a row lock on the cart until the transaction ends.
func (r *CartRepository) LockCart(ctx context.Context, q Queryer, customerID int64) (*domain.Cart, error) {
	return r.getCart(ctx, q, `SELECT `+cartColumns+` FROM carts WHERE customer_id = $1 FOR UPDATE`, customerID)
}

// EnsureCart creates the customer's cart on first use and returns it locked.
func (r *CartRepository) EnsureCart(ctx context.Context, q Queryer, customerID int64, now time.Time) (*domain.Cart, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO carts (id, customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (customer_id) DO NOTHING`,
		uuid.New(), customerID, now)
	if err != nil {
		return nil, fmt.Errorf("insert cart: %w", err)
	}
	return r.LockCart(ctx, q, customerID)
}

func (r *CartRepository) getCart(ctx context.Context, q Queryer, query string, customerID int64) (*domain.Cart, error) {
	var row cartRow
	err := q.GetContext(ctx, &row, query, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart for customer %d: %w", customerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	var lines []cartLineRow
	err = q.SelectContext(ctx, &lines, `
		SELECT id, cart_id, menu_item_id, quantity, size, extras, instructions, location, added_at
		FROM cart_lines WHERE cart_id = $1
		ORDER BY added_at, id`, row.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}

	cart := &domain.Cart{
		ID:         row.ID,
		CustomerID: row.CustomerID,
		PickupAt:   row.PickupAt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
		Version:    row.Version,
		Lines:      make([]domain.CartLine, 0, len(lines)),
	}
	for _, l := range lines {
		cart.Lines = append(cart.Lines, l.toDomain())
	}
	return cart, nil
}

// LineOwner returns the customer owning the cart that holds the line.
func (r *CartRepository) LineOwner(ctx context.Context, q Queryer, lineID uuid.UUID) (int64, error) {
	var customerID int64
	err := q.GetContext(ctx, &customerID, `
		SELECT c.customer_id
		FROM cart_lines l JOIN carts c ON c.id = l.cart_id
		WHERE l.id = $1`, lineID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query cart line owner: %w", err)
	}
	return customerID, nil
}

func (r *CartRepository) InsertLine(ctx context.Context, q Queryer, line domain.CartLine) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cart_lines (id, cart_id, menu_item_id, quantity, size, extras, instructions, location, merge_key, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		line.ID, line.CartID, line.MenuItemID, line.Quantity, line.Size,
		pq.StringArray(nonNil(line.Extras)), line.Instructions, line.Location, line.MergeKey(), line.AddedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("cart line %s: %w", line.MergeKey(), domain.ErrConcurrencyConflict)
		}
		return fmt.Errorf("insert cart line: %w", err)
	}
	return nil
}

func (r *CartRepository) UpdateLine(ctx context.Context, q Queryer, line domain.CartLine) error {
	res, err := q.ExecContext(ctx, `
		UPDATE cart_lines
		SET quantity = $2, size = $3, extras = $4, instructions = $5, location = $6, merge_key = $7
		WHERE id = $1`,
		line.ID, line.Quantity, line.Size, pq.StringArray(nonNil(line.Extras)),
		line.Instructions, line.Location, line.MergeKey())
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	return expectOne(res, fmt.Errorf("cart line %s: %w", line.ID, domain.ErrNotFound))
}

func (r *CartRepository) DeleteLine(ctx context.Context, q Queryer, lineID uuid.UUID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return expectOne(res, fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound))
}

func (r *CartRepository) DeleteLines(ctx context.Context, q Queryer, cartID uuid.UUID) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}
	return nil
}

// Touch stores the cart header and bumps its version. Every cart mutation ends with a Touch, so
// the version orders cached copies.
func (r *CartRepository) Touch(ctx context.Context, q Queryer, cart *domain.Cart) error {
	err := q.GetContext(ctx, &cart.Version, `
		UPDATE carts SET pickup_at = $2, updated_at = $3, version = version + 1
		WHERE id = $1
		RETURNING version`,
		cart.ID, cart.PickupAt, cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cart %s: %w", cart.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
