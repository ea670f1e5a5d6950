package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/google/uuid"
)

type ComplaintRepository struct{}

func NewComplaintRepository() *ComplaintRepository {
	return &ComplaintRepository{}
}

type complaintRow struct {
	ID         uuid.UUID `db:"id"`
	OrderID    uuid.UUID `db:"order_id"`
	CustomerID int64     `db:"customer_id"`
	CanteenID  int64     `db:"canteen_id"`
	Heading    string    `db:"heading"`
	Text       string    `db:"complaint_text"`
	Type       string    `db:"complaint_type"`
	Status     string    `db:"status"`
	Escalated  bool      `db:"is_escalated"`
	Response   string    `db:"response_text"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r *complaintRow) toDomain() *domain.Complaint {
	return &domain.Complaint{
		ID:         r.ID,
		OrderID:    r.OrderID,
		CustomerID: r.CustomerID,
		CanteenID:  r.CanteenID,
		Heading:    r.Heading,
		Text:       r.Text,
		Type:       domain.ComplaintType(r.Type),
		Status:     domain.ComplaintStatus(r.Status),
		Escalated:  r.Escalated,
		Response:   r.Response,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

const complaintColumns = `id, order_id, customer_id, canteen_id, heading, complaint_text, complaint_type,
	status, is_escalated, response_text, created_at, updated_at`

func (r *ComplaintRepository) CreateComplaint(ctx context.Context, q Queryer, c *domain.Complaint) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO complaints (`+complaintColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.OrderID, c.CustomerID, c.CanteenID, c.Heading, c.Text, c.Type,
		c.Status, c.Escalated, c.Response, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

func (r *ComplaintRepository) GetComplaint(ctx context.Context, q Queryer, id uuid.UUID) (*domain.Complaint, error) {
	return r.getComplaint(ctx, q, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id)
}

// LockComplaint is GetComplaint holding a row lock until the transaction ends.
func (r *ComplaintRepository) LockComplaint(ctx context.Context, q Queryer, id uuid.UUID) (*domain.Complaint, error) {
	return r.getComplaint(ctx, q, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1 FOR UPDATE`, id)
}

func (r *ComplaintRepository) getComplaint(ctx context.Context, q Queryer, query string, id uuid.UUID) (*domain.Complaint, error) {
	var row complaintRow
	err := q.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("complaint %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query complaint: %w", err)
	}
	return row.toDomain(), nil
}

func (r *ComplaintRepository) UpdateComplaint(ctx context.Context, q Queryer, c *domain.Complaint) error {
	res, err := q.ExecContext(ctx, `
		UPDATE complaints
		SET heading = $2, complaint_text = $3, complaint_type = $4, status = $5,
		    is_escalated = $6, response_text = $7, updated_at = $8
		WHERE id = $1`,
		c.ID, c.Heading, c.Text, c.Type, c.Status, c.Escalated, c.Response, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}
	return expectOne(res, fmt.Errorf("complaint %s: %w", c.ID, domain.ErrNotFound))
}

// ComplaintFilter selects complaints for listings. Zero values mean no restriction.
type ComplaintFilter struct {
	CustomerID    int64
	CanteenID     int64
	OrderID       uuid.UUID
	EscalatedOnly bool
	OpenOnly      bool
}

// ListComplaints returns matching complaints newest first.
func (r *ComplaintRepository) ListComplaints(ctx context.Context, q Queryer, f ComplaintFilter) ([]*domain.Complaint, error) {
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
	if f.OrderID != uuid.Nil {
		add("order_id = $%d", f.OrderID)
	}
	if f.EscalatedOnly {
		where = append(where, "is_escalated")
	}
	if f.OpenOnly {
		add("status = $%d", string(domain.ComplaintPending))
	}

	query := `SELECT ` + complaintColumns + ` FROM complaints`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	var rows []complaintRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query complaints: %w", err)
	}
	complaints := make([]*domain.Complaint, 0, len(rows))
	for i := range rows {
		complaints = append(complaints, rows[i].toDomain())
	}
	return complaints, nil
}
