package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/logger"
	"github.com/fjod/go_cart/canteen/internal/policy"
	"github.com/fjod/go_cart/canteen/internal/repository"
	"github.com/google/uuid"
)

type FileComplaintRequest struct {
	OrderID uuid.UUID
	Heading string
	Text    string
	Type    domain.ComplaintType
}

// ComplaintService handles complaints about placed orders. Customers file, edit and escalate
// their own complaints; the order's canteen closes them.
type ComplaintService struct {
	tx         TxRunner
	complaints ComplaintStore
	orders     OrderStore
	catalog    Catalog
	checker    *policy.Checker
	opts       options
}

func NewComplaintService(tx TxRunner, complaints ComplaintStore, orders OrderStore, catalog Catalog, checker *policy.Checker, opts ...Option) *ComplaintService {
	return &ComplaintService{
		tx:         tx,
		complaints: complaints,
		orders:     orders,
		catalog:    catalog,
		checker:    checker,
		opts:       buildOptions(opts),
	}
}

func (s *ComplaintService) File(ctx context.Context, actorID int64, req FileComplaintRequest) (*domain.Complaint, error) {
	order, err := s.orders.GetOrderByID(ctx, s.tx.Reader(), req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CanFileComplaint(ctx, actorID, order); err != nil {
		return nil, err
	}

	now := s.opts.clock()
	c := &domain.Complaint{
		ID:         uuid.New(),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		CanteenID:  order.CanteenID,
		Heading:    req.Heading,
		Text:       req.Text,
		Type:       req.Type,
		Status:     domain.ComplaintPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.Check(); err != nil {
		return nil, err
	}

	err = s.tx.Atomic(ctx, func(q repository.Queryer) error {
		return s.complaints.CreateComplaint(ctx, q, c)
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().
		Str("complaint_id", c.ID.String()).
		Str("order_id", c.OrderID.String()).
		Str("type", string(c.Type)).
		Msg("complaint filed")
	return c, nil
}

func (s *ComplaintService) Edit(ctx context.Context, actorID int64, id uuid.UUID, patch domain.ComplaintPatch) (*domain.Complaint, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrValidation)
	}
	return s.mutate(ctx, id, func(c *domain.Complaint) error {
		if err := s.checker.CanEditComplaint(ctx, actorID, c); err != nil {
			return err
		}
		return c.Edit(patch, s.opts.clock())
	})
}

func (s *ComplaintService) Escalate(ctx context.Context, actorID int64, id uuid.UUID) (*domain.Complaint, error) {
	return s.mutate(ctx, id, func(c *domain.Complaint) error {
		if err := s.checker.CanEditComplaint(ctx, actorID, c); err != nil {
			return err
		}
		return c.Escalate(s.opts.clock())
	})
}

// Close answers the complaint as resolved or rejected. Only the canteen's operator or an admin
// may close it.
func (s *ComplaintService) Close(ctx context.Context, actorID int64, id uuid.UUID, outcome domain.ComplaintStatus, response string) (*domain.Complaint, error) {
	return s.mutate(ctx, id, func(c *domain.Complaint) error {
		if err := s.checker.CanManageCanteen(ctx, actorID, c.CanteenID); err != nil {
			return err
		}
		return c.Close(outcome, response, s.opts.clock())
	})
}

func (s *ComplaintService) mutate(ctx context.Context, id uuid.UUID, apply func(c *domain.Complaint) error) (*domain.Complaint, error) {
	var complaint *domain.Complaint
	err := s.tx.Atomic(ctx, func(q repository.Queryer) error {
		c, errTx := s.complaints.LockComplaint(ctx, q, id)
		if errTx != nil {
			return errTx
		}
		if errTx = apply(c); errTx != nil {
			return errTx
		}
		if errTx = s.complaints.UpdateComplaint(ctx, q, c); errTx != nil {
			return errTx
		}
		complaint = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().
		Str("complaint_id", complaint.ID.String()).
		Str("status", string(complaint.Status)).
		Bool("escalated", complaint.Escalated).
		Msg("complaint updated")
	return complaint, nil
}

func (s *ComplaintService) Get(ctx context.Context, actorID int64, id uuid.UUID) (*domain.Complaint, error) {
	c, err := s.complaints.GetComplaint(ctx, s.tx.Reader(), id)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CanViewComplaint(ctx, actorID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ComplaintService) ListCustomerComplaints(ctx context.Context, customerID int64) ([]*domain.Complaint, error) {
	return s.complaints.ListComplaints(ctx, s.tx.Reader(), repository.ComplaintFilter{CustomerID: customerID})
}

// ListCanteenComplaints serves the canteen's queue, optionally only open or escalated ones.
func (s *ComplaintService) ListCanteenComplaints(ctx context.Context, actorID, canteenID int64, openOnly, escalatedOnly bool) ([]*domain.Complaint, error) {
	if _, err := s.catalog.GetCanteen(ctx, canteenID); err != nil {
		return nil, err
	}
	if err := s.checker.CanManageCanteen(ctx, actorID, canteenID); err != nil {
		return nil, err
	}
	return s.complaints.ListComplaints(ctx, s.tx.Reader(), repository.ComplaintFilter{
		CanteenID:     canteenID,
		OpenOnly:      openOnly,
		EscalatedOnly: escalatedOnly,
	})
}

// ListOrderComplaints returns the complaints about one order to whoever can view the order.
func (s *ComplaintService) ListOrderComplaints(ctx context.Context, actorID int64, orderID uuid.UUID) ([]*domain.Complaint, error) {
	order, err := s.orders.GetOrderByID(ctx, s.tx.Reader(), orderID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CanViewOrder(ctx, actorID, order); err != nil {
		return nil, err
	}
	return s.complaints.ListComplaints(ctx, s.tx.Reader(), repository.ComplaintFilter{OrderID: orderID})
}
