package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ComplaintType string

const (
	ComplaintFoodQuality  ComplaintType = "food_quality"
	ComplaintWrongOrder   ComplaintType = "wrong_order"
	ComplaintBillingIssue ComplaintType = "billing_issue"
	ComplaintPickupIssue  ComplaintType = "pickup_issue"
	ComplaintPoorService  ComplaintType = "poor_service"
	ComplaintOther        ComplaintType = "other"
)

func ParseComplaintType(s string) (ComplaintType, error) {
	switch ComplaintType(s) {
	case ComplaintFoodQuality, ComplaintWrongOrder, ComplaintBillingIssue,
		ComplaintPickupIssue, ComplaintPoorService, ComplaintOther:
		return ComplaintType(s), nil
	}
	return "", fmt.Errorf("unknown complaint type %q: %w", s, ErrValidation)
}

type ComplaintStatus string

const (
	ComplaintPending  ComplaintStatus = "pending"
	ComplaintResolved ComplaintStatus = "resolved"
	ComplaintRejected ComplaintStatus = "rejected"
)

// ParseComplaintOutcome accepts the statuses a canteen can close a complaint with.
func ParseComplaintOutcome(s string) (ComplaintStatus, error) {
	switch ComplaintStatus(s) {
	case ComplaintResolved, ComplaintRejected:
		return ComplaintStatus(s), nil
	}
	return "", fmt.Errorf("complaint cannot be closed as %q: %w", s, ErrValidation)
}

// Complaint is filed by the customer of one order and answered by that order's canteen.
type Complaint struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	CanteenID  int64           `json:"canteen_id"`
	Heading    string          `json:"heading"`
	Text       string          `json:"complaint_text"`
	Type       ComplaintType   `json:"complaint_type"`
	Status     ComplaintStatus `json:"status"`
	Escalated  bool            `json:"is_escalated"`
	Response   string          `json:"response_text,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ComplaintPatch edits what the customer wrote. Nil fields stay unchanged.
type ComplaintPatch struct {
	Heading *string
	Text    *string
	Type    *ComplaintType
}

func (p ComplaintPatch) IsEmpty() bool {
	return p.Heading == nil && p.Text == nil && p.Type == nil
}

func (c *Complaint) Check() error {
	c.Heading = strings.TrimSpace(c.Heading)
	c.Text = strings.TrimSpace(c.Text)
	if c.Heading == "" {
		return fmt.Errorf("complaint heading is required: %w", ErrValidation)
	}
	if c.Text == "" {
		return fmt.Errorf("complaint text is required: %w", ErrValidation)
	}
	if _, err := ParseComplaintType(string(c.Type)); err != nil {
		return err
	}
	return nil
}

func (c *Complaint) IsOpen() bool {
	return c.Status == ComplaintPending
}

// Edit applies the customer's changes. Only pending complaints can be edited.
func (c *Complaint) Edit(p ComplaintPatch, now time.Time) error {
	if !c.IsOpen() {
		return fmt.Errorf("complaint %s is %s: %w", c.ID, c.Status, ErrInvalidTransition)
	}
	if p.Heading != nil {
		c.Heading = *p.Heading
	}
	if p.Text != nil {
		c.Text = *p.Text
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if err := c.Check(); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

// Close records the canteen's answer. A complaint is closed once; outcome is resolved or rejected.
func (c *Complaint) Close(outcome ComplaintStatus, response string, now time.Time) error {
	if _, err := ParseComplaintOutcome(string(outcome)); err != nil {
		return err
	}
	if !c.IsOpen() {
		return fmt.Errorf("complaint %s is already %s: %w", c.ID, c.Status, ErrInvalidTransition)
	}
	c.Status = outcome
	c.Response = strings.TrimSpace(response)
	c.UpdatedAt = now
	return nil
}

// Escalate flags the complaint for the administration. A resolved complaint cannot be escalated;
// a rejected one can. Escalating twice changes nothing.
func (c *Complaint) Escalate(now time.Time) error {
	if c.Status == ComplaintResolved {
		return fmt.Errorf("complaint %s is resolved: %w", c.ID, ErrInvalidTransition)
	}
	if c.Escalated {
		return nil
	}
	c.Escalated = true
	c.UpdatedAt = now
	return nil
}
