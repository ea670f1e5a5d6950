package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/service"
	"github.com/google/uuid"
)

type ComplaintService interface {
	File(ctx context.Context, actorID int64, req service.FileComplaintRequest) (*domain.Complaint, error)
	Edit(ctx context.Context, actorID int64, id uuid.UUID, patch domain.ComplaintPatch) (*domain.Complaint, error)
	Escalate(ctx context.Context, actorID int64, id uuid.UUID) (*domain.Complaint, error)
	Close(ctx context.Context, actorID int64, id uuid.UUID, outcome domain.ComplaintStatus, response string) (*domain.Complaint, error)
	Get(ctx context.Context, actorID int64, id uuid.UUID) (*domain.Complaint, error)
	ListCustomerComplaints(ctx context.Context, customerID int64) ([]*domain.Complaint, error)
	ListCanteenComplaints(ctx context.Context, actorID, canteenID int64, openOnly, escalatedOnly bool) ([]*domain.Complaint, error)
	ListOrderComplaints(ctx context.Context, actorID int64, orderID uuid.UUID) ([]*domain.Complaint, error)
}

type ComplaintsHandler struct {
	complaints ComplaintService
	timeout    time.Duration
}

func NewComplaintsHandler(complaints ComplaintService, timeout time.Duration) *ComplaintsHandler {
	return &ComplaintsHandler{
		complaints: complaints,
		timeout:    timeout,
	}
}

type FileComplaintRequestDTO struct {
	Heading       string `json:"heading"`
	ComplaintText string `json:"complaint_text"`
	ComplaintType string `json:"complaint_type"`
}

type EditComplaintRequestDTO struct {
	Heading       *string `json:"heading,omitempty"`
	ComplaintText *string `json:"complaint_text,omitempty"`
	ComplaintType *string `json:"complaint_type,omitempty"`
}

type CloseComplaintRequestDTO struct {
	Status       string `json:"status"`
	ResponseText string `json:"response_text,omitempty"`
}

func orEmpty(list []*domain.Complaint) []*domain.Complaint {
	if list == nil {
		return []*domain.Complaint{}
	}
	return list
}

// POST /api/v1/orders/{orderID}/complaints
func (h *ComplaintsHandler) FileComplaint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	var req FileComplaintRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	kind, err := domain.ParseComplaintType(req.ComplaintType)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	complaint, err := h.complaints.File(ctx, getUserIDFromContext(r.Context()), service.FileComplaintRequest{
		OrderID: orderID,
		Heading: req.Heading,
		Text:    req.ComplaintText,
		Type:    kind,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, complaint)
}

// GET /api/v1/orders/{orderID}/complaints
func (h *ComplaintsHandler) ListOrderComplaints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	list, err := h.complaints.ListOrderComplaints(ctx, getUserIDFromContext(r.Context()), orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, orEmpty(list))
}

// GET /api/v1/complaints
func (h *ComplaintsHandler) ListMyComplaints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.complaints.ListCustomerComplaints(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, orEmpty(list))
}

// GET /api/v1/complaints/{complaintID}
func (h *ComplaintsHandler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := uuidParam(w, r, "complaintID")
	if !ok {
		return
	}
	complaint, err := h.complaints.Get(ctx, getUserIDFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, complaint)
}

// PATCH /api/v1/complaints/{complaintID}
func (h *ComplaintsHandler) EditComplaint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := uuidParam(w, r, "complaintID")
	if !ok {
		return
	}
	var req EditComplaintRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := domain.ComplaintPatch{Heading: req.Heading, Text: req.ComplaintText}
	if req.ComplaintType != nil {
		kind, err := domain.ParseComplaintType(*req.ComplaintType)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		patch.Type = &kind
	}

	complaint, err := h.complaints.Edit(ctx, getUserIDFromContext(r.Context()), id, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, complaint)
}

// POST /api/v1/complaints/{complaintID}/escalate
func (h *ComplaintsHandler) EscalateComplaint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := uuidParam(w, r, "complaintID")
	if !ok {
		return
	}
	complaint, err := h.complaints.Escalate(ctx, getUserIDFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, complaint)
}

// POST /api/v1/complaints/{complaintID}/close
func (h *ComplaintsHandler) CloseComplaint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := uuidParam(w, r, "complaintID")
	if !ok {
		return
	}
	var req CloseComplaintRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := domain.ParseComplaintOutcome(req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	complaint, err := h.complaints.Close(ctx, getUserIDFromContext(r.Context()), id, outcome, req.ResponseText)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, complaint)
}

// GET /api/v1/canteens/{canteenID}/complaints[?open=true][&escalated=true]
func (h *ComplaintsHandler) ListCanteenComplaints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	canteenID, ok := canteenIDParam(w, r)
	if !ok {
		return
	}
	openOnly, ok := boolQuery(w, r, "open")
	if !ok {
		return
	}
	escalatedOnly, ok := boolQuery(w, r, "escalated")
	if !ok {
		return
	}

	list, err := h.complaints.ListCanteenComplaints(ctx, getUserIDFromContext(r.Context()), canteenID, openOnly, escalatedOnly)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, orEmpty(list))
}
