package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// toStatus classifies a service error by its domain kind.
func toStatus(err error) *status.Status {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.New(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return status.New(codes.Aborted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, "request timed out")
	default:
		return status.New(codes.Internal, "internal server error")
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	st := toStatus(err)

	var httpStatus int
	var code string

	switch st.Code() {
	case codes.InvalidArgument:
		httpStatus = http.StatusBadRequest
		code = "validation_error"
	case codes.NotFound:
		httpStatus = http.StatusNotFound
		code = "not_found"
	case codes.PermissionDenied:
		httpStatus = http.StatusForbidden
		code = "unauthorized"
	case codes.FailedPrecondition:
		httpStatus = http.StatusConflict
		code = "invalid_transition"
	case codes.Aborted:
		httpStatus = http.StatusConflict
		code = "concurrency_conflict"
	case codes.DeadlineExceeded:
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		httpStatus = http.StatusInternalServerError
		code = "internal_error"
		logger.FromContext(r.Context()).Error().Err(err).Msg("request failed")
	}

	respondError(w, r, httpStatus, code, st.Message())
}

// decodeJSON rejects unknown fields so typos in optional fields do not pass silently.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
