package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	RespondAppError(w, appErrorFor(err), nil)
}

// appErrorFor maps a domain sentinel to its API error. The more specific
// not-found sentinels are checked before the generic ErrNotFound.
func appErrorFor(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, domain.ErrPaymentNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, domain.ErrStatementNotFound):
		return ErrStatementNotFound
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrAccountExists):
		return ErrAccountExists
	case errors.Is(err, domain.ErrInvalidState):
		return ErrInvalidState
	case errors.Is(err, domain.ErrOutstandingBalance):
		return ErrOutstandingBalance
	case errors.Is(err, domain.ErrInsufficientCredit):
		return ErrInsufficientCredit
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidAdjustment):
		return ErrInvalidAdjustment
	case errors.Is(err, domain.ErrAlreadyAllocated):
		return ErrAlreadyAllocated
	case errors.Is(err, domain.ErrClosedAccount):
		return ErrAccountClosed
	case errors.Is(err, domain.ErrInvalidPeriod):
		return ErrInvalidPeriod
	case errors.Is(err, domain.ErrStatementExists):
		return ErrStatementExists
	case errors.Is(err, domain.ErrInvalidPIN):
		return ErrInvalidPIN
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		return ErrInternalError
	}
}
