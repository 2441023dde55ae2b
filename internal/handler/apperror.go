package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrAccountNotFound    = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrPaymentNotFound    = &AppError{http.StatusNotFound, "PAYMENT_NOT_FOUND", "Payment not found"}
	ErrStatementNotFound  = &AppError{http.StatusNotFound, "STATEMENT_NOT_FOUND", "Statement not found"}
	ErrAccountExists      = &AppError{http.StatusConflict, "ACCOUNT_ALREADY_EXISTS", "Customer already has an account with this business"}
	ErrInvalidState       = &AppError{http.StatusConflict, "INVALID_STATE", "Operation not allowed in the account's current state"}
	ErrOutstandingBalance = &AppError{http.StatusConflict, "OUTSTANDING_BALANCE", "Account has an outstanding balance"}
	ErrInsufficientCredit = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_CREDIT", "Amount exceeds available credit"}
	ErrInvalidAmount      = &AppError{http.StatusUnprocessableEntity, "INVALID_AMOUNT", "Amount is not valid for this operation"}
	ErrInvalidAdjustment  = &AppError{http.StatusUnprocessableEntity, "INVALID_ADJUSTMENT", "Adjustment would make the balance negative"}
	ErrAlreadyAllocated   = &AppError{http.StatusConflict, "ALREADY_ALLOCATED", "Payment is already fully allocated"}
	ErrAccountClosed      = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_CLOSED", "Account is closed"}
	ErrInvalidPeriod      = &AppError{http.StatusBadRequest, "INVALID_PERIOD", "Statement period is not valid"}
	ErrStatementExists    = &AppError{http.StatusConflict, "STATEMENT_EXISTS", "A statement already exists for this period"}
	ErrInvalidPIN         = &AppError{http.StatusUnauthorized, "INVALID_PIN", "PIN does not match"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
