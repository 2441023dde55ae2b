package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrStatementNotFound  = errors.New("statement not found")
	ErrAccountExists      = errors.New("account already exists for this customer and business")
	ErrInvalidState       = errors.New("invalid account state for this operation")
	ErrOutstandingBalance = errors.New("account has an outstanding balance")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidAdjustment  = errors.New("adjustment would make balance negative")
	ErrAlreadyAllocated   = errors.New("payment already fully allocated")
	ErrClosedAccount      = errors.New("account closed")
	ErrInvalidPeriod      = errors.New("invalid statement period")
	ErrStatementExists    = errors.New("statement already exists for this period")
	ErrInvalidPIN         = errors.New("invalid pin")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrAccountNumberTaken = errors.New("account number already taken")
)
