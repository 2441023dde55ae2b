package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountPayment is a cash receipt against an account. AllocatedAmount is
// derived from its PaymentAllocation rows. TransactionID points at the
// Payment ledger entry once the payment has been posted.
type AccountPayment struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	Amount          decimal.Decimal
	Method          string
	ReferenceNumber *string
	Notes           *string
	ReceivedBy      *uuid.UUID
	TransactionID   *uuid.UUID
	AllocatedAmount decimal.Decimal
	ReceivedAt      time.Time
	CreatedAt       time.Time
}

func (p AccountPayment) UnallocatedAmount() decimal.Decimal {
	return p.Amount.Sub(p.AllocatedAmount)
}

func (p AccountPayment) IsPosted() bool {
	return p.TransactionID != nil
}

type PaymentAllocation struct {
	ID            uuid.UUID
	PaymentID     uuid.UUID
	TransactionID uuid.UUID
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// UnpaidCharge is a charge together with what has already been allocated to it.
type UnpaidCharge struct {
	Charge    AccountTransaction
	Allocated decimal.Decimal
}

func (c UnpaidCharge) Remaining() decimal.Decimal {
	return c.Charge.Amount.Sub(c.Allocated)
}

type ReceiptLine struct {
	ChargeID          uuid.UUID
	ChargeDescription string
	ChargeDate        time.Time
	ChargeAmount      decimal.Decimal
	Amount            decimal.Decimal
	ChargeRemaining   decimal.Decimal
}

// PaymentReceipt is the structured record handed to the rendering service.
type PaymentReceipt struct {
	Payment        AccountPayment
	AccountNumber  string
	CustomerName   string
	BusinessName   string
	ReceivedByName string
	Lines          []ReceiptLine
	BalanceAfter   decimal.Decimal
}
