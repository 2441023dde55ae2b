package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeCharge     TransactionType = "charge"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeWriteOff   TransactionType = "write_off"
)

type ReferenceType string

const (
	ReferenceTypeOrder   ReferenceType = "order"
	ReferenceTypeInvoice ReferenceType = "invoice"
	ReferenceTypePayment ReferenceType = "payment"
)

func (r ReferenceType) IsValid() bool {
	switch r {
	case ReferenceTypeOrder, ReferenceTypeInvoice, ReferenceTypePayment:
		return true
	}
	return false
}

// AccountTransaction is an immutable ledger entry. Amount is positive for
// charges, payments and write-offs; adjustments carry their own sign.
type AccountTransaction struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	Type          TransactionType
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	ReferenceType *ReferenceType
	ReferenceID   *string
	DueDate       *time.Time
	CreatedBy     *uuid.UUID
	CreatedAt     time.Time
}

// SignedAmount is the entry's effect on the balance.
func (t AccountTransaction) SignedAmount() decimal.Decimal {
	switch t.Type {
	case TransactionTypePayment, TransactionTypeWriteOff:
		return t.Amount.Neg()
	default:
		return t.Amount
	}
}

// ReplayBalance sums the signed amounts of txns, ignoring stored balance_after values.
func ReplayBalance(txns []AccountTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		total = total.Add(t.SignedAmount())
	}
	return total
}
