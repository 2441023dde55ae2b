package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

type allocationPlan struct {
	ChargeID uuid.UUID
	Amount   decimal.Decimal
}

// planAllocations walks amount across charges in the order given, which the
// store guarantees is oldest first. Each step takes min(left, remainder).
// The second return value is what could not be placed.
func planAllocations(amount decimal.Decimal, charges []domain.UnpaidCharge) ([]allocationPlan, decimal.Decimal) {
	left := amount
	var plan []allocationPlan
	for _, c := range charges {
		if !left.IsPositive() {
			break
		}
		remainder := c.Remaining()
		if !remainder.IsPositive() {
			continue
		}
		applied := decimal.Min(left, remainder)
		plan = append(plan, allocationPlan{ChargeID: c.Charge.ID, Amount: applied})
		left = left.Sub(applied)
	}
	return plan, left
}

// floorZero keeps the stored balance from going negative on overpayment.
func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
