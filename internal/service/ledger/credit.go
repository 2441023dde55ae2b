package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

// ValidateCredit reports whether a charge of amount would be accepted right
// now. It is advisory: ChargeToAccount re-runs the same check under the
// account lock.
func (s *Service) ValidateCredit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*domain.CreditCheck, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ValidateCredit: %w", notFound(err, domain.ErrAccountNotFound))
	}
	check, _ := checkCredit(a, domain.RoundMoney(amount))
	return &check, nil
}

// checkCredit returns the advisory result plus the sentinel a charge would
// fail with.
func checkCredit(a *domain.CustomerAccount, amount decimal.Decimal) (domain.CreditCheck, error) {
	available := a.AvailableCredit()
	check := domain.CreditCheck{AvailableCredit: available}

	switch {
	case a.Status == domain.AccountStatusClosed:
		check.Message = "account is closed"
		return check, domain.ErrClosedAccount
	case a.Status != domain.AccountStatusActive:
		check.Message = fmt.Sprintf("account is %s", a.Status)
		return check, domain.ErrInvalidState
	case !amount.IsPositive():
		check.Message = "amount must be greater than zero"
		return check, domain.ErrInvalidAmount
	case amount.GreaterThan(available):
		check.Message = fmt.Sprintf("charge of %s exceeds available credit of %s", money(amount), money(available))
		return check, domain.ErrInsufficientCredit
	}

	check.Valid = true
	check.Message = "credit available"
	return check, nil
}
