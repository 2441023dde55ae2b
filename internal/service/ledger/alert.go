package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

// CheckCreditLimitAlert returns nil when utilization is below the threshold.
// A non-positive thresholdPct falls back to the configured default.
func (s *Service) CheckCreditLimitAlert(ctx context.Context, accountID uuid.UUID, thresholdPct decimal.Decimal) (*domain.CreditAlert, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("CheckCreditLimitAlert: %w", notFound(err, domain.ErrAccountNotFound))
	}
	if !thresholdPct.IsPositive() {
		thresholdPct = decimal.NewFromFloat(s.config.CreditAlertThresholdPct)
	}
	return checkAlert(a, thresholdPct), nil
}

var hundred = decimal.NewFromInt(100)

// checkAlert compares the exact ratio; UtilizationPct is rounded for display only.
func checkAlert(a *domain.CustomerAccount, thresholdPct decimal.Decimal) *domain.CreditAlert {
	utilization := domain.UtilizationPct(a.CurrentBalance, a.CreditLimit)
	alert := &domain.CreditAlert{
		AccountID:      a.ID,
		Balance:        a.CurrentBalance,
		CreditLimit:    a.CreditLimit,
		UtilizationPct: utilization,
		ThresholdPct:   thresholdPct,
	}

	switch {
	case !a.CurrentBalance.IsPositive():
		return nil
	case a.CurrentBalance.GreaterThan(a.CreditLimit):
		alert.Level = domain.AlertLevelOverLimit
		alert.Message = fmt.Sprintf("balance %s exceeds credit limit %s", money(a.CurrentBalance), money(a.CreditLimit))
	case a.CurrentBalance.Equal(a.CreditLimit):
		alert.Level = domain.AlertLevelCritical
		alert.Message = fmt.Sprintf("credit limit of %s fully used", money(a.CreditLimit))
	case a.CurrentBalance.Mul(hundred).GreaterThanOrEqual(thresholdPct.Mul(a.CreditLimit)):
		alert.Level = domain.AlertLevelWarning
		alert.Message = fmt.Sprintf("credit utilization at %s%% (threshold %s%%)", utilization.StringFixed(2), thresholdPct.String())
	default:
		return nil
	}
	return alert
}
