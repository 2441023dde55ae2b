package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
)

// CalculateBalanceFromTransactions replays the account's full history. Stored
// balance_after values are not consulted.
func (s *Service) CalculateBalanceFromTransactions(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, snapshotOpts)
	if err != nil {
		return decimal.Zero, fmt.Errorf("CalculateBalanceFromTransactions: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.accounts.Get(ctx, tx, accountID); err != nil {
		return decimal.Zero, fmt.Errorf("CalculateBalanceFromTransactions: %w", notFound(err, domain.ErrAccountNotFound))
	}
	txns, err := s.transactions.ListByAccount(ctx, tx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("CalculateBalanceFromTransactions: %w", err)
	}
	return domain.ReplayBalance(txns), nil
}

// VerifyBalanceAccuracy compares the stored balance with the replayed one.
// Drift is reported and logged, never returned as an error. A non-positive
// tolerance means domain.BalanceTolerance.
func (s *Service) VerifyBalanceAccuracy(ctx context.Context, accountID uuid.UUID, tolerance decimal.Decimal) (*domain.BalanceCheck, error) {
	tx, err := s.db.BeginTx(ctx, snapshotOpts)
	if err != nil {
		return nil, fmt.Errorf("VerifyBalanceAccuracy: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.accounts.Get(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("VerifyBalanceAccuracy: %w", notFound(err, domain.ErrAccountNotFound))
	}
	txns, err := s.transactions.ListByAccount(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("VerifyBalanceAccuracy: %w", err)
	}

	check := compareBalance(a, domain.ReplayBalance(txns), tolerance)
	if !check.Accurate {
		s.metrics.BalanceDrift(false)
		logging.FromContext(ctx).Warn("balance drift detected",
			"account_id", a.ID,
			"stored", money(check.StoredBalance),
			"calculated", money(check.CalculatedBalance),
			"difference", money(check.Difference),
		)
	}
	return &check, nil
}

// RecalculateAndFixBalance overwrites a drifted stored balance with the
// replayed value and records the correction in the account notes. No ledger
// entry is created.
func (s *Service) RecalculateAndFixBalance(ctx context.Context, accountID uuid.UUID, reason string, actorID *uuid.UUID) (*domain.BalanceFix, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("RecalculateAndFixBalance: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("RecalculateAndFixBalance: %w", err)
	}
	txns, err := s.transactions.ListByAccount(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("RecalculateAndFixBalance: %w", err)
	}

	fix := &domain.BalanceFix{BalanceCheck: compareBalance(a, domain.ReplayBalance(txns), domain.BalanceTolerance)}
	if fix.Accurate {
		return fix, nil
	}

	now := s.now()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "recalculated from transaction history"
	}
	a.AppendNote(now, "Balance corrected",
		fmt.Sprintf("%s -> %s (%s)", money(fix.StoredBalance), money(fix.CalculatedBalance), reason))

	if err := s.accounts.CorrectBalance(ctx, tx, a.ID, fix.CalculatedBalance, a.Notes, now); err != nil {
		return nil, fmt.Errorf("RecalculateAndFixBalance: %w", err)
	}

	payload := map[string]any{
		"stored":     money(fix.StoredBalance),
		"calculated": money(fix.CalculatedBalance),
		"difference": money(fix.Difference),
		"reason":     reason,
	}
	if err := s.emit(ctx, tx, a.ID, domain.AccountEventBalanceCorrected, actorID, payload, now); err != nil {
		return nil, fmt.Errorf("RecalculateAndFixBalance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("RecalculateAndFixBalance: commit: %w", err)
	}

	fix.Fixed = true
	s.metrics.BalanceDrift(true)
	log.Warn("balance corrected",
		"account_id", a.ID,
		"from", money(fix.StoredBalance),
		"to", money(fix.CalculatedBalance),
	)
	return fix, nil
}

func compareBalance(a *domain.CustomerAccount, calculated, tolerance decimal.Decimal) domain.BalanceCheck {
	if !tolerance.IsPositive() {
		tolerance = domain.BalanceTolerance
	}
	return domain.BalanceCheck{
		AccountID:         a.ID,
		StoredBalance:     a.CurrentBalance,
		CalculatedBalance: calculated,
		Difference:        a.CurrentBalance.Sub(calculated),
		Tolerance:         tolerance,
		Accurate:          domain.WithinTolerance(a.CurrentBalance, calculated, tolerance),
	}
}
