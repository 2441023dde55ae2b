package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
)

type StatementRequest struct {
	AccountID uuid.UUID
	PeriodEnd time.Time
	// PeriodStart defaults to the day after the previous statement, then the
	// account open date, then 30 days before PeriodEnd.
	PeriodStart *time.Time
	ActorID     *uuid.UUID
}

func (s *Service) GenerateStatement(ctx context.Context, req StatementRequest) (*domain.AccountStatement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("GenerateStatement: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.lockAccount(ctx, tx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("GenerateStatement: %w", err)
	}

	end := domain.DayStart(req.PeriodEnd)
	var start time.Time
	if req.PeriodStart != nil {
		start = domain.DayStart(*req.PeriodStart)
	} else {
		latest, err := s.statements.GetLatest(ctx, tx, a.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GenerateStatement: %w", err)
		}
		start = defaultPeriodStart(a, latest, end)
	}
	if start.After(end) {
		return nil, fmt.Errorf("GenerateStatement: %s after %s: %w",
			start.Format(time.DateOnly), end.Format(time.DateOnly), domain.ErrInvalidPeriod)
	}

	txns, err := s.transactions.ListByAccount(ctx, tx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("GenerateStatement: %w", err)
	}
	summary := summarizePeriod(txns, start, end)

	aging, err := s.agingAsOf(ctx, tx, a, end)
	if err != nil {
		return nil, fmt.Errorf("GenerateStatement: %w", err)
	}

	now := s.now()
	st := &domain.AccountStatement{
		ID:             uuid.New(),
		AccountID:      a.ID,
		PeriodStart:    start,
		PeriodEnd:      end,
		OpeningBalance: summary.Opening,
		TotalCharges:   summary.Charges,
		TotalPayments:  summary.Payments,
		ClosingBalance: summary.Closing(),
		Aging:          reconcileAging(aging, summary.Closing()),
		CreatedBy:      req.ActorID,
		CreatedAt:      now,
	}
	if err := s.statements.Create(ctx, tx, st); err != nil {
		return nil, fmt.Errorf("GenerateStatement: %w", err)
	}

	payload := map[string]any{
		"statement_id":    st.ID,
		"period_start":    st.PeriodStart.Format(time.DateOnly),
		"period_end":      st.PeriodEnd.Format(time.DateOnly),
		"closing_balance": money(st.ClosingBalance),
	}
	if err := s.emit(ctx, tx, a.ID, domain.AccountEventStatement, req.ActorID, payload, now); err != nil {
		return nil, fmt.Errorf("GenerateStatement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("GenerateStatement: commit: %w", err)
	}

	s.metrics.StatementGenerated(true)
	logging.FromContext(ctx).Info("statement generated",
		"account_id", a.ID,
		"statement_id", st.ID,
		"period_start", st.PeriodStart.Format(time.DateOnly),
		"period_end", st.PeriodEnd.Format(time.DateOnly),
		"closing_balance", money(st.ClosingBalance),
	)
	return st, nil
}

// VerifyStatementAccuracy re-derives the closing balance and re-sums the
// aging buckets of a stored statement. A non-positive tolerance means
// domain.BalanceTolerance.
func (s *Service) VerifyStatementAccuracy(ctx context.Context, statementID uuid.UUID, tolerance decimal.Decimal) (*domain.StatementCheck, error) {
	st, err := s.GetStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("VerifyStatementAccuracy: %w", err)
	}
	check := checkStatement(st, tolerance)
	return &check, nil
}

func (s *Service) GetStatement(ctx context.Context, statementID uuid.UUID) (*domain.AccountStatement, error) {
	st, err := s.statements.GetByID(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", notFound(err, domain.ErrStatementNotFound))
	}
	return st, nil
}

func (s *Service) ListStatements(ctx context.Context, accountID uuid.UUID) ([]domain.AccountStatement, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("ListStatements: %w", err)
	}
	statements, err := s.statements.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ListStatements: %w", err)
	}
	return statements, nil
}

// GetStatementDocument assembles the structured statement record, including
// the period's ledger entries, for the rendering service.
func (s *Service) GetStatementDocument(ctx context.Context, statementID uuid.UUID) (*domain.StatementDocument, error) {
	st, err := s.GetStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("GetStatementDocument: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, snapshotOpts)
	if err != nil {
		return nil, fmt.Errorf("GetStatementDocument: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.accounts.Get(ctx, tx, st.AccountID)
	if err != nil {
		return nil, fmt.Errorf("GetStatementDocument: %w", notFound(err, domain.ErrAccountNotFound))
	}
	txns, err := s.transactions.ListByAccount(ctx, tx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("GetStatementDocument: %w", err)
	}

	customerName, businessName, err := s.resolveNames(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("GetStatementDocument: %w", err)
	}

	return &domain.StatementDocument{
		Statement:     *st,
		AccountNumber: a.AccountNumber,
		CustomerName:  customerName,
		BusinessName:  businessName,
		Transactions:  summarizePeriod(txns, st.PeriodStart, st.PeriodEnd).Entries,
	}, nil
}

func defaultPeriodStart(a *domain.CustomerAccount, latest *domain.AccountStatement, end time.Time) time.Time {
	switch {
	case latest != nil:
		return domain.DayStart(latest.PeriodEnd).AddDate(0, 0, 1)
	case a.OpenedAt != nil:
		return domain.DayStart(*a.OpenedAt)
	default:
		return end.AddDate(0, 0, -30)
	}
}

type periodSummary struct {
	Opening  decimal.Decimal
	Charges  decimal.Decimal
	Payments decimal.Decimal
	Entries  []domain.AccountTransaction
}

func (p periodSummary) Closing() decimal.Decimal {
	return p.Opening.Add(p.Charges).Sub(p.Payments)
}

// summarizePeriod splits txns (creation order) into the opening balance and
// the totals for the inclusive dates [start, end]. Positive adjustments count
// as charges; negative adjustments and write-offs count as payments.
func summarizePeriod(txns []domain.AccountTransaction, start, end time.Time) periodSummary {
	from := domain.DayStart(start)
	until := domain.DayStart(end).AddDate(0, 0, 1)

	var p periodSummary
	for _, t := range txns {
		switch {
		case t.CreatedAt.Before(from):
			p.Opening = p.Opening.Add(t.SignedAmount())
			continue
		case !t.CreatedAt.Before(until):
			continue
		}

		p.Entries = append(p.Entries, t)
		switch t.Type {
		case domain.TransactionTypeCharge:
			p.Charges = p.Charges.Add(t.Amount)
		case domain.TransactionTypePayment, domain.TransactionTypeWriteOff:
			p.Payments = p.Payments.Add(t.Amount)
		case domain.TransactionTypeAdjustment:
			if t.Amount.IsPositive() {
				p.Charges = p.Charges.Add(t.Amount)
			} else {
				p.Payments = p.Payments.Add(t.Amount.Abs())
			}
		}
	}
	return p
}

// reconcileAging folds whatever the charge-based buckets cannot explain into
// Current so the buckets always sum to closing.
func reconcileAging(b domain.AgingBuckets, closing decimal.Decimal) domain.AgingBuckets {
	b.Current = b.Current.Add(closing.Sub(b.Total()))
	return b
}

func checkStatement(st *domain.AccountStatement, tolerance decimal.Decimal) domain.StatementCheck {
	if !tolerance.IsPositive() {
		tolerance = domain.BalanceTolerance
	}
	expected := st.OpeningBalance.Add(st.TotalCharges).Sub(st.TotalPayments)
	agingTotal := st.Aging.Total()
	check := domain.StatementCheck{
		StatementID:     st.ID,
		ExpectedClosing: expected,
		AgingTotal:      agingTotal,
		ClosingBalance:  st.ClosingBalance,
		BalanceAccurate: domain.WithinTolerance(expected, st.ClosingBalance, tolerance),
		AgingAccurate:   domain.WithinTolerance(agingTotal, st.ClosingBalance, tolerance),
	}
	check.Accurate = check.BalanceAccurate && check.AgingAccurate
	return check
}
