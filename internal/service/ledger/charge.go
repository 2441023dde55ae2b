package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
)

type ChargeRequest struct {
	AccountID     uuid.UUID
	Amount        decimal.Decimal
	Description   string
	ReferenceType *domain.ReferenceType
	ReferenceID   *string
	DueDate       *time.Time
	ActorID       *uuid.UUID
}

// AdjustmentRequest is shared by AdjustBalance (signed amount) and WriteOff
// (positive amount).
type AdjustmentRequest struct {
	AccountID uuid.UUID
	Amount    decimal.Decimal
	Reason    string
	ActorID   *uuid.UUID
}

func (s *Service) ChargeToAccount(ctx context.Context, req ChargeRequest) (*domain.AccountTransaction, error) {
	log := logging.FromContext(ctx)
	amount := domain.RoundMoney(req.Amount)

	if req.ReferenceType != nil && !req.ReferenceType.IsValid() {
		return nil, fmt.Errorf("ChargeToAccount: reference type %q: %w", *req.ReferenceType, domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ChargeToAccount: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.lockAccount(ctx, tx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("ChargeToAccount: %w", err)
	}

	if _, err := checkCredit(a, amount); err != nil {
		return nil, fmt.Errorf("ChargeToAccount: %w", err)
	}

	now := s.now()
	dueDate := a.DefaultDueDate(now)
	if req.DueDate != nil {
		dueDate = req.DueDate.UTC()
	}

	txn := &domain.AccountTransaction{
		ID:            uuid.New(),
		AccountID:     a.ID,
		Type:          domain.TransactionTypeCharge,
		Amount:        amount,
		Description:   strings.TrimSpace(req.Description),
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		DueDate:       &dueDate,
		CreatedBy:     req.ActorID,
		CreatedAt:     now,
	}
	if err := s.appendEntry(ctx, tx, a, txn, a.CurrentBalance.Add(amount)); err != nil {
		return nil, fmt.Errorf("ChargeToAccount: %w", err)
	}

	if err := s.emit(ctx, tx, a.ID, domain.AccountEventCharged, req.ActorID, entryPayload(txn), now); err != nil {
		return nil, fmt.Errorf("ChargeToAccount: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ChargeToAccount: commit: %w", err)
	}

	s.metrics.LedgerEntry(txn.Type, txn.Amount)
	log.Info("account charged",
		"account_id", a.ID,
		"transaction_id", txn.ID,
		"amount", money(amount),
		"balance_after", money(txn.BalanceAfter),
	)
	return txn, nil
}

// AdjustBalance records a signed correction. The result may never drive the
// balance below zero.
func (s *Service) AdjustBalance(ctx context.Context, req AdjustmentRequest) (*domain.AccountTransaction, error) {
	amount := domain.RoundMoney(req.Amount)
	if amount.IsZero() {
		return nil, fmt.Errorf("AdjustBalance: %w", domain.ErrInvalidAmount)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("AdjustBalance: reason is required: %w", domain.ErrInvalidRequest)
	}

	txn, err := s.applyCorrection(ctx, req, domain.TransactionTypeAdjustment, amount, reason)
	if err != nil {
		return nil, fmt.Errorf("AdjustBalance: %w", err)
	}
	return txn, nil
}

// WriteOff reduces the balance by an uncollectable amount.
func (s *Service) WriteOff(ctx context.Context, req AdjustmentRequest) (*domain.AccountTransaction, error) {
	amount := domain.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("WriteOff: %w", domain.ErrInvalidAmount)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("WriteOff: reason is required: %w", domain.ErrInvalidRequest)
	}

	txn, err := s.applyCorrection(ctx, req, domain.TransactionTypeWriteOff, amount, reason)
	if err != nil {
		return nil, fmt.Errorf("WriteOff: %w", err)
	}
	return txn, nil
}

func (s *Service) applyCorrection(ctx context.Context, req AdjustmentRequest, kind domain.TransactionType, amount decimal.Decimal, reason string) (*domain.AccountTransaction, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.lockAccount(ctx, tx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if a.Status == domain.AccountStatusClosed {
		return nil, domain.ErrClosedAccount
	}

	txn := &domain.AccountTransaction{
		ID:          uuid.New(),
		AccountID:   a.ID,
		Type:        kind,
		Amount:      amount,
		Description: reason,
		CreatedBy:   req.ActorID,
		CreatedAt:   s.now(),
	}
	balanceAfter := a.CurrentBalance.Add(txn.SignedAmount())
	if balanceAfter.IsNegative() {
		return nil, fmt.Errorf("balance %s %s %s: %w", money(a.CurrentBalance), kind, money(amount), domain.ErrInvalidAdjustment)
	}

	if err := s.appendEntry(ctx, tx, a, txn, balanceAfter); err != nil {
		return nil, err
	}

	eventType := domain.AccountEventAdjusted
	if kind == domain.TransactionTypeWriteOff {
		eventType = domain.AccountEventWrittenOff
	}
	if err := s.emit(ctx, tx, a.ID, eventType, req.ActorID, entryPayload(txn), txn.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.metrics.LedgerEntry(kind, amount)
	log.Info("balance corrected by ledger entry",
		"account_id", a.ID,
		"transaction_id", txn.ID,
		"type", kind,
		"amount", money(amount),
		"balance_after", money(balanceAfter),
	)
	return txn, nil
}

// appendEntry inserts txn and moves the stored balance with it. The caller
// holds the account lock.
func (s *Service) appendEntry(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount, txn *domain.AccountTransaction, balanceAfter decimal.Decimal) error {
	txn.BalanceAfter = balanceAfter
	if err := s.transactions.Create(ctx, tx, txn); err != nil {
		return fmt.Errorf("appendEntry: %w", err)
	}
	if err := s.accounts.UpdateBalance(ctx, tx, a.ID, balanceAfter, txn.CreatedAt); err != nil {
		return fmt.Errorf("appendEntry: %w", err)
	}
	a.CurrentBalance = balanceAfter
	a.UpdatedAt = txn.CreatedAt
	return nil
}

func entryPayload(t *domain.AccountTransaction) map[string]any {
	payload := map[string]any{
		"transaction_id": t.ID,
		"type":           t.Type,
		"amount":         money(t.Amount),
		"balance_after":  money(t.BalanceAfter),
		"description":    t.Description,
	}
	if t.ReferenceType != nil && t.ReferenceID != nil {
		payload["reference_type"] = *t.ReferenceType
		payload["reference_id"] = *t.ReferenceID
	}
	if t.DueDate != nil {
		payload["due_date"] = t.DueDate.Format(time.DateOnly)
	}
	return payload
}
