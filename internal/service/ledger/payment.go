package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
)

type PaymentRequest struct {
	AccountID       uuid.UUID
	Amount          decimal.Decimal
	Method          string
	ReferenceNumber *string
	Notes           *string
	ActorID         *uuid.UUID
}

type AllocationResult struct {
	Payment     *domain.AccountPayment
	Allocations []domain.PaymentAllocation
	// Transaction is the Payment ledger entry, set when this call posted it.
	Transaction  *domain.AccountTransaction
	BalanceAfter decimal.Decimal
}

// RecordPayment stores a cash receipt without allocating it. The balance is
// untouched until AllocatePayment runs.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (*domain.AccountPayment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("RecordPayment: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.lockAccount(ctx, tx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("RecordPayment: %w", err)
	}

	p, err := s.recordPayment(ctx, tx, a, req)
	if err != nil {
		return nil, fmt.Errorf("RecordPayment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("RecordPayment: commit: %w", err)
	}

	logging.FromContext(ctx).Info("payment recorded",
		"account_id", a.ID,
		"payment_id", p.ID,
		"amount", money(p.Amount),
		"method", p.Method,
	)
	return p, nil
}

// AllocatePayment applies a payment's unallocated amount to the account's
// unpaid charges, oldest first.
func (s *Service) AllocatePayment(ctx context.Context, paymentID uuid.UUID, actorID *uuid.UUID) (*AllocationResult, error) {
	existing, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("AllocatePayment: %w", notFound(err, domain.ErrPaymentNotFound))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("AllocatePayment: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.lockAccount(ctx, tx, existing.AccountID)
	if err != nil {
		return nil, fmt.Errorf("AllocatePayment: %w", err)
	}

	// Re-read under the lock; a concurrent allocation may have consumed it.
	p, err := s.payments.Get(ctx, tx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("AllocatePayment: %w", notFound(err, domain.ErrPaymentNotFound))
	}

	result, err := s.allocate(ctx, tx, a, p, actorID)
	if err != nil {
		return nil, fmt.Errorf("AllocatePayment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("AllocatePayment: commit: %w", err)
	}

	s.recordAllocation(ctx, result)
	return result, nil
}

// ProcessPayment records and allocates a payment in one transaction.
func (s *Service) ProcessPayment(ctx context.Context, req PaymentRequest) (*AllocationResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ProcessPayment: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.lockAccount(ctx, tx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("ProcessPayment: %w", err)
	}

	p, err := s.recordPayment(ctx, tx, a, req)
	if err != nil {
		return nil, fmt.Errorf("ProcessPayment: %w", err)
	}

	result, err := s.allocate(ctx, tx, a, p, req.ActorID)
	if err != nil {
		return nil, fmt.Errorf("ProcessPayment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ProcessPayment: commit: %w", err)
	}

	s.recordAllocation(ctx, result)
	return result, nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.AccountPayment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: %w", notFound(err, domain.ErrPaymentNotFound))
	}
	return p, nil
}

// ListPayments returns the account's payments oldest first, each with its
// allocated total.
func (s *Service) ListPayments(ctx context.Context, accountID uuid.UUID) ([]domain.AccountPayment, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("ListPayments: %w", err)
	}
	payments, err := s.payments.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ListPayments: %w", err)
	}
	return payments, nil
}

func (s *Service) recordPayment(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount, req PaymentRequest) (*domain.AccountPayment, error) {
	if a.Status == domain.AccountStatusClosed {
		return nil, domain.ErrClosedAccount
	}
	amount := domain.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		return nil, fmt.Errorf("payment method is required: %w", domain.ErrInvalidRequest)
	}

	now := s.now()
	p := &domain.AccountPayment{
		ID:              uuid.New(),
		AccountID:       a.ID,
		Amount:          amount,
		Method:          method,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		ReceivedBy:      req.ActorID,
		AllocatedAmount: decimal.Zero,
		ReceivedAt:      now,
		CreatedAt:       now,
	}
	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("recordPayment: %w", err)
	}

	payload := map[string]any{
		"payment_id": p.ID,
		"amount":     money(p.Amount),
		"method":     p.Method,
	}
	if err := s.emit(ctx, tx, a.ID, domain.AccountEventPaymentRecorded, req.ActorID, payload, now); err != nil {
		return nil, fmt.Errorf("recordPayment: %w", err)
	}
	return p, nil
}

// allocate runs FIFO allocation for p. The caller holds the account lock.
//
// The Payment ledger entry is written once, for the full payment amount, the
// first time a payment is allocated. Later calls only place leftover credit
// and lower the stored balance by what they placed. Either way the stored
// balance floors at zero.
func (s *Service) allocate(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount, p *domain.AccountPayment, actorID *uuid.UUID) (*AllocationResult, error) {
	if a.Status == domain.AccountStatusClosed {
		return nil, domain.ErrClosedAccount
	}
	unallocated := p.UnallocatedAmount()
	if !unallocated.IsPositive() {
		return nil, domain.ErrAlreadyAllocated
	}

	charges, err := s.transactions.ListUnpaidCharges(ctx, tx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	plan, _ := planAllocations(unallocated, charges)

	result := &AllocationResult{Payment: p, BalanceAfter: a.CurrentBalance}
	if p.IsPosted() && len(plan) == 0 {
		return result, nil
	}

	now := s.now()
	placed := decimal.Zero
	for _, step := range plan {
		alloc := domain.PaymentAllocation{
			ID:            uuid.New(),
			PaymentID:     p.ID,
			TransactionID: step.ChargeID,
			Amount:        step.Amount,
			CreatedAt:     now,
		}
		if err := s.allocations.Create(ctx, tx, &alloc); err != nil {
			return nil, fmt.Errorf("allocate: %w", err)
		}
		result.Allocations = append(result.Allocations, alloc)
		placed = placed.Add(step.Amount)
	}
	p.AllocatedAmount = p.AllocatedAmount.Add(placed)

	if !p.IsPosted() {
		txn, err := s.postPayment(ctx, tx, a, p, actorID, now)
		if err != nil {
			return nil, fmt.Errorf("allocate: %w", err)
		}
		result.Transaction = txn
	} else {
		// No ledger entry for leftover credit, so the replayed balance drifts until RecalculateAndFixBalance.
		balance := floorZero(a.CurrentBalance.Sub(placed))
		if err := s.accounts.UpdateBalance(ctx, tx, a.ID, balance, now); err != nil {
			return nil, fmt.Errorf("allocate: %w", err)
		}
		a.CurrentBalance = balance
	}
	result.BalanceAfter = a.CurrentBalance

	lines := make([]map[string]any, 0, len(result.Allocations))
	for _, alloc := range result.Allocations {
		lines = append(lines, map[string]any{
			"charge_id": alloc.TransactionID,
			"amount":    money(alloc.Amount),
		})
	}
	payload := map[string]any{
		"payment_id":    p.ID,
		"allocated":     money(placed),
		"unallocated":   money(p.UnallocatedAmount()),
		"balance_after": money(result.BalanceAfter),
		"allocations":   lines,
	}
	if err := s.emit(ctx, tx, a.ID, domain.AccountEventPaymentAllocated, actorID, payload, now); err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	return result, nil
}

func (s *Service) postPayment(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount, p *domain.AccountPayment, actorID *uuid.UUID, now time.Time) (*domain.AccountTransaction, error) {
	ref := domain.ReferenceTypePayment
	refID := p.ID.String()
	txn := &domain.AccountTransaction{
		ID:            uuid.New(),
		AccountID:     a.ID,
		Type:          domain.TransactionTypePayment,
		Amount:        p.Amount,
		Description:   fmt.Sprintf("Payment (%s)", p.Method),
		ReferenceType: &ref,
		ReferenceID:   &refID,
		CreatedBy:     actorID,
		CreatedAt:     now,
	}
	if err := s.appendEntry(ctx, tx, a, txn, floorZero(a.CurrentBalance.Sub(p.Amount))); err != nil {
		return nil, err
	}
	if err := s.payments.SetTransaction(ctx, tx, p.ID, txn.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAlreadyAllocated
		}
		return nil, err
	}
	p.TransactionID = &txn.ID
	return txn, nil
}

func (s *Service) recordAllocation(ctx context.Context, r *AllocationResult) {
	s.metrics.PaymentAllocated(len(r.Allocations), r.Payment.UnallocatedAmount())
	if r.Transaction != nil {
		s.metrics.LedgerEntry(r.Transaction.Type, r.Transaction.Amount)
	}
	logging.FromContext(ctx).Info("payment allocated",
		"account_id", r.Payment.AccountID,
		"payment_id", r.Payment.ID,
		"allocations", len(r.Allocations),
		"allocated", money(r.Payment.AllocatedAmount),
		"unallocated", money(r.Payment.UnallocatedAmount()),
		"balance_after", money(r.BalanceAfter),
	)
}
