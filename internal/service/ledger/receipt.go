package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

// GetPaymentReceipt assembles the structured receipt for a payment. Names that
// cannot be resolved are left empty. Ledger figures come from one snapshot.
func (s *Service) GetPaymentReceipt(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentReceipt, error) {
	tx, err := s.db.BeginTx(ctx, snapshotOpts)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentReceipt: begin tx: %w", err)
	}
	defer tx.Rollback()

	p, err := s.payments.Get(ctx, tx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentReceipt: %w", notFound(err, domain.ErrPaymentNotFound))
	}

	a, err := s.accounts.Get(ctx, tx, p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentReceipt: %w", notFound(err, domain.ErrAccountNotFound))
	}

	receipt := &domain.PaymentReceipt{
		Payment:       *p,
		AccountNumber: a.AccountNumber,
		BalanceAfter:  a.CurrentBalance,
	}

	customerName, businessName, err := s.resolveNames(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentReceipt: %w", err)
	}
	receipt.CustomerName, receipt.BusinessName = customerName, businessName

	if p.ReceivedBy != nil {
		u, err := s.users.GetByID(ctx, *p.ReceivedBy)
		switch {
		case err == nil:
			receipt.ReceivedByName = u.Name
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("GetPaymentReceipt: %w", err)
		}
	}

	if p.TransactionID != nil {
		txn, err := s.transactions.Get(ctx, tx, *p.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("GetPaymentReceipt: %w", err)
		}
		receipt.BalanceAfter = txn.BalanceAfter
	}

	allocations, charges, err := s.allocations.ListByPayment(ctx, tx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentReceipt: %w", err)
	}
	for i, alloc := range allocations {
		charge := charges[i]
		paid, err := s.allocations.SumForTransaction(ctx, tx, charge.ID)
		if err != nil {
			return nil, fmt.Errorf("GetPaymentReceipt: %w", err)
		}
		receipt.Lines = append(receipt.Lines, domain.ReceiptLine{
			ChargeID:          charge.ID,
			ChargeDescription: charge.Description,
			ChargeDate:        charge.CreatedAt,
			ChargeAmount:      charge.Amount,
			Amount:            alloc.Amount,
			ChargeRemaining:   charge.Amount.Sub(paid),
		})
	}
	return receipt, nil
}

func (s *Service) resolveNames(ctx context.Context, a *domain.CustomerAccount) (string, string, error) {
	var customerName, businessName string

	c, err := s.directory.GetCustomer(ctx, a.CustomerID)
	switch {
	case err == nil:
		customerName = c.Name
	case !errors.Is(err, domain.ErrNotFound):
		return "", "", fmt.Errorf("resolveNames: %w", err)
	}

	b, err := s.directory.GetBusiness(ctx, a.BusinessID)
	switch {
	case err == nil:
		businessName = b.Name
	case !errors.Is(err, domain.ErrNotFound):
		return "", "", fmt.Errorf("resolveNames: %w", err)
	}
	return customerName, businessName, nil
}
