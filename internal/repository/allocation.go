package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

type AllocationRepository struct {
	db *sql.DB
}

func NewAllocationRepository(db *sql.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func (r *AllocationRepository) Create(ctx context.Context, tx *sql.Tx, a *domain.PaymentAllocation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_allocations (id, payment_id, transaction_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.PaymentID, a.TransactionID, a.Amount, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ListByPayment returns the payment's allocations joined to the charges
// they settled, in allocation order.
func (r *AllocationRepository) ListByPayment(ctx context.Context, tx *sql.Tx, paymentID uuid.UUID) ([]domain.PaymentAllocation, []domain.AccountTransaction, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT pa.id, pa.payment_id, pa.transaction_id, pa.amount, pa.created_at,
			`+prefixedTransactionColumns+`
		FROM payment_allocations pa
		JOIN account_transactions t ON t.id = pa.transaction_id
		WHERE pa.payment_id = $1
		ORDER BY t.created_at, t.id`, paymentID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("ListByPayment: %w", err)
	}
	defer rows.Close()

	var (
		allocations []domain.PaymentAllocation
		charges     []domain.AccountTransaction
	)
	for rows.Next() {
		var (
			a domain.PaymentAllocation
			t domain.AccountTransaction
		)
		err := rows.Scan(
			&a.ID, &a.PaymentID, &a.TransactionID, &a.Amount, &a.CreatedAt,
			&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description,
			&t.ReferenceType, &t.ReferenceID, &t.DueDate, &t.CreatedBy, &t.CreatedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("ListByPayment: scan: %w", err)
		}
		allocations = append(allocations, a)
		charges = append(charges, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("ListByPayment: rows: %w", err)
	}
	return allocations, charges, nil
}

func (r *AllocationRepository) SumForTransaction(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payment_allocations WHERE transaction_id = $1`,
		transactionID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumForTransaction: %w", err)
	}
	return total, nil
}
