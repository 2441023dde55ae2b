package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

// allocated_amount is derived from payment_allocations, never stored.
const paymentSelect = `SELECT p.id, p.account_id, p.amount, p.method, p.reference_number,
		p.notes, p.received_by, p.transaction_id, p.received_at, p.created_at,
		COALESCE((SELECT SUM(pa.amount) FROM payment_allocations pa WHERE pa.payment_id = p.id), 0)
	FROM account_payments p`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.AccountPayment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_payments (
			id, account_id, amount, method, reference_number, notes,
			received_by, transaction_id, received_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.AccountID, p.Amount, p.Method, p.ReferenceNumber, p.Notes,
		p.ReceivedBy, p.TransactionID, p.ReceivedAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AccountPayment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, paymentSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

// Get reads the payment and its allocated total inside tx.
func (r *PaymentRepository) Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.AccountPayment, error) {
	p, err := scanPayment(tx.QueryRowContext(ctx, paymentSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.AccountPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		paymentSelect+` WHERE p.account_id = $1 ORDER BY p.created_at, p.id`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	var payments []domain.AccountPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return payments, nil
}

func (r *PaymentRepository) SetTransaction(ctx context.Context, tx *sql.Tx, paymentID, transactionID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE account_payments SET transaction_id = $1 WHERE id = $2 AND transaction_id IS NULL`,
		transactionID, paymentID,
	)
	if err != nil {
		return fmt.Errorf("SetTransaction: %w", err)
	}
	return expectOneRow(res, "SetTransaction")
}

func scanPayment(s scanner) (*domain.AccountPayment, error) {
	var p domain.AccountPayment
	err := s.Scan(
		&p.ID, &p.AccountID, &p.Amount, &p.Method, &p.ReferenceNumber,
		&p.Notes, &p.ReceivedBy, &p.TransactionID, &p.ReceivedAt, &p.CreatedAt,
		&p.AllocatedAmount,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
