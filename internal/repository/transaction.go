package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

const transactionColumns = `id, account_id, type, amount, balance_after, description,
	reference_type, reference_id, due_date, created_by, created_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.AccountTransaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_transactions (
			id, account_id, type, amount, balance_after, description,
			reference_type, reference_id, due_date, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.AccountID, t.Type, t.Amount, t.BalanceAfter, t.Description,
		t.ReferenceType, t.ReferenceID, t.DueDate, t.CreatedBy, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.AccountTransaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM account_transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return t, nil
}

// ListByAccount returns the full history in creation order.
func (r *TransactionRepository) ListByAccount(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) ([]domain.AccountTransaction, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM account_transactions
		WHERE account_id = $1 ORDER BY created_at, id`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	var txns []domain.AccountTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return txns, nil
}

// ListPage returns the newest entries first, for browsing.
func (r *TransactionRepository) ListPage(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.AccountTransaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_transactions WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListPage: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM account_transactions
		WHERE account_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListPage: %w", err)
	}
	defer rows.Close()

	var txns []domain.AccountTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListPage: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListPage: rows: %w", err)
	}
	return txns, total, nil
}

const chargeWithAllocatedQuery = `SELECT ` + prefixedTransactionColumns + `,
		COALESCE((
			SELECT SUM(pa.amount) FROM payment_allocations pa
			WHERE pa.transaction_id = t.id AND pa.created_at < $3
		), 0) AS allocated
	FROM account_transactions t
	WHERE t.account_id = $1 AND t.type = $2 AND t.created_at < $3`

const prefixedTransactionColumns = `t.id, t.account_id, t.type, t.amount, t.balance_after,
	t.description, t.reference_type, t.reference_id, t.due_date, t.created_by, t.created_at`

// ListUnpaidCharges returns charges with a positive unpaid remainder, oldest
// first (created_at, then id). FIFO allocation depends on this order.
func (r *TransactionRepository) ListUnpaidCharges(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) ([]domain.UnpaidCharge, error) {
	return r.queryCharges(ctx, tx, "ListUnpaidCharges",
		`SELECT * FROM (`+chargeWithAllocatedQuery+`) c
		WHERE c.amount - c.allocated > 0 ORDER BY c.created_at, c.id`,
		accountID, domain.TransactionTypeCharge, farFuture,
	)
}

// ListChargesAsOf returns every charge created before asOf together with the
// allocations made before asOf, oldest first.
func (r *TransactionRepository) ListChargesAsOf(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, asOf time.Time) ([]domain.UnpaidCharge, error) {
	return r.queryCharges(ctx, tx, "ListChargesAsOf",
		chargeWithAllocatedQuery+` ORDER BY t.created_at, t.id`,
		accountID, domain.TransactionTypeCharge, asOf,
	)
}

var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

func (r *TransactionRepository) queryCharges(ctx context.Context, tx *sql.Tx, op, query string, args ...any) ([]domain.UnpaidCharge, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var charges []domain.UnpaidCharge
	for rows.Next() {
		var c domain.UnpaidCharge
		t := &c.Charge
		err := rows.Scan(
			&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description,
			&t.ReferenceType, &t.ReferenceID, &t.DueDate, &t.CreatedBy, &t.CreatedAt,
			&c.Allocated,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return charges, nil
}

func scanTransaction(s scanner) (*domain.AccountTransaction, error) {
	var t domain.AccountTransaction
	err := s.Scan(
		&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description,
		&t.ReferenceType, &t.ReferenceID, &t.DueDate, &t.CreatedBy, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
