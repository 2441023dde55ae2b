package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

const accountColumns = `id, account_number, customer_id, business_id, name, status,
	credit_limit, current_balance, payment_terms_days, pin_hash, notes,
	opened_at, suspended_at, closed_at, created_at, updated_at`

const (
	constraintAccountNumber    = "customer_accounts_account_number_key"
	constraintCustomerBusiness = "customer_accounts_customer_business_key"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM customer_accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByCustomerAndBusiness(ctx context.Context, customerID, businessID uuid.UUID) (*domain.CustomerAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM customer_accounts
		WHERE customer_id = $1 AND business_id = $2`,
		customerID, businessID,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByCustomerAndBusiness: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByCustomerAndBusiness: %w", err)
	}
	return a, nil
}

// Get reads the account inside tx without locking it.
func (r *AccountRepository) Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.CustomerAccount, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM customer_accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

// GetForUpdate locks the account row for the rest of tx. Every mutating
// ledger operation goes through it, which serializes writers per account.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.CustomerAccount, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM customer_accounts WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) ListByBusinessAndStatus(ctx context.Context, businessID uuid.UUID, status domain.AccountStatus) ([]domain.CustomerAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM customer_accounts
		WHERE business_id = $1 AND ($2 = '' OR status = $2) ORDER BY account_number`,
		businessID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("ListByBusinessAndStatus: %w", err)
	}
	defer rows.Close()

	var accounts []domain.CustomerAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByBusinessAndStatus: scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByBusinessAndStatus: rows: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) CountByBusiness(ctx context.Context, tx *sql.Tx, businessID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customer_accounts WHERE business_id = $1`, businessID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountByBusiness: %w", err)
	}
	return n, nil
}

// Create inserts under a savepoint so a duplicate account number can be
// retried within the same tx.
func (r *AccountRepository) Create(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount) error {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT create_account`); err != nil {
		return fmt.Errorf("Create: savepoint: %w", err)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO customer_accounts (
			id, account_number, customer_id, business_id, name, status,
			credit_limit, current_balance, payment_terms_days, pin_hash, notes,
			opened_at, suspended_at, closed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, a.AccountNumber, a.CustomerID, a.BusinessID, a.Name, a.Status,
		a.CreditLimit, a.CurrentBalance, a.PaymentTermsDays, a.PINHash, a.Notes,
		a.OpenedAt, a.SuspendedAt, a.ClosedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT create_account`); rbErr != nil {
			return fmt.Errorf("Create: rollback to savepoint: %w", rbErr)
		}
		if constraint, ok := uniqueConstraint(err); ok {
			switch constraint {
			case constraintAccountNumber:
				return fmt.Errorf("Create: %s: %w", a.AccountNumber, domain.ErrAccountNumberTaken)
			case constraintCustomerBusiness:
				return fmt.Errorf("Create: %w", domain.ErrAccountExists)
			}
		}
		return fmt.Errorf("Create: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT create_account`); err != nil {
		return fmt.Errorf("Create: release savepoint: %w", err)
	}
	return nil
}

// Update writes the mutable profile and lifecycle fields. The balance is
// written only through UpdateBalance.
func (r *AccountRepository) Update(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE customer_accounts SET
			name = $1, status = $2, credit_limit = $3, payment_terms_days = $4,
			pin_hash = $5, notes = $6, opened_at = $7, suspended_at = $8,
			closed_at = $9, updated_at = $10
		WHERE id = $11`,
		a.Name, a.Status, a.CreditLimit, a.PaymentTermsDays,
		a.PINHash, a.Notes, a.OpenedAt, a.SuspendedAt,
		a.ClosedAt, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return expectOneRow(res, "Update")
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal, updatedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE customer_accounts SET current_balance = $1, updated_at = $2 WHERE id = $3`,
		balance, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}
	return expectOneRow(res, "UpdateBalance")
}

// CorrectBalance overwrites the stored balance and notes together, used by
// the reconciler.
func (r *AccountRepository) CorrectBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal, notes string, updatedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE customer_accounts SET current_balance = $1, notes = $2, updated_at = $3 WHERE id = $4`,
		balance, notes, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("CorrectBalance: %w", err)
	}
	return expectOneRow(res, "CorrectBalance")
}

func expectOneRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

func scanAccount(s scanner) (*domain.CustomerAccount, error) {
	var a domain.CustomerAccount
	err := s.Scan(
		&a.ID, &a.AccountNumber, &a.CustomerID, &a.BusinessID, &a.Name, &a.Status,
		&a.CreditLimit, &a.CurrentBalance, &a.PaymentTermsDays, &a.PINHash, &a.Notes,
		&a.OpenedAt, &a.SuspendedAt, &a.ClosedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
