package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

const statementColumns = `id, account_id, period_start, period_end, opening_balance,
	total_charges, total_payments, closing_balance, aging_current, aging_30,
	aging_60, aging_90_plus, created_by, created_at`

const constraintStatementPeriod = "account_statements_period_key"

type StatementRepository struct {
	db *sql.DB
}

func NewStatementRepository(db *sql.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

func (r *StatementRepository) Create(ctx context.Context, tx *sql.Tx, s *domain.AccountStatement) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_statements (
			id, account_id, period_start, period_end, opening_balance,
			total_charges, total_payments, closing_balance, aging_current, aging_30,
			aging_60, aging_90_plus, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.AccountID, s.PeriodStart, s.PeriodEnd, s.OpeningBalance,
		s.TotalCharges, s.TotalPayments, s.ClosingBalance, s.Aging.Current, s.Aging.Days30,
		s.Aging.Days60, s.Aging.Days90Plus, s.CreatedBy, s.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok && constraint == constraintStatementPeriod {
			return fmt.Errorf("Create: %w", domain.ErrStatementExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *StatementRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AccountStatement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+statementColumns+` FROM account_statements WHERE id = $1`, id,
	)
	s, err := scanStatement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return s, nil
}

// GetLatest returns the statement with the latest period end for the account.
func (r *StatementRepository) GetLatest(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (*domain.AccountStatement, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+statementColumns+` FROM account_statements
		WHERE account_id = $1 ORDER BY period_end DESC, created_at DESC LIMIT 1`, accountID,
	)
	s, err := scanStatement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetLatest: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetLatest: %w", err)
	}
	return s, nil
}

func (r *StatementRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.AccountStatement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+statementColumns+` FROM account_statements
		WHERE account_id = $1 ORDER BY period_end DESC`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	var statements []domain.AccountStatement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		statements = append(statements, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return statements, nil
}

func scanStatement(s scanner) (*domain.AccountStatement, error) {
	var st domain.AccountStatement
	err := s.Scan(
		&st.ID, &st.AccountID, &st.PeriodStart, &st.PeriodEnd, &st.OpeningBalance,
		&st.TotalCharges, &st.TotalPayments, &st.ClosingBalance, &st.Aging.Current, &st.Aging.Days30,
		&st.Aging.Days60, &st.Aging.Days90Plus, &st.CreatedBy, &st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.PeriodStart = st.PeriodStart.UTC()
	st.PeriodEnd = st.PeriodEnd.UTC()
	return &st, nil
}
