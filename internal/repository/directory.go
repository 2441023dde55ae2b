package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

// DirectoryRepository is a read-only view over businesses and customers.
type DirectoryRepository struct {
	db *sql.DB
}

func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GetBusiness(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	var b domain.Business
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, account_prefix, created_at FROM businesses WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.AccountPrefix, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetBusiness: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetBusiness: %w", err)
	}
	return &b, nil
}

func (r *DirectoryRepository) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, account_prefix, created_at FROM businesses ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("ListBusinesses: %w", err)
	}
	defer rows.Close()

	var businesses []domain.Business
	for rows.Next() {
		var b domain.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.AccountPrefix, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListBusinesses: scan: %w", err)
		}
		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListBusinesses: rows: %w", err)
	}
	return businesses, nil
}

func (r *DirectoryRepository) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.QueryRowContext(ctx,
		`SELECT id, business_id, name, email, phone, created_at FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetCustomer: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetCustomer: %w", err)
	}
	return &c, nil
}
