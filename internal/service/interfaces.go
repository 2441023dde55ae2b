package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

type accountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerAccount, error)
	GetByCustomerAndBusiness(ctx context.Context, customerID, businessID uuid.UUID) (*domain.CustomerAccount, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.CustomerAccount, error)
	ListByBusinessAndStatus(ctx context.Context, businessID uuid.UUID, status domain.AccountStatus) ([]domain.CustomerAccount, error)
	CountByBusiness(ctx context.Context, tx *sql.Tx, businessID uuid.UUID) (int, error)
	Create(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount) error
	Update(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount) error
}

type directoryRepository interface {
	GetBusiness(ctx context.Context, id uuid.UUID) (*domain.Business, error)
	ListBusinesses(ctx context.Context) ([]domain.Business, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
}

type accountEventRepository interface {
	Create(ctx context.Context, tx *sql.Tx, e *domain.AccountEvent) error
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.AccountEvent, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.AccountEventStatus) error
}

type transitionRecorder interface {
	AccountTransition(to domain.AccountStatus)
}
