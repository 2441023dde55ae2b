package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/config"
	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerAccount, error)
	Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.CustomerAccount, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.CustomerAccount, error)
	ListByBusinessAndStatus(ctx context.Context, businessID uuid.UUID, status domain.AccountStatus) ([]domain.CustomerAccount, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal, updatedAt time.Time) error
	CorrectBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance decimal.Decimal, notes string, updatedAt time.Time) error
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.AccountTransaction) error
	Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.AccountTransaction, error)
	ListByAccount(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) ([]domain.AccountTransaction, error)
	ListPage(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.AccountTransaction, int, error)
	ListUnpaidCharges(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) ([]domain.UnpaidCharge, error)
	ListChargesAsOf(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, asOf time.Time) ([]domain.UnpaidCharge, error)
}

type paymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.AccountPayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AccountPayment, error)
	Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.AccountPayment, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.AccountPayment, error)
	SetTransaction(ctx context.Context, tx *sql.Tx, paymentID, transactionID uuid.UUID) error
}

type allocationRepo interface {
	Create(ctx context.Context, tx *sql.Tx, a *domain.PaymentAllocation) error
	ListByPayment(ctx context.Context, tx *sql.Tx, paymentID uuid.UUID) ([]domain.PaymentAllocation, []domain.AccountTransaction, error)
	SumForTransaction(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) (decimal.Decimal, error)
}

type statementRepo interface {
	Create(ctx context.Context, tx *sql.Tx, s *domain.AccountStatement) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AccountStatement, error)
	GetLatest(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (*domain.AccountStatement, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.AccountStatement, error)
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, e *domain.AccountEvent) error
}

type directory interface {
	GetBusiness(ctx context.Context, id uuid.UUID) (*domain.Business, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
}

type userDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type recorder interface {
	LedgerEntry(t domain.TransactionType, amount decimal.Decimal)
	PaymentAllocated(allocations int, unallocated decimal.Decimal)
	BalanceDrift(fixed bool)
	StatementGenerated(ok bool)
}

// snapshotOpts gives read-only operations one consistent view of balance,
// history and allocations.
var snapshotOpts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

type Service struct {
	accounts     accountRepo
	transactions transactionRepo
	payments     paymentRepo
	allocations  allocationRepo
	statements   statementRepo
	events       eventRepo
	directory    directory
	users        userDirectory
	metrics      recorder
	db           *sql.DB
	config       *config.Config
	now          func() time.Time
}

func NewService(
	accounts accountRepo,
	transactions transactionRepo,
	payments paymentRepo,
	allocations allocationRepo,
	statements statementRepo,
	events eventRepo,
	dir directory,
	users userDirectory,
	metrics recorder,
	db *sql.DB,
	cfg *config.Config,
) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		payments:     payments,
		allocations:  allocations,
		statements:   statements,
		events:       events,
		directory:    dir,
		users:        users,
		metrics:      metrics,
		db:           db,
		config:       cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.CustomerAccount, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", notFound(err, domain.ErrAccountNotFound))
	}
	return a, nil
}

func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.AccountTransaction, int, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", err)
	}
	txns, total, err := s.transactions.ListPage(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", err)
	}
	return txns, total, nil
}

// lockAccount opens the per-account critical section for a mutation.
func (s *Service) lockAccount(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (*domain.CustomerAccount, error) {
	a, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return a, nil
}

func (s *Service) emit(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, eventType domain.AccountEventType, actor *uuid.UUID, payload any, now time.Time) error {
	event, err := domain.NewAccountEvent(accountID, eventType, actor, payload, now)
	if err != nil {
		return err
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	return nil
}

// notFound swaps the repository's generic ErrNotFound for a specific sentinel.
func notFound(err, specific error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return specific
	}
	return err
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
