package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/auth"
	"github.com/josh-kwaku/credit-ledger/internal/config"
	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
)

// maxNumberAttempts bounds the account-number collision retry.
const maxNumberAttempts = 10

type CreateAccountRequest struct {
	CustomerID       uuid.UUID
	BusinessID       uuid.UUID
	Name             string
	CreditLimit      decimal.Decimal
	PaymentTermsDays *int
	PIN              *string
	ActorID          *uuid.UUID
}

// UpdateAccountRequest changes only the fields that are set.
type UpdateAccountRequest struct {
	AccountID        uuid.UUID
	Name             *string
	CreditLimit      *decimal.Decimal
	PaymentTermsDays *int
	PIN              *string
	ActorID          *uuid.UUID
}

type AccountService struct {
	accounts  accountRepository
	directory directoryRepository
	events    accountEventRepository
	metrics   transitionRecorder
	db        *sql.DB
	config    *config.Config
}

func NewAccountService(accounts accountRepository, directory directoryRepository, events accountEventRepository, metrics transitionRecorder, db *sql.DB, cfg *config.Config) *AccountService {
	return &AccountService{
		accounts:  accounts,
		directory: directory,
		events:    events,
		metrics:   metrics,
		db:        db,
		config:    cfg,
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.CustomerAccount, error) {
	log := logging.FromContext(ctx)

	business, err := s.directory.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: business: %w", err)
	}
	customer, err := s.directory.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: customer: %w", err)
	}
	if customer.BusinessID != business.ID {
		return nil, fmt.Errorf("CreateAccount: customer belongs to another business: %w", domain.ErrInvalidRequest)
	}

	_, err = s.accounts.GetByCustomerAndBusiness(ctx, customer.ID, business.ID)
	if err == nil {
		return nil, fmt.Errorf("CreateAccount: %w", domain.ErrAccountExists)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("CreateAccount: check existing: %w", err)
	}

	limit := domain.RoundMoney(req.CreditLimit)
	if limit.IsNegative() {
		return nil, fmt.Errorf("CreateAccount: credit limit: %w", domain.ErrInvalidAmount)
	}
	terms := s.config.DefaultPaymentTermsDays
	if req.PaymentTermsDays != nil {
		terms = *req.PaymentTermsDays
	}
	if terms < 0 {
		return nil, fmt.Errorf("CreateAccount: payment terms: %w", domain.ErrInvalidRequest)
	}
	pinHash, err := hashOptionalPIN(req.PIN)
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = customer.Name
	}

	now := time.Now().UTC()
	a := &domain.CustomerAccount{
		ID:               uuid.New(),
		CustomerID:       customer.ID,
		BusinessID:       business.ID,
		Name:             name,
		Status:           domain.AccountStatusPending,
		CreditLimit:      limit,
		CurrentBalance:   decimal.Zero,
		PaymentTermsDays: terms,
		PINHash:          pinHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertWithNextNumber(ctx, tx, a, business.AccountPrefix); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	payload := map[string]any{
		"account_number": a.AccountNumber,
		"customer_id":    a.CustomerID,
		"credit_limit":   a.CreditLimit.StringFixed(2),
	}
	if err := s.writeEvent(ctx, tx, a.ID, domain.AccountEventCreated, req.ActorID, payload, now); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CreateAccount: commit: %w", err)
	}

	s.metrics.AccountTransition(a.Status)
	log.Info("account created",
		"account_id", a.ID,
		"account_number", a.AccountNumber,
		"business_id", a.BusinessID,
		"customer_id", a.CustomerID,
	)
	return a, nil
}

// insertWithNextNumber assigns ACC-<prefix>-<seq> from the per-business count,
// re-counting and moving past the last tried sequence when another writer
// took the number first.
func (s *AccountService) insertWithNextNumber(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount, prefix string) error {
	last := 0
	for range maxNumberAttempts {
		count, err := s.accounts.CountByBusiness(ctx, tx, a.BusinessID)
		if err != nil {
			return fmt.Errorf("insertWithNextNumber: %w", err)
		}
		seq := max(count+1, last+1)
		a.AccountNumber = domain.FormatAccountNumber(prefix, seq)

		err = s.accounts.Create(ctx, tx, a)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrAccountNumberTaken) {
			return fmt.Errorf("insertWithNextNumber: %w", err)
		}
		last = seq
	}
	return fmt.Errorf("insertWithNextNumber: %d attempts: %w", maxNumberAttempts, domain.ErrAccountNumberTaken)
}

func (s *AccountService) ActivateAccount(ctx context.Context, accountID uuid.UUID, actorID *uuid.UUID) (*domain.CustomerAccount, error) {
	a, err := s.transition(ctx, accountID, actorID, domain.AccountEventActivated, "", func(a *domain.CustomerAccount, now time.Time) error {
		return a.Activate(now)
	})
	if err != nil {
		return nil, fmt.Errorf("ActivateAccount: %w", err)
	}
	return a, nil
}

func (s *AccountService) SuspendAccount(ctx context.Context, accountID uuid.UUID, reason string, actorID *uuid.UUID) (*domain.CustomerAccount, error) {
	a, err := s.transition(ctx, accountID, actorID, domain.AccountEventSuspended, reason, func(a *domain.CustomerAccount, now time.Time) error {
		return a.Suspend(now, reason)
	})
	if err != nil {
		return nil, fmt.Errorf("SuspendAccount: %w", err)
	}
	return a, nil
}

func (s *AccountService) CloseAccount(ctx context.Context, accountID uuid.UUID, reason string, actorID *uuid.UUID) (*domain.CustomerAccount, error) {
	a, err := s.transition(ctx, accountID, actorID, domain.AccountEventClosed, reason, func(a *domain.CustomerAccount, now time.Time) error {
		return a.Close(now, reason)
	})
	if err != nil {
		return nil, fmt.Errorf("CloseAccount: %w", err)
	}
	return a, nil
}

// transition applies a lifecycle change under the account row lock, so a
// close cannot race a charge.
func (s *AccountService) transition(ctx context.Context, accountID uuid.UUID, actorID *uuid.UUID, eventType domain.AccountEventType, reason string, apply func(*domain.CustomerAccount, time.Time) error) (*domain.CustomerAccount, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	from := a.Status

	now := time.Now().UTC()
	if err := apply(a, now); err != nil {
		return nil, err
	}
	if err := s.accounts.Update(ctx, tx, a); err != nil {
		return nil, err
	}

	payload := map[string]any{"from": from, "to": a.Status}
	if reason = strings.TrimSpace(reason); reason != "" {
		payload["reason"] = reason
	}
	if err := s.writeEvent(ctx, tx, a.ID, eventType, actorID, payload, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.metrics.AccountTransition(a.Status)
	log.Info("account status changed",
		"account_id", a.ID,
		"from", from,
		"to", a.Status,
	)
	return a, nil
}

// UpdateAccount is allowed in every state, including closed.
func (s *AccountService) UpdateAccount(ctx context.Context, req UpdateAccountRequest) (*domain.CustomerAccount, error) {
	log := logging.FromContext(ctx)

	var pinHash *string
	if req.PIN != nil {
		h, err := hashOptionalPIN(req.PIN)
		if err != nil {
			return nil, fmt.Errorf("UpdateAccount: %w", err)
		}
		pinHash = h
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("UpdateAccount: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.lockAccount(ctx, tx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}

	changed := make([]string, 0, 4)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("UpdateAccount: name: %w", domain.ErrInvalidRequest)
		}
		a.Name = name
		changed = append(changed, "name")
	}
	if req.CreditLimit != nil {
		limit := domain.RoundMoney(*req.CreditLimit)
		if limit.IsNegative() {
			return nil, fmt.Errorf("UpdateAccount: credit limit: %w", domain.ErrInvalidAmount)
		}
		a.CreditLimit = limit
		changed = append(changed, "credit_limit")
	}
	if req.PaymentTermsDays != nil {
		if *req.PaymentTermsDays < 0 {
			return nil, fmt.Errorf("UpdateAccount: payment terms: %w", domain.ErrInvalidRequest)
		}
		a.PaymentTermsDays = *req.PaymentTermsDays
		changed = append(changed, "payment_terms_days")
	}
	if pinHash != nil {
		a.PINHash = pinHash
		changed = append(changed, "pin")
	}
	if len(changed) == 0 {
		return a, nil
	}

	now := time.Now().UTC()
	a.UpdatedAt = now
	if err := s.accounts.Update(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}
	if err := s.writeEvent(ctx, tx, a.ID, domain.AccountEventUpdated, req.ActorID, map[string]any{"fields": changed}, now); err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("UpdateAccount: commit: %w", err)
	}

	log.Info("account updated", "account_id", a.ID, "fields", changed)
	return a, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.CustomerAccount, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetAccount: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

// ListAccounts lists a business's accounts; an empty status lists all of them.
func (s *AccountService) ListAccounts(ctx context.Context, businessID uuid.UUID, status domain.AccountStatus) ([]domain.CustomerAccount, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("ListAccounts: status %q: %w", status, domain.ErrInvalidRequest)
	}
	accounts, err := s.accounts.ListByBusinessAndStatus(ctx, businessID, status)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return accounts, nil
}

// VerifyPIN fails with ErrInvalidPIN on a mismatch or when no PIN is set.
func (s *AccountService) VerifyPIN(ctx context.Context, accountID uuid.UUID, pin string) error {
	a, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("VerifyPIN: %w", err)
	}
	if a.PINHash == nil {
		return fmt.Errorf("VerifyPIN: no pin set: %w", domain.ErrInvalidPIN)
	}
	ok, err := auth.VerifyPIN(*a.PINHash, pin)
	if err != nil {
		return fmt.Errorf("VerifyPIN: %w", err)
	}
	if !ok {
		logging.FromContext(ctx).Warn("pin verification failed", "account_id", a.ID)
		return fmt.Errorf("VerifyPIN: %w", domain.ErrInvalidPIN)
	}
	return nil
}

func (s *AccountService) lockAccount(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (*domain.CustomerAccount, error) {
	a, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AccountService) writeEvent(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, eventType domain.AccountEventType, actorID *uuid.UUID, payload any, now time.Time) error {
	event, err := domain.NewAccountEvent(accountID, eventType, actorID, payload, now)
	if err != nil {
		return err
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("writeEvent %s: %w", eventType, err)
	}
	return nil
}

func hashOptionalPIN(pin *string) (*string, error) {
	if pin == nil {
		return nil, nil
	}
	hash, err := auth.HashPIN(*pin)
	if err != nil {
		if errors.Is(err, auth.ErrPINFormat) {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		return nil, err
	}
	return &hash, nil
}
