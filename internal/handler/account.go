package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/auth"
	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
	"github.com/josh-kwaku/credit-ledger/internal/service"
)

type accountService interface {
	CreateAccount(ctx context.Context, req service.CreateAccountRequest) (*domain.CustomerAccount, error)
	ActivateAccount(ctx context.Context, accountID uuid.UUID, actorID *uuid.UUID) (*domain.CustomerAccount, error)
	SuspendAccount(ctx context.Context, accountID uuid.UUID, reason string, actorID *uuid.UUID) (*domain.CustomerAccount, error)
	CloseAccount(ctx context.Context, accountID uuid.UUID, reason string, actorID *uuid.UUID) (*domain.CustomerAccount, error)
	UpdateAccount(ctx context.Context, req service.UpdateAccountRequest) (*domain.CustomerAccount, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.CustomerAccount, error)
	ListAccounts(ctx context.Context, businessID uuid.UUID, status domain.AccountStatus) ([]domain.CustomerAccount, error)
	VerifyPIN(ctx context.Context, accountID uuid.UUID, pin string) error
}

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type createAccountRequest struct {
	CustomerID       uuid.UUID       `json:"customer_id"`
	BusinessID       uuid.UUID       `json:"business_id"`
	Name             string          `json:"name"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	PaymentTermsDays *int            `json:"payment_terms_days"`
	PIN              *string         `json:"pin"`
}

func (r createAccountRequest) Validate() []FieldError {
	var errs []FieldError
	if r.CustomerID == uuid.Nil {
		errs = append(errs, FieldError{Field: "customer_id", Message: "required"})
	}
	if r.BusinessID == uuid.Nil {
		errs = append(errs, FieldError{Field: "business_id", Message: "required"})
	}
	if r.CreditLimit.IsNegative() {
		errs = append(errs, FieldError{Field: "credit_limit", Message: "must not be negative"})
	}
	if r.PaymentTermsDays != nil && *r.PaymentTermsDays < 0 {
		errs = append(errs, FieldError{Field: "payment_terms_days", Message: "must not be negative"})
	}
	return errs
}

type updateAccountRequest struct {
	Name             *string          `json:"name"`
	CreditLimit      *decimal.Decimal `json:"credit_limit"`
	PaymentTermsDays *int             `json:"payment_terms_days"`
	PIN              *string          `json:"pin"`
}

func (r updateAccountRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "must not be blank"})
	}
	if r.CreditLimit != nil && r.CreditLimit.IsNegative() {
		errs = append(errs, FieldError{Field: "credit_limit", Message: "must not be negative"})
	}
	if r.PaymentTermsDays != nil && *r.PaymentTermsDays < 0 {
		errs = append(errs, FieldError{Field: "payment_terms_days", Message: "must not be negative"})
	}
	return errs
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type verifyPINRequest struct {
	PIN string `json:"pin"`
}

type accountDTO struct {
	ID               uuid.UUID  `json:"id"`
	AccountNumber    string     `json:"account_number"`
	CustomerID       uuid.UUID  `json:"customer_id"`
	BusinessID       uuid.UUID  `json:"business_id"`
	Name             string     `json:"name"`
	Status           string     `json:"status"`
	CreditLimit      string     `json:"credit_limit"`
	CurrentBalance   string     `json:"current_balance"`
	AvailableCredit  string     `json:"available_credit"`
	PaymentTermsDays int        `json:"payment_terms_days"`
	HasPIN           bool       `json:"has_pin"`
	Notes            string     `json:"notes,omitempty"`
	OpenedAt         *time.Time `json:"opened_at"`
	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toAccountDTO(a *domain.CustomerAccount) accountDTO {
	return accountDTO{
		ID:               a.ID,
		AccountNumber:    a.AccountNumber,
		CustomerID:       a.CustomerID,
		BusinessID:       a.BusinessID,
		Name:             a.Name,
		Status:           string(a.Status),
		CreditLimit:      money(a.CreditLimit),
		CurrentBalance:   money(a.CurrentBalance),
		AvailableCredit:  money(a.AvailableCredit()),
		PaymentTermsDays: a.PaymentTermsDays,
		HasPIN:           a.PINHash != nil,
		Notes:            a.Notes,
		OpenedAt:         a.OpenedAt,
		SuspendedAt:      a.SuspendedAt,
		ClosedAt:         a.ClosedAt,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	if !inBusinessScope(r, req.BusinessID) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), service.CreateAccountRequest{
		CustomerID:       req.CustomerID,
		BusinessID:       req.BusinessID,
		Name:             req.Name,
		CreditLimit:      req.CreditLimit,
		PaymentTermsDays: req.PaymentTermsDays,
		PIN:              req.PIN,
		ActorID:          auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("account creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/accounts/"+account.ID.String())
	RespondSuccess(w, http.StatusCreated, toAccountDTO(account))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if !inBusinessScope(r, businessID) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	status := domain.AccountStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		RespondValidationError(w, []FieldError{{Field: "status", Message: "must be pending, active, suspended, or closed"}})
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), businessID, status)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list accounts", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]accountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := h.scopedAccount(w, r)
	if !ok {
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	account, ok := h.scopedAccount(w, r)
	if !ok {
		return
	}

	var req updateAccountRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	updated, err := h.accounts.UpdateAccount(r.Context(), service.UpdateAccountRequest{
		AccountID:        account.ID,
		Name:             req.Name,
		CreditLimit:      req.CreditLimit,
		PaymentTermsDays: req.PaymentTermsDays,
		PIN:              req.PIN,
		ActorID:          auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("account update failed", "error", err, "account_id", account.ID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(updated))
}

func (h *AccountHandler) Activate(w http.ResponseWriter, r *http.Request) {
	account, ok := h.scopedAccount(w, r)
	if !ok {
		return
	}

	updated, err := h.accounts.ActivateAccount(r.Context(), account.ID, auth.ActorFromContext(r.Context()))
	h.respondTransition(w, r, updated, err)
}

func (h *AccountHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	account, ok := h.scopedAccount(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	updated, err := h.accounts.SuspendAccount(r.Context(), account.ID, req.Reason, auth.ActorFromContext(r.Context()))
	h.respondTransition(w, r, updated, err)
}

func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	account, ok := h.scopedAccount(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	updated, err := h.accounts.CloseAccount(r.Context(), account.ID, req.Reason, auth.ActorFromContext(r.Context()))
	h.respondTransition(w, r, updated, err)
}

func (h *AccountHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	account, ok := h.scopedAccount(w, r)
	if !ok {
		return
	}
	var req verifyPINRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if req.PIN == "" {
		RespondValidationError(w, []FieldError{{Field: "pin", Message: "required"}})
		return
	}

	if err := h.accounts.VerifyPIN(r.Context(), account.ID, req.PIN); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]bool{"verified": true})
}

func (h *AccountHandler) respondTransition(w http.ResponseWriter, r *http.Request, account *domain.CustomerAccount, err error) {
	if err != nil {
		logging.FromContext(r.Context()).Warn("account transition failed", "error", err, "path", r.URL.Path)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

// scopedAccount loads the account named in the path and hides accounts of
// other businesses behind a not-found.
func (h *AccountHandler) scopedAccount(w http.ResponseWriter, r *http.Request) (*domain.CustomerAccount, bool) {
	return loadScopedAccount(w, r, h.accounts.GetAccount)
}

func loadScopedAccount(w http.ResponseWriter, r *http.Request, get func(context.Context, uuid.UUID) (*domain.CustomerAccount, error)) (*domain.CustomerAccount, bool) {
	accountID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, ErrAccountNotFound, nil)
		return nil, false
	}
	account, err := get(r.Context(), accountID)
	if err != nil {
		RespondDomainError(w, err)
		return nil, false
	}
	if !inBusinessScope(r, account.BusinessID) {
		RespondAppError(w, ErrAccountNotFound, nil)
		return nil, false
	}
	return account, true
}
