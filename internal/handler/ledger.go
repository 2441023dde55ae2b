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
	"github.com/josh-kwaku/credit-ledger/internal/service/ledger"
)

type ledgerService interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.CustomerAccount, error)
	ValidateCredit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*domain.CreditCheck, error)
	ChargeToAccount(ctx context.Context, req ledger.ChargeRequest) (*domain.AccountTransaction, error)
	AdjustBalance(ctx context.Context, req ledger.AdjustmentRequest) (*domain.AccountTransaction, error)
	WriteOff(ctx context.Context, req ledger.AdjustmentRequest) (*domain.AccountTransaction, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.AccountTransaction, int, error)
	RecordPayment(ctx context.Context, req ledger.PaymentRequest) (*domain.AccountPayment, error)
	AllocatePayment(ctx context.Context, paymentID uuid.UUID, actorID *uuid.UUID) (*ledger.AllocationResult, error)
	ProcessPayment(ctx context.Context, req ledger.PaymentRequest) (*ledger.AllocationResult, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.AccountPayment, error)
	ListPayments(ctx context.Context, accountID uuid.UUID) ([]domain.AccountPayment, error)
	GetPaymentReceipt(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentReceipt, error)
}

type LedgerHandler struct {
	ledger ledgerService
}

func NewLedgerHandler(l ledgerService) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type creditCheckRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type chargeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	ReferenceType *string         `json:"reference_type"`
	ReferenceID   *string         `json:"reference_id"`
	DueDate       string          `json:"due_date"`
}

func (r chargeRequest) Validate() []FieldError {
	var errs []FieldError
	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if strings.TrimSpace(r.Description) == "" {
		errs = append(errs, FieldError{Field: "description", Message: "required"})
	}
	if r.ReferenceType != nil && !domain.ReferenceType(*r.ReferenceType).IsValid() {
		errs = append(errs, FieldError{Field: "reference_type", Message: "must be order, invoice, or payment"})
	}
	if _, ok := parseDate(r.DueDate); !ok {
		errs = append(errs, FieldError{Field: "due_date", Message: "must be YYYY-MM-DD"})
	}
	return errs
}

type adjustmentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (r adjustmentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Amount.IsZero() {
		errs = append(errs, FieldError{Field: "amount", Message: "must not be zero"})
	}
	if strings.TrimSpace(r.Reason) == "" {
		errs = append(errs, FieldError{Field: "reason", Message: "required"})
	}
	return errs
}

type paymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	ReferenceNumber *string         `json:"reference_number"`
	Notes           *string         `json:"notes"`
	// Allocate defaults to true; false records the payment for later allocation.
	Allocate *bool `json:"allocate"`
}

func (r paymentRequest) Validate() []FieldError {
	var errs []FieldError
	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if strings.TrimSpace(r.Method) == "" {
		errs = append(errs, FieldError{Field: "method", Message: "required"})
	}
	return errs
}

type creditCheckDTO struct {
	Valid           bool   `json:"valid"`
	AvailableCredit string `json:"available_credit"`
	Message         string `json:"message,omitempty"`
}

type transactionDTO struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Type          string     `json:"type"`
	Amount        string     `json:"amount"`
	BalanceAfter  string     `json:"balance_after"`
	Description   string     `json:"description"`
	ReferenceType *string    `json:"reference_type,omitempty"`
	ReferenceID   *string    `json:"reference_id,omitempty"`
	DueDate       *string    `json:"due_date,omitempty"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toTransactionDTO(t *domain.AccountTransaction) transactionDTO {
	dto := transactionDTO{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Type:         string(t.Type),
		Amount:       money(t.Amount),
		BalanceAfter: money(t.BalanceAfter),
		Description:  t.Description,
		ReferenceID:  t.ReferenceID,
		CreatedBy:    t.CreatedBy,
		CreatedAt:    t.CreatedAt,
	}
	if t.ReferenceType != nil {
		rt := string(*t.ReferenceType)
		dto.ReferenceType = &rt
	}
	if t.DueDate != nil {
		d := t.DueDate.Format(dateLayout)
		dto.DueDate = &d
	}
	return dto
}

type transactionPageDTO struct {
	Transactions []transactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
}

type paymentDTO struct {
	ID                uuid.UUID  `json:"id"`
	AccountID         uuid.UUID  `json:"account_id"`
	Amount            string     `json:"amount"`
	AllocatedAmount   string     `json:"allocated_amount"`
	UnallocatedAmount string     `json:"unallocated_amount"`
	Method            string     `json:"method"`
	ReferenceNumber   *string    `json:"reference_number,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	ReceivedBy        *uuid.UUID `json:"received_by,omitempty"`
	TransactionID     *uuid.UUID `json:"transaction_id"`
	ReceivedAt        time.Time  `json:"received_at"`
}

func toPaymentDTO(p *domain.AccountPayment) paymentDTO {
	return paymentDTO{
		ID:                p.ID,
		AccountID:         p.AccountID,
		Amount:            money(p.Amount),
		AllocatedAmount:   money(p.AllocatedAmount),
		UnallocatedAmount: money(p.UnallocatedAmount()),
		Method:            p.Method,
		ReferenceNumber:   p.ReferenceNumber,
		Notes:             p.Notes,
		ReceivedBy:        p.ReceivedBy,
		TransactionID:     p.TransactionID,
		ReceivedAt:        p.ReceivedAt,
	}
}

type allocationDTO struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        string    `json:"amount"`
}

type allocationResultDTO struct {
	Payment      paymentDTO      `json:"payment"`
	Allocations  []allocationDTO `json:"allocations"`
	Transaction  *transactionDTO `json:"transaction,omitempty"`
	BalanceAfter string          `json:"balance_after"`
}

func toAllocationResultDTO(res *ledger.AllocationResult) allocationResultDTO {
	dto := allocationResultDTO{
		Payment:      toPaymentDTO(res.Payment),
		Allocations:  make([]allocationDTO, len(res.Allocations)),
		BalanceAfter: money(res.BalanceAfter),
	}
	for i, a := range res.Allocations {
		dto.Allocations[i] = allocationDTO{ID: a.ID, TransactionID: a.TransactionID, Amount: money(a.Amount)}
	}
	if res.Transaction != nil {
		t := toTransactionDTO(res.Transaction)
		dto.Transaction = &t
	}
	return dto
}

type receiptLineDTO struct {
	ChargeID          uuid.UUID `json:"charge_id"`
	ChargeDescription string    `json:"charge_description"`
	ChargeDate        time.Time `json:"charge_date"`
	ChargeAmount      string    `json:"charge_amount"`
	Amount            string    `json:"amount"`
	ChargeRemaining   string    `json:"charge_remaining"`
}

type receiptDTO struct {
	Payment        paymentDTO       `json:"payment"`
	AccountNumber  string           `json:"account_number"`
	CustomerName   string           `json:"customer_name"`
	BusinessName   string           `json:"business_name"`
	ReceivedByName string           `json:"received_by_name,omitempty"`
	Lines          []receiptLineDTO `json:"lines"`
	BalanceAfter   string           `json:"balance_after"`
}

func toReceiptDTO(rc *domain.PaymentReceipt) receiptDTO {
	dto := receiptDTO{
		Payment:        toPaymentDTO(&rc.Payment),
		AccountNumber:  rc.AccountNumber,
		CustomerName:   rc.CustomerName,
		BusinessName:   rc.BusinessName,
		ReceivedByName: rc.ReceivedByName,
		Lines:          make([]receiptLineDTO, len(rc.Lines)),
		BalanceAfter:   money(rc.BalanceAfter),
	}
	for i, l := range rc.Lines {
		dto.Lines[i] = receiptLineDTO{
			ChargeID:          l.ChargeID,
			ChargeDescription: l.ChargeDescription,
			ChargeDate:        l.ChargeDate,
			ChargeAmount:      money(l.ChargeAmount),
			Amount:            money(l.Amount),
			ChargeRemaining:   money(l.ChargeRemaining),
		}
	}
	return dto
}

func (h *LedgerHandler) CheckCredit(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.ledger.GetAccount)
	if !ok {
		return
	}
	var req creditCheckRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	check, err := h.ledger.ValidateCredit(r.Context(), account.ID, req.Amount)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, creditCheckDTO{
		Valid:           check.Valid,
		AvailableCredit: money(check.AvailableCredit),
		Message:         check.Message,
	})
}

func (h *LedgerHandler) Charge(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.ledger.GetAccount)
	if !ok {
		return
	}
	var req chargeRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	due, _ := parseDate(req.DueDate)
	charge := ledger.ChargeRequest{
		AccountID:   account.ID,
		Amount:      req.Amount,
		Description: req.Description,
		ReferenceID: req.ReferenceID,
		DueDate:     due,
		ActorID:     auth.ActorFromContext(r.Context()),
	}
	if req.ReferenceType != nil {
		rt := domain.ReferenceType(*req.ReferenceType)
		charge.ReferenceType = &rt
	}

	txn, err := h.ledger.ChargeToAccount(r.Context(), charge)
	if err != nil {
		logging.FromContext(r.Context()).Warn("charge rejected", "error", err, "account_id", account.ID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}

func (h *LedgerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	h.correct(w, r, h.ledger.AdjustBalance)
}

func (h *LedgerHandler) WriteOff(w http.ResponseWriter, r *http.Request) {
	h.correct(w, r, h.ledger.WriteOff)
}

func (h *LedgerHandler) correct(w http.ResponseWriter, r *http.Request, apply func(context.Context, ledger.AdjustmentRequest) (*domain.AccountTransaction, error)) {
	account, ok := loadScopedAccount(w, r, h.ledger.GetAccount)
	if !ok {
		return
	}
	var req adjustmentRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, err := apply(r.Context(), ledger.AdjustmentRequest{
		AccountID: account.ID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		ActorID:   auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("balance correction rejected", "error", err, "account_id", account.ID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}

func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.ledger.GetAccount)
	if !ok {
		return
	}
	limit, okLimit := queryInt(r, "limit", defaultPageSize)
	offset, okOffset := queryInt(r, "offset", 0)
	if !okLimit || !okOffset || limit == 0 {
		RespondValidationError(w, []FieldError{{Field: "limit", Message: "limit and offset must be non-negative integers, limit at least 1"}})
		return
	}
	limit = min(limit, maxPageSize)

	txns, total, err := h.ledger.ListTransactions(r.Context(), account.ID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list transactions", "error", err)
		RespondDomainError(w, err)
		return
	}

	page := transactionPageDTO{
		Transactions: make([]transactionDTO, len(txns)),
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	}
	for i := range txns {
		page.Transactions[i] = toTransactionDTO(&txns[i])
	}
	RespondSuccess(w, http.StatusOK, page)
}

func (h *LedgerHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.ledger.GetAccount)
	if !ok {
		return
	}
	var req paymentRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	payment := ledger.PaymentRequest{
		AccountID:       account.ID,
		Amount:          req.Amount,
		Method:          req.Method,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		ActorID:         auth.ActorFromContext(r.Context()),
	}

	if req.Allocate != nil && !*req.Allocate {
		p, err := h.ledger.RecordPayment(r.Context(), payment)
		if err != nil {
			logging.FromContext(r.Context()).Warn("payment rejected", "error", err, "account_id", account.ID)
			RespondDomainError(w, err)
			return
		}
		w.Header().Set("Location", "/api/v1/payments/"+p.ID.String())
		RespondSuccess(w, http.StatusCreated, toPaymentDTO(p))
		return
	}

	res, err := h.ledger.ProcessPayment(r.Context(), payment)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment rejected", "error", err, "account_id", account.ID)
		RespondDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/payments/"+res.Payment.ID.String())
	RespondSuccess(w, http.StatusCreated, toAllocationResultDTO(res))
}

func (h *LedgerHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.ledger.GetAccount)
	if !ok {
		return
	}

	payments, err := h.ledger.ListPayments(r.Context(), account.ID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list payments", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]paymentDTO, len(payments))
	for i := range payments {
		dtos[i] = toPaymentDTO(&payments[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *LedgerHandler) AllocatePayment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.scopedPayment(w, r)
	if !ok {
		return
	}

	res, err := h.ledger.AllocatePayment(r.Context(), p.ID, auth.ActorFromContext(r.Context()))
	if err != nil {
		logging.FromContext(r.Context()).Warn("allocation rejected", "error", err, "payment_id", p.ID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAllocationResultDTO(res))
}

func (h *LedgerHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.scopedPayment(w, r)
	if !ok {
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *LedgerHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	p, ok := h.scopedPayment(w, r)
	if !ok {
		return
	}

	receipt, err := h.ledger.GetPaymentReceipt(r.Context(), p.ID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to build receipt", "error", err, "payment_id", p.ID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toReceiptDTO(receipt))
}

func (h *LedgerHandler) scopedPayment(w http.ResponseWriter, r *http.Request) (*domain.AccountPayment, bool) {
	paymentID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, ErrPaymentNotFound, nil)
		return nil, false
	}
	p, err := h.ledger.GetPayment(r.Context(), paymentID)
	if err != nil {
		RespondDomainError(w, err)
		return nil, false
	}
	account, err := h.ledger.GetAccount(r.Context(), p.AccountID)
	if err != nil {
		RespondDomainError(w, err)
		return nil, false
	}
	if !inBusinessScope(r, account.BusinessID) {
		RespondAppError(w, ErrPaymentNotFound, nil)
		return nil, false
	}
	return p, true
}
