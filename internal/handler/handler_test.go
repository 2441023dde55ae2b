package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/credit-ledger/internal/auth"
	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/service/ledger"
)

type fakeLedger struct {
	account   *domain.CustomerAccount
	payment   *domain.AccountPayment
	charge    *ledger.ChargeRequest
	recorded  *ledger.PaymentRequest
	processed *ledger.PaymentRequest
	err       error
}

func (f *fakeLedger) GetAccount(_ context.Context, id uuid.UUID) (*domain.CustomerAccount, error) {
	if f.account == nil || f.account.ID != id {
		return nil, fmt.Errorf("GetAccount: %w", domain.ErrAccountNotFound)
	}
	return f.account, nil
}

func (f *fakeLedger) ValidateCredit(_ context.Context, _ uuid.UUID, amount decimal.Decimal) (*domain.CreditCheck, error) {
	available := f.account.AvailableCredit()
	return &domain.CreditCheck{Valid: amount.LessThanOrEqual(available), AvailableCredit: available}, nil
}

func (f *fakeLedger) ChargeToAccount(_ context.Context, req ledger.ChargeRequest) (*domain.AccountTransaction, error) {
	f.charge = &req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AccountTransaction{
		ID:           uuid.New(),
		AccountID:    req.AccountID,
		Type:         domain.TransactionTypeCharge,
		Amount:       req.Amount,
		BalanceAfter: req.Amount,
		Description:  req.Description,
		DueDate:      req.DueDate,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (f *fakeLedger) AdjustBalance(_ context.Context, _ ledger.AdjustmentRequest) (*domain.AccountTransaction, error) {
	return nil, f.err
}

func (f *fakeLedger) WriteOff(_ context.Context, _ ledger.AdjustmentRequest) (*domain.AccountTransaction, error) {
	return nil, f.err
}

func (f *fakeLedger) ListTransactions(_ context.Context, _ uuid.UUID, _, _ int) ([]domain.AccountTransaction, int, error) {
	return nil, 0, nil
}

func (f *fakeLedger) RecordPayment(_ context.Context, req ledger.PaymentRequest) (*domain.AccountPayment, error) {
	f.recorded = &req
	return &domain.AccountPayment{ID: uuid.New(), AccountID: req.AccountID, Amount: req.Amount, Method: req.Method}, nil
}

func (f *fakeLedger) AllocatePayment(_ context.Context, _ uuid.UUID, _ *uuid.UUID) (*ledger.AllocationResult, error) {
	return nil, f.err
}

func (f *fakeLedger) ProcessPayment(_ context.Context, req ledger.PaymentRequest) (*ledger.AllocationResult, error) {
	f.processed = &req
	p := &domain.AccountPayment{ID: uuid.New(), AccountID: req.AccountID, Amount: req.Amount, AllocatedAmount: req.Amount, Method: req.Method}
	return &ledger.AllocationResult{Payment: p, BalanceAfter: decimal.Zero}, nil
}

func (f *fakeLedger) GetPayment(_ context.Context, id uuid.UUID) (*domain.AccountPayment, error) {
	if f.payment == nil || f.payment.ID != id {
		return nil, fmt.Errorf("GetPayment: %w", domain.ErrPaymentNotFound)
	}
	return f.payment, nil
}

func (f *fakeLedger) ListPayments(_ context.Context, accountID uuid.UUID) ([]domain.AccountPayment, error) {
	if f.payment == nil || f.payment.AccountID != accountID {
		return nil, nil
	}
	return []domain.AccountPayment{*f.payment}, nil
}

func (f *fakeLedger) GetPaymentReceipt(_ context.Context, _ uuid.UUID) (*domain.PaymentReceipt, error) {
	return nil, f.err
}

func testAccount(businessID uuid.UUID) *domain.CustomerAccount {
	return &domain.CustomerAccount{
		ID:               uuid.New(),
		AccountNumber:    "ACC-TST-00001",
		BusinessID:       businessID,
		Status:           domain.AccountStatusActive,
		CreditLimit:      decimal.NewFromInt(1000),
		CurrentBalance:   decimal.NewFromInt(250),
		PaymentTermsDays: 30,
	}
}

func newRequest(method, target, body string, claims *auth.Claims) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if claims != nil {
		req = req.WithContext(auth.ContextWithClaims(req.Context(), claims))
	}
	return req
}

func serve(t *testing.T, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) (map[string]any, *APIError) {
	t.Helper()
	var resp struct {
		Data  map[string]any `json:"data"`
		Error *APIError      `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data, resp.Error
}

func TestAppErrorFor(t *testing.T) {
	tests := []struct {
		err  error
		want *AppError
	}{
		{domain.ErrAccountNotFound, ErrAccountNotFound},
		{domain.ErrPaymentNotFound, ErrPaymentNotFound},
		{domain.ErrStatementNotFound, ErrStatementNotFound},
		{domain.ErrNotFound, ErrResourceNotFound},
		{domain.ErrInvalidState, ErrInvalidState},
		{domain.ErrOutstandingBalance, ErrOutstandingBalance},
		{domain.ErrInsufficientCredit, ErrInsufficientCredit},
		{domain.ErrInvalidAmount, ErrInvalidAmount},
		{domain.ErrInvalidAdjustment, ErrInvalidAdjustment},
		{domain.ErrAlreadyAllocated, ErrAlreadyAllocated},
		{domain.ErrClosedAccount, ErrAccountClosed},
		{domain.ErrInvalidPeriod, ErrInvalidPeriod},
		{domain.ErrStatementExists, ErrStatementExists},
		{domain.ErrInvalidPIN, ErrInvalidPIN},
		{domain.ErrAccountExists, ErrAccountExists},
		{fmt.Errorf("ChargeToAccount: %w", domain.ErrInsufficientCredit), ErrInsufficientCredit},
		{fmt.Errorf("boom"), ErrInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.want.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, appErrorFor(tt.err))
		})
	}
}

func TestLedgerHandler_Charge(t *testing.T) {
	businessID := uuid.New()
	staff := &auth.Claims{UserID: uuid.New()}

	t.Run("posts charge with parsed due date and actor", func(t *testing.T) {
		fake := &fakeLedger{account: testAccount(businessID)}
		h := NewLedgerHandler(fake)

		req := newRequest(http.MethodPost, "/api/v1/accounts/"+fake.account.ID.String()+"/charges",
			`{"amount":"125.50","description":"Order #12","reference_type":"order","reference_id":"12","due_date":"2025-03-01"}`, staff)
		rec := serve(t, "POST /api/v1/accounts/{id}/charges", h.Charge, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, fake.charge)
		assert.True(t, fake.charge.Amount.Equal(decimal.RequireFromString("125.50")))
		require.NotNil(t, fake.charge.DueDate)
		assert.Equal(t, "2025-03-01", fake.charge.DueDate.Format(dateLayout))
		require.NotNil(t, fake.charge.ActorID)
		assert.Equal(t, staff.UserID, *fake.charge.ActorID)

		data, _ := decodeResponse(t, rec)
		assert.Equal(t, "125.50", data["amount"])
		assert.Equal(t, "2025-03-01", data["due_date"])
	})

	t.Run("validation failures", func(t *testing.T) {
		fake := &fakeLedger{account: testAccount(businessID)}
		h := NewLedgerHandler(fake)

		req := newRequest(http.MethodPost, "/api/v1/accounts/"+fake.account.ID.String()+"/charges",
			`{"amount":"0","description":"","reference_type":"coupon","due_date":"03/01/2025"}`, staff)
		rec := serve(t, "POST /api/v1/accounts/{id}/charges", h.Charge, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		_, apiErr := decodeResponse(t, rec)
		require.NotNil(t, apiErr)
		assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)
		assert.Len(t, apiErr.Details, 4)
		assert.Nil(t, fake.charge)
	})

	t.Run("domain rejection is mapped", func(t *testing.T) {
		fake := &fakeLedger{account: testAccount(businessID), err: fmt.Errorf("ChargeToAccount: %w", domain.ErrInsufficientCredit)}
		h := NewLedgerHandler(fake)

		req := newRequest(http.MethodPost, "/api/v1/accounts/"+fake.account.ID.String()+"/charges",
			`{"amount":"5000","description":"Big order"}`, staff)
		rec := serve(t, "POST /api/v1/accounts/{id}/charges", h.Charge, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		_, apiErr := decodeResponse(t, rec)
		require.NotNil(t, apiErr)
		assert.Equal(t, "INSUFFICIENT_CREDIT", apiErr.Code)
	})
}

func TestLedgerHandler_BusinessScope(t *testing.T) {
	fake := &fakeLedger{account: testAccount(uuid.New())}
	h := NewLedgerHandler(fake)
	otherBusiness := uuid.New()

	req := newRequest(http.MethodPost, "/api/v1/accounts/"+fake.account.ID.String()+"/charges",
		`{"amount":"10","description":"x"}`, &auth.Claims{UserID: uuid.New(), BusinessID: &otherBusiness})
	rec := serve(t, "POST /api/v1/accounts/{id}/charges", h.Charge, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, apiErr := decodeResponse(t, rec)
	require.NotNil(t, apiErr)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", apiErr.Code)
	assert.Nil(t, fake.charge)
}

func TestLedgerHandler_CreatePayment(t *testing.T) {
	staff := &auth.Claims{UserID: uuid.New()}

	t.Run("allocates by default", func(t *testing.T) {
		fake := &fakeLedger{account: testAccount(uuid.New())}
		h := NewLedgerHandler(fake)

		req := newRequest(http.MethodPost, "/api/v1/accounts/"+fake.account.ID.String()+"/payments",
			`{"amount":"100","method":"cash"}`, staff)
		rec := serve(t, "POST /api/v1/accounts/{id}/payments", h.CreatePayment, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotNil(t, fake.processed)
		assert.Nil(t, fake.recorded)
		data, _ := decodeResponse(t, rec)
		assert.Equal(t, "0.00", data["balance_after"])
	})

	t.Run("records only when allocate is false", func(t *testing.T) {
		fake := &fakeLedger{account: testAccount(uuid.New())}
		h := NewLedgerHandler(fake)

		req := newRequest(http.MethodPost, "/api/v1/accounts/"+fake.account.ID.String()+"/payments",
			`{"amount":"100","method":"cheque","allocate":false}`, staff)
		rec := serve(t, "POST /api/v1/accounts/{id}/payments", h.CreatePayment, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Nil(t, fake.processed)
		require.NotNil(t, fake.recorded)
		assert.Equal(t, "cheque", fake.recorded.Method)
		data, _ := decodeResponse(t, rec)
		assert.Equal(t, "100.00", data["unallocated_amount"])
	})
}

func TestLedgerHandler_GetPaymentNotFound(t *testing.T) {
	h := NewLedgerHandler(&fakeLedger{})

	rec := serve(t, "GET /api/v1/payments/{id}", h.GetPayment,
		newRequest(http.MethodGet, "/api/v1/payments/"+uuid.NewString(), "", &auth.Claims{UserID: uuid.New()}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, apiErr := decodeResponse(t, rec)
	require.NotNil(t, apiErr)
	assert.Equal(t, "PAYMENT_NOT_FOUND", apiErr.Code)
}

func TestLedgerHandler_ListPayments(t *testing.T) {
	account := testAccount(uuid.New())
	fake := &fakeLedger{
		account: account,
		payment: &domain.AccountPayment{
			ID:              uuid.New(),
			AccountID:       account.ID,
			Amount:          decimal.RequireFromString("150"),
			AllocatedAmount: decimal.RequireFromString("100"),
			Method:          "transfer",
		},
	}
	h := NewLedgerHandler(fake)

	rec := serve(t, "GET /api/v1/accounts/{id}/payments", h.ListPayments,
		newRequest(http.MethodGet, "/api/v1/accounts/"+account.ID.String()+"/payments", "", &auth.Claims{UserID: uuid.New()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []paymentDTO `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, fake.payment.ID, resp.Data[0].ID)
	assert.Equal(t, "50.00", resp.Data[0].UnallocatedAmount)

	otherBusiness := uuid.New()
	rec = serve(t, "GET /api/v1/accounts/{id}/payments", h.ListPayments,
		newRequest(http.MethodGet, "/api/v1/accounts/"+account.ID.String()+"/payments", "", &auth.Claims{UserID: uuid.New(), BusinessID: &otherBusiness}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountDTO(t *testing.T) {
	a := testAccount(uuid.New())
	hash := "$2a$..."
	a.PINHash = &hash

	dto := toAccountDTO(a)

	assert.Equal(t, "1000.00", dto.CreditLimit)
	assert.Equal(t, "250.00", dto.CurrentBalance)
	assert.Equal(t, "750.00", dto.AvailableCredit)
	assert.True(t, dto.HasPIN)

	raw, err := json.Marshal(dto)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), hash)
}
