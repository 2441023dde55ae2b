package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/auth"
	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
	"github.com/josh-kwaku/credit-ledger/internal/service/ledger"
)

type reportService interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.CustomerAccount, error)
	CalculateAging(ctx context.Context, accountID uuid.UUID, asOf time.Time) (*domain.AgingReport, error)
	CheckCreditLimitAlert(ctx context.Context, accountID uuid.UUID, thresholdPct decimal.Decimal) (*domain.CreditAlert, error)
	VerifyBalanceAccuracy(ctx context.Context, accountID uuid.UUID, tolerance decimal.Decimal) (*domain.BalanceCheck, error)
	RecalculateAndFixBalance(ctx context.Context, accountID uuid.UUID, reason string, actorID *uuid.UUID) (*domain.BalanceFix, error)
	GenerateStatement(ctx context.Context, req ledger.StatementRequest) (*domain.AccountStatement, error)
	VerifyStatementAccuracy(ctx context.Context, statementID uuid.UUID, tolerance decimal.Decimal) (*domain.StatementCheck, error)
	GetStatement(ctx context.Context, statementID uuid.UUID) (*domain.AccountStatement, error)
	ListStatements(ctx context.Context, accountID uuid.UUID) ([]domain.AccountStatement, error)
	GetStatementDocument(ctx context.Context, statementID uuid.UUID) (*domain.StatementDocument, error)
	GenerateMonthlyStatements(ctx context.Context, businessID uuid.UUID, month time.Month, year int, actorID *uuid.UUID) (*ledger.BatchResult, error)
}

// ReportHandler serves aging, alerts, reconciliation and statements.
type ReportHandler struct {
	reports reportService
	now     func() time.Time
}

func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports, now: time.Now}
}

type agingDTO struct {
	AccountID  uuid.UUID `json:"account_id"`
	AsOf       string    `json:"as_of"`
	Current    string    `json:"current"`
	Days30     string    `json:"days_30"`
	Days60     string    `json:"days_60"`
	Days90Plus string    `json:"days_90_plus"`
	Total      string    `json:"total"`
}

func toAgingDTO(accountID uuid.UUID, asOf time.Time, b domain.AgingBuckets, total decimal.Decimal) agingDTO {
	return agingDTO{
		AccountID:  accountID,
		AsOf:       asOf.Format(dateLayout),
		Current:    money(b.Current),
		Days30:     money(b.Days30),
		Days60:     money(b.Days60),
		Days90Plus: money(b.Days90Plus),
		Total:      money(total),
	}
}

type creditAlertDTO struct {
	Alert          bool   `json:"alert"`
	Level          string `json:"level,omitempty"`
	Balance        string `json:"balance,omitempty"`
	CreditLimit    string `json:"credit_limit,omitempty"`
	UtilizationPct string `json:"utilization_pct,omitempty"`
	ThresholdPct   string `json:"threshold_pct,omitempty"`
	Message        string `json:"message,omitempty"`
}

type balanceCheckDTO struct {
	AccountID         uuid.UUID `json:"account_id"`
	StoredBalance     string    `json:"stored_balance"`
	CalculatedBalance string    `json:"calculated_balance"`
	Difference        string    `json:"difference"`
	Tolerance         string    `json:"tolerance"`
	Accurate          bool      `json:"accurate"`
	Fixed             *bool     `json:"fixed,omitempty"`
}

func toBalanceCheckDTO(c *domain.BalanceCheck) balanceCheckDTO {
	return balanceCheckDTO{
		AccountID:         c.AccountID,
		StoredBalance:     money(c.StoredBalance),
		CalculatedBalance: money(c.CalculatedBalance),
		Difference:        money(c.Difference),
		Tolerance:         money(c.Tolerance),
		Accurate:          c.Accurate,
	}
}

type fixBalanceRequest struct {
	Reason string `json:"reason"`
}

type statementRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

type statementDTO struct {
	ID             uuid.UUID  `json:"id"`
	AccountID      uuid.UUID  `json:"account_id"`
	PeriodStart    string     `json:"period_start"`
	PeriodEnd      string     `json:"period_end"`
	OpeningBalance string     `json:"opening_balance"`
	TotalCharges   string     `json:"total_charges"`
	TotalPayments  string     `json:"total_payments"`
	ClosingBalance string     `json:"closing_balance"`
	Aging          agingDTO   `json:"aging"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toStatementDTO(s *domain.AccountStatement) statementDTO {
	return statementDTO{
		ID:             s.ID,
		AccountID:      s.AccountID,
		PeriodStart:    s.PeriodStart.Format(dateLayout),
		PeriodEnd:      s.PeriodEnd.Format(dateLayout),
		OpeningBalance: money(s.OpeningBalance),
		TotalCharges:   money(s.TotalCharges),
		TotalPayments:  money(s.TotalPayments),
		ClosingBalance: money(s.ClosingBalance),
		Aging:          toAgingDTO(s.AccountID, s.PeriodEnd, s.Aging, s.Aging.Total()),
		CreatedBy:      s.CreatedBy,
		CreatedAt:      s.CreatedAt,
	}
}

type statementCheckDTO struct {
	StatementID     uuid.UUID `json:"statement_id"`
	ExpectedClosing string    `json:"expected_closing"`
	ClosingBalance  string    `json:"closing_balance"`
	AgingTotal      string    `json:"aging_total"`
	BalanceAccurate bool      `json:"balance_accurate"`
	AgingAccurate   bool      `json:"aging_accurate"`
	Accurate        bool      `json:"accurate"`
}

type statementDocumentDTO struct {
	Statement     statementDTO     `json:"statement"`
	AccountNumber string           `json:"account_number"`
	CustomerName  string           `json:"customer_name"`
	BusinessName  string           `json:"business_name"`
	Transactions  []transactionDTO `json:"transactions"`
}

type monthlyBatchRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

type batchFailureDTO struct {
	AccountID uuid.UUID `json:"account_id"`
	Error     string    `json:"error"`
}

type batchResultDTO struct {
	BusinessID  uuid.UUID         `json:"business_id"`
	PeriodStart string            `json:"period_start"`
	PeriodEnd   string            `json:"period_end"`
	Generated   int               `json:"generated"`
	Skipped     int               `json:"skipped"`
	Failed      []batchFailureDTO `json:"failed"`
}

func (h *ReportHandler) Aging(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.reports.GetAccount)
	if !ok {
		return
	}
	asOf, ok := queryDate(r, "as_of", h.now().UTC())
	if !ok {
		RespondValidationError(w, []FieldError{{Field: "as_of", Message: "must be YYYY-MM-DD"}})
		return
	}

	report, err := h.reports.CalculateAging(r.Context(), account.ID, asOf)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAgingDTO(report.AccountID, report.AsOf, report.Buckets, report.Total))
}

func (h *ReportHandler) CreditAlert(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.reports.GetAccount)
	if !ok {
		return
	}
	threshold, ok := queryDecimal(r, "threshold")
	if !ok {
		RespondValidationError(w, []FieldError{{Field: "threshold", Message: "must be a number"}})
		return
	}

	alert, err := h.reports.CheckCreditLimitAlert(r.Context(), account.ID, threshold)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if alert == nil {
		RespondSuccess(w, http.StatusOK, creditAlertDTO{Alert: false})
		return
	}
	RespondSuccess(w, http.StatusOK, creditAlertDTO{
		Alert:          true,
		Level:          string(alert.Level),
		Balance:        money(alert.Balance),
		CreditLimit:    money(alert.CreditLimit),
		UtilizationPct: money(alert.UtilizationPct),
		ThresholdPct:   money(alert.ThresholdPct),
		Message:        alert.Message,
	})
}

func (h *ReportHandler) VerifyBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.reports.GetAccount)
	if !ok {
		return
	}
	tolerance, ok := queryDecimal(r, "tolerance")
	if !ok {
		RespondValidationError(w, []FieldError{{Field: "tolerance", Message: "must be a number"}})
		return
	}

	check, err := h.reports.VerifyBalanceAccuracy(r.Context(), account.ID, tolerance)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toBalanceCheckDTO(check))
}

func (h *ReportHandler) FixBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.reports.GetAccount)
	if !ok {
		return
	}
	var req fixBalanceRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	fix, err := h.reports.RecalculateAndFixBalance(r.Context(), account.ID, req.Reason, auth.ActorFromContext(r.Context()))
	if err != nil {
		logging.FromContext(r.Context()).Error("balance fix failed", "error", err, "account_id", account.ID)
		RespondDomainError(w, err)
		return
	}
	dto := toBalanceCheckDTO(&fix.BalanceCheck)
	dto.Fixed = &fix.Fixed
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *ReportHandler) GenerateStatement(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.reports.GetAccount)
	if !ok {
		return
	}
	var req statementRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	start, okStart := parseDate(req.PeriodStart)
	end, okEnd := parseDate(req.PeriodEnd)
	var fields []FieldError
	if !okStart {
		fields = append(fields, FieldError{Field: "period_start", Message: "must be YYYY-MM-DD"})
	}
	if !okEnd {
		fields = append(fields, FieldError{Field: "period_end", Message: "must be YYYY-MM-DD"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	periodEnd := h.now().UTC()
	if end != nil {
		periodEnd = *end
	}

	stmt, err := h.reports.GenerateStatement(r.Context(), ledger.StatementRequest{
		AccountID:   account.ID,
		PeriodStart: start,
		PeriodEnd:   periodEnd,
		ActorID:     auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("statement generation failed", "error", err, "account_id", account.ID)
		RespondDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/statements/"+stmt.ID.String())
	RespondSuccess(w, http.StatusCreated, toStatementDTO(stmt))
}

func (h *ReportHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	account, ok := loadScopedAccount(w, r, h.reports.GetAccount)
	if !ok {
		return
	}

	stmts, err := h.reports.ListStatements(r.Context(), account.ID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	dtos := make([]statementDTO, len(stmts))
	for i := range stmts {
		dtos[i] = toStatementDTO(&stmts[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *ReportHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	stmt, ok := h.scopedStatement(w, r)
	if !ok {
		return
	}
	RespondSuccess(w, http.StatusOK, toStatementDTO(stmt))
}

func (h *ReportHandler) VerifyStatement(w http.ResponseWriter, r *http.Request) {
	stmt, ok := h.scopedStatement(w, r)
	if !ok {
		return
	}
	tolerance, ok := queryDecimal(r, "tolerance")
	if !ok {
		RespondValidationError(w, []FieldError{{Field: "tolerance", Message: "must be a number"}})
		return
	}

	check, err := h.reports.VerifyStatementAccuracy(r.Context(), stmt.ID, tolerance)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, statementCheckDTO{
		StatementID:     check.StatementID,
		ExpectedClosing: money(check.ExpectedClosing),
		ClosingBalance:  money(check.ClosingBalance),
		AgingTotal:      money(check.AgingTotal),
		BalanceAccurate: check.BalanceAccurate,
		AgingAccurate:   check.AgingAccurate,
		Accurate:        check.Accurate,
	})
}

func (h *ReportHandler) StatementDocument(w http.ResponseWriter, r *http.Request) {
	stmt, ok := h.scopedStatement(w, r)
	if !ok {
		return
	}

	doc, err := h.reports.GetStatementDocument(r.Context(), stmt.ID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to build statement document", "error", err, "statement_id", stmt.ID)
		RespondDomainError(w, err)
		return
	}
	dto := statementDocumentDTO{
		Statement:     toStatementDTO(&doc.Statement),
		AccountNumber: doc.AccountNumber,
		CustomerName:  doc.CustomerName,
		BusinessName:  doc.BusinessName,
		Transactions:  make([]transactionDTO, len(doc.Transactions)),
	}
	for i := range doc.Transactions {
		dto.Transactions[i] = toTransactionDTO(&doc.Transactions[i])
	}
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *ReportHandler) MonthlyStatements(w http.ResponseWriter, r *http.Request) {
	businessID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if !inBusinessScope(r, businessID) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	var req monthlyBatchRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	res, err := h.reports.GenerateMonthlyStatements(r.Context(), businessID, time.Month(req.Month), req.Year, auth.ActorFromContext(r.Context()))
	if err != nil {
		logging.FromContext(r.Context()).Error("monthly statement batch failed", "error", err, "business_id", businessID)
		RespondDomainError(w, err)
		return
	}

	dto := batchResultDTO{
		BusinessID:  res.BusinessID,
		PeriodStart: res.PeriodStart.Format(dateLayout),
		PeriodEnd:   res.PeriodEnd.Format(dateLayout),
		Generated:   res.Generated,
		Skipped:     res.Skipped,
		Failed:      make([]batchFailureDTO, len(res.Failed)),
	}
	for i, f := range res.Failed {
		dto.Failed[i] = batchFailureDTO{AccountID: f.AccountID, Error: f.Error}
	}
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *ReportHandler) scopedStatement(w http.ResponseWriter, r *http.Request) (*domain.AccountStatement, bool) {
	statementID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, ErrStatementNotFound, nil)
		return nil, false
	}
	stmt, err := h.reports.GetStatement(r.Context(), statementID)
	if err != nil {
		RespondDomainError(w, err)
		return nil, false
	}
	account, err := h.reports.GetAccount(r.Context(), stmt.AccountID)
	if err != nil {
		RespondDomainError(w, err)
		return nil, false
	}
	if !inBusinessScope(r, account.BusinessID) {
		RespondAppError(w, ErrStatementNotFound, nil)
		return nil, false
	}
	return stmt, true
}
