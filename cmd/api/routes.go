package main

import (
	"net/http"

	"github.com/josh-kwaku/credit-ledger/internal/config"
	"github.com/josh-kwaku/credit-ledger/internal/handler"
	"github.com/josh-kwaku/credit-ledger/internal/middleware"
	"github.com/josh-kwaku/credit-ledger/internal/repository"
)

type routerDeps struct {
	health      *handler.HealthHandler
	accounts    *handler.AccountHandler
	ledger      *handler.LedgerHandler
	reports     *handler.ReportHandler
	metrics     http.Handler
	idempotency *repository.IdempotencyRepository
	cfg         *config.Config
}

func newRouter(d routerDeps) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/v1/accounts", d.accounts.Create)
	api.HandleFunc("GET /api/v1/businesses/{id}/accounts", d.accounts.List)
	api.HandleFunc("GET /api/v1/accounts/{id}", d.accounts.Get)
	api.HandleFunc("PATCH /api/v1/accounts/{id}", d.accounts.Update)
	api.HandleFunc("POST /api/v1/accounts/{id}/activate", d.accounts.Activate)
	api.HandleFunc("POST /api/v1/accounts/{id}/suspend", d.accounts.Suspend)
	api.HandleFunc("POST /api/v1/accounts/{id}/close", d.accounts.Close)
	api.HandleFunc("POST /api/v1/accounts/{id}/pin/verify", d.accounts.VerifyPIN)

	api.HandleFunc("POST /api/v1/accounts/{id}/credit-check", d.ledger.CheckCredit)
	api.HandleFunc("POST /api/v1/accounts/{id}/charges", d.ledger.Charge)
	api.HandleFunc("POST /api/v1/accounts/{id}/adjustments", d.ledger.Adjust)
	api.HandleFunc("POST /api/v1/accounts/{id}/write-offs", d.ledger.WriteOff)
	api.HandleFunc("GET /api/v1/accounts/{id}/transactions", d.ledger.ListTransactions)
	api.HandleFunc("POST /api/v1/accounts/{id}/payments", d.ledger.CreatePayment)
	api.HandleFunc("GET /api/v1/accounts/{id}/payments", d.ledger.ListPayments)
	api.HandleFunc("GET /api/v1/payments/{id}", d.ledger.GetPayment)
	api.HandleFunc("POST /api/v1/payments/{id}/allocate", d.ledger.AllocatePayment)
	api.HandleFunc("GET /api/v1/payments/{id}/receipt", d.ledger.GetReceipt)

	api.HandleFunc("GET /api/v1/accounts/{id}/aging", d.reports.Aging)
	api.HandleFunc("GET /api/v1/accounts/{id}/credit-alert", d.reports.CreditAlert)
	api.HandleFunc("GET /api/v1/accounts/{id}/balance-check", d.reports.VerifyBalance)
	api.HandleFunc("POST /api/v1/accounts/{id}/balance-fix", d.reports.FixBalance)
	api.HandleFunc("POST /api/v1/accounts/{id}/statements", d.reports.GenerateStatement)
	api.HandleFunc("GET /api/v1/accounts/{id}/statements", d.reports.ListStatements)
	api.HandleFunc("GET /api/v1/statements/{id}", d.reports.GetStatement)
	api.HandleFunc("GET /api/v1/statements/{id}/verify", d.reports.VerifyStatement)
	api.HandleFunc("GET /api/v1/statements/{id}/document", d.reports.StatementDocument)
	api.HandleFunc("POST /api/v1/businesses/{id}/statements/monthly", d.reports.MonthlyStatements)

	var protected http.Handler = api
	protected = middleware.Idempotency(d.idempotency, d.cfg.IdempotencyTTL)(protected)
	protected = middleware.Logging(protected)
	protected = middleware.Auth(d.cfg.JWTSecret)(protected)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", d.health.Liveness)
	root.HandleFunc("GET /health/ready", d.health.Readiness)
	root.Handle("GET /metrics", d.metrics)
	root.Handle("/api/", protected)

	return middleware.Recovery(middleware.Tracing(root))
}
