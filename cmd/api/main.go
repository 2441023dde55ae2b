package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josh-kwaku/credit-ledger/internal/config"
	"github.com/josh-kwaku/credit-ledger/internal/handler"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
	"github.com/josh-kwaku/credit-ledger/internal/metrics"
	"github.com/josh-kwaku/credit-ledger/internal/repository"
	"github.com/josh-kwaku/credit-ledger/internal/service"
	"github.com/josh-kwaku/credit-ledger/internal/service/ledger"
)

const (
	serviceName              = "credit-ledger"
	idempotencySweepInterval = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	accounts := repository.NewAccountRepository(db)
	transactions := repository.NewTransactionRepository(db)
	payments := repository.NewPaymentRepository(db)
	allocations := repository.NewAllocationRepository(db)
	statements := repository.NewStatementRepository(db)
	events := repository.NewEventRepository(db)
	directory := repository.NewDirectoryRepository(db)
	users := repository.NewUserRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	collector := metrics.NewCollector()

	ledgerSvc := ledger.NewService(accounts, transactions, payments, allocations, statements, events, directory, users, collector, db, cfg)
	accountSvc := service.NewAccountService(accounts, directory, events, collector, db, cfg)

	var dispatcher *service.EventDispatcher
	if cfg.NotifyWebhookURL != "" {
		dispatcher = service.NewEventDispatcher(events, service.NewNotifierClient(cfg.NotifyWebhookURL), collector, db,
			logger.With("component", "event_dispatcher"), cfg.EventDispatchInterval, cfg.EventDispatchBatch)
	} else {
		logger.Warn("NOTIFY_WEBHOOK_URL not set, account events are logged and marked dispatched")
		dispatcher = service.NewEventDispatcher(events, nil, collector, db,
			logger.With("component", "event_dispatcher"), cfg.EventDispatchInterval, cfg.EventDispatchBatch)
	}
	go dispatcher.Start(ctx)

	if cfg.StatementSchedulerEnabled {
		scheduler := service.NewStatementScheduler(ledgerSvc, directory, logger.With("component", "statement_scheduler"), cfg.StatementSchedulerInterval)
		go scheduler.Start(ctx)
	}

	go sweepIdempotency(ctx, idempotency, logger)

	routes := newRouter(routerDeps{
		health:      handler.NewHealthHandler(db, serviceName),
		accounts:    handler.NewAccountHandler(accountSvc),
		ledger:      handler.NewLedgerHandler(ledgerSvc),
		reports:     handler.NewReportHandler(ledgerSvc),
		metrics:     collector.Handler(),
		idempotency: idempotency,
		cfg:         cfg,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           routes,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

type expiredResponseSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func sweepIdempotency(ctx context.Context, store expiredResponseSweeper, logger *slog.Logger) {
	ticker := time.NewTicker(idempotencySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.Error("idempotency sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired idempotency keys removed", "count", n)
			}
		}
	}
}
