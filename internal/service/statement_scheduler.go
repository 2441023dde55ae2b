package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/credit-ledger/internal/service/ledger"
)

type monthlyStatementRunner interface {
	GenerateMonthlyStatements(ctx context.Context, businessID uuid.UUID, month time.Month, year int, actorID *uuid.UUID) (*ledger.BatchResult, error)
}

// StatementScheduler runs the monthly statement batch for every business once
// per calendar month, covering the month that just ended.
type StatementScheduler struct {
	statements monthlyStatementRunner
	directory  directoryRepository
	logger     *slog.Logger
	interval   time.Duration
	now        func() time.Time

	mu      sync.Mutex
	lastRun string
}

func NewStatementScheduler(statements monthlyStatementRunner, directory directoryRepository, logger *slog.Logger, interval time.Duration) *StatementScheduler {
	return &StatementScheduler{
		statements: statements,
		directory:  directory,
		logger:     logger,
		interval:   interval,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *StatementScheduler) Start(ctx context.Context) {
	s.logger.Info("statement scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunDue(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("statement scheduler stopped")
			return
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue generates last month's statements unless that month was already
// handled by this process. Reports whether a run happened.
func (s *StatementScheduler) RunDue(ctx context.Context) bool {
	year, month := previousMonth(s.now())
	key := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == key {
		return false
	}

	businesses, err := s.directory.ListBusinesses(ctx)
	if err != nil {
		s.logger.Error("statement scheduler: list businesses", "error", err)
		return false
	}

	complete := true
	for _, b := range businesses {
		res, err := s.statements.GenerateMonthlyStatements(ctx, b.ID, month, year, nil)
		if err != nil {
			complete = false
			s.logger.Error("statement scheduler: batch failed", "business_id", b.ID, "period", key, "error", err)
			continue
		}
		if len(res.Failed) > 0 {
			complete = false
		}
	}

	// Failed accounts are retried on the next tick; existing statements are skipped.
	if complete {
		s.lastRun = key
	}
	return true
}

func previousMonth(now time.Time) (int, time.Month) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, 0, -1)
	return prev.Year(), prev.Month()
}
