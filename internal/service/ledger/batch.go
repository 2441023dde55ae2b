package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
)

type BatchFailure struct {
	AccountID uuid.UUID
	Error     string
}

type BatchResult struct {
	BusinessID  uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Generated   int
	// Skipped counts accounts that already had a statement for the period.
	Skipped int
	Failed  []BatchFailure
}

// GenerateMonthlyStatements produces a statement for every active account of
// the business for the calendar month. Per-account failures are logged and
// collected; only cancellation aborts the batch.
func (s *Service) GenerateMonthlyStatements(ctx context.Context, businessID uuid.UUID, month time.Month, year int, actorID *uuid.UUID) (*BatchResult, error) {
	log := logging.FromContext(ctx)

	if month < time.January || month > time.December || year < 1 {
		return nil, fmt.Errorf("GenerateMonthlyStatements: %d-%02d: %w", year, month, domain.ErrInvalidPeriod)
	}
	start, end := domain.MonthPeriod(year, month)

	accounts, err := s.accounts.ListByBusinessAndStatus(ctx, businessID, domain.AccountStatusActive)
	if err != nil {
		return nil, fmt.Errorf("GenerateMonthlyStatements: %w", err)
	}

	result := &BatchResult{BusinessID: businessID, PeriodStart: start, PeriodEnd: end}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.StatementBatchConcurrency)
	for _, a := range accounts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := s.GenerateStatement(gctx, StatementRequest{
				AccountID:   a.ID,
				PeriodStart: &start,
				PeriodEnd:   end,
				ActorID:     actorID,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Generated++
			case errors.Is(err, domain.ErrStatementExists):
				result.Skipped++
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				s.metrics.StatementGenerated(false)
				result.Failed = append(result.Failed, BatchFailure{AccountID: a.ID, Error: err.Error()})
				log.Warn("statement generation failed",
					"account_id", a.ID,
					"account_number", a.AccountNumber,
					"error", err,
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("GenerateMonthlyStatements: %w", err)
	}

	log.Info("monthly statements generated",
		"business_id", businessID,
		"period", start.Format("2006-01"),
		"accounts", len(accounts),
		"generated", result.Generated,
		"skipped", result.Skipped,
		"failed", len(result.Failed),
	)
	return result, nil
}
