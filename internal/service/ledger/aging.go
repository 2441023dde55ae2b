package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

// CalculateAging buckets the unpaid remainder of every charge by whole days
// past due as of asOf. Charges and allocations made after asOf's calendar day
// are ignored.
func (s *Service) CalculateAging(ctx context.Context, accountID uuid.UUID, asOf time.Time) (*domain.AgingReport, error) {
	tx, err := s.db.BeginTx(ctx, snapshotOpts)
	if err != nil {
		return nil, fmt.Errorf("CalculateAging: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.accounts.Get(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("CalculateAging: %w", notFound(err, domain.ErrAccountNotFound))
	}

	buckets, err := s.agingAsOf(ctx, tx, a, asOf)
	if err != nil {
		return nil, fmt.Errorf("CalculateAging: %w", err)
	}

	return &domain.AgingReport{
		AccountID: a.ID,
		AsOf:      asOf.UTC(),
		Buckets:   buckets,
		Total:     buckets.Total(),
	}, nil
}

func (s *Service) agingAsOf(ctx context.Context, tx *sql.Tx, a *domain.CustomerAccount, asOf time.Time) (domain.AgingBuckets, error) {
	cutoff := domain.DayStart(asOf).AddDate(0, 0, 1)
	charges, err := s.transactions.ListChargesAsOf(ctx, tx, a.ID, cutoff)
	if err != nil {
		return domain.AgingBuckets{}, fmt.Errorf("agingAsOf: %w", err)
	}
	return buildAging(a, charges, asOf), nil
}

// buildAging is the pure bucketing step: daysOverdue = days(asOf) - days(due).
func buildAging(a *domain.CustomerAccount, charges []domain.UnpaidCharge, asOf time.Time) domain.AgingBuckets {
	var buckets domain.AgingBuckets
	for _, c := range charges {
		remainder := c.Remaining()
		if !remainder.IsPositive() {
			continue
		}
		due := a.DefaultDueDate(c.Charge.CreatedAt)
		if c.Charge.DueDate != nil {
			due = *c.Charge.DueDate
		}
		buckets.Add(domain.BucketFor(domain.DaysBetween(due, asOf)), remainder)
	}
	return buckets
}
