package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

// maxDispatchAttempts is how many deliveries an event gets before it is
// parked as failed.
const maxDispatchAttempts = 5

type notifier interface {
	Notify(ctx context.Context, event domain.AccountEvent) error
}

type dispatchRecorder interface {
	EventDispatched(ok bool)
}

// EventDispatcher drains the account_events outbox to the downstream
// notification webhook. With no notifier configured events are logged and
// marked dispatched.
type EventDispatcher struct {
	events   accountEventRepository
	notifier notifier
	metrics  dispatchRecorder
	db       *sql.DB
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewEventDispatcher(
	events accountEventRepository,
	n notifier,
	metrics dispatchRecorder,
	db *sql.DB,
	logger *slog.Logger,
	interval time.Duration,
	batch int,
) *EventDispatcher {
	if batch < 1 {
		batch = 1
	}
	return &EventDispatcher{
		events:   events,
		notifier: n,
		metrics:  metrics,
		db:       db,
		logger:   logger,
		interval: interval,
		batch:    batch,
	}
}

func (d *EventDispatcher) Start(ctx context.Context) {
	d.logger.Info("event dispatcher started", "interval", d.interval, "batch", d.batch)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("event dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.DispatchPending(ctx); err != nil {
				d.logger.Error("failed to dispatch account events", "error", err)
			}
		}
	}
}

// DispatchPending claims one batch of pending events and delivers them in
// creation order. It returns how many were delivered.
func (d *EventDispatcher) DispatchPending(ctx context.Context) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("DispatchPending: begin tx: %w", err)
	}
	defer tx.Rollback()

	events, err := d.events.ClaimPending(ctx, tx, d.batch)
	if err != nil {
		return 0, fmt.Errorf("DispatchPending: %w", err)
	}

	delivered := 0
	for _, event := range events {
		status := d.deliver(ctx, event)
		if err := d.events.UpdateStatus(ctx, tx, event.ID, status); err != nil {
			return 0, fmt.Errorf("DispatchPending: %w", err)
		}
		if status == domain.AccountEventStatusDispatched {
			delivered++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("DispatchPending: commit: %w", err)
	}
	return delivered, nil
}

func (d *EventDispatcher) deliver(ctx context.Context, event domain.AccountEvent) domain.AccountEventStatus {
	if d.notifier == nil {
		d.logger.Info("account event",
			"event_id", event.ID,
			"account_id", event.AccountID,
			"event_type", event.EventType,
			"actor", event.Actor,
		)
		d.metrics.EventDispatched(true)
		return domain.AccountEventStatusDispatched
	}

	if err := d.notifier.Notify(ctx, event); err != nil {
		d.metrics.EventDispatched(false)
		if event.Attempts+1 >= maxDispatchAttempts {
			d.logger.Error("account event delivery abandoned",
				"event_id", event.ID,
				"event_type", event.EventType,
				"attempts", event.Attempts+1,
				"error", err,
			)
			return domain.AccountEventStatusFailed
		}
		d.logger.Warn("account event delivery failed, will retry",
			"event_id", event.ID,
			"event_type", event.EventType,
			"attempts", event.Attempts+1,
			"error", err,
		)
		return domain.AccountEventStatusPending
	}

	d.metrics.EventDispatched(true)
	return domain.AccountEventStatusDispatched
}
