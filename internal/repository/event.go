package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

const eventColumns = `id, account_id, event_type, actor, payload, status, attempts, last_attempt, created_at`

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, tx *sql.Tx, e *domain.AccountEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_events (
			id, account_id, event_type, actor, payload, status, attempts, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.AccountID, e.EventType, e.Actor, e.Payload,
		e.Status, e.Attempts, e.LastAttempt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ClaimPending locks up to limit pending events inside tx.
// FOR UPDATE SKIP LOCKED keeps concurrent dispatchers off the same rows.
func (r *EventRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.AccountEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM account_events
		WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.AccountEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.AccountEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

func (r *EventRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.AccountEventStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE account_events SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return expectOneRow(res, "UpdateStatus")
}

func (r *EventRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.AccountEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM account_events WHERE account_id = $1 ORDER BY created_at, id`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	var events []domain.AccountEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return events, nil
}

func scanEvent(s scanner) (*domain.AccountEvent, error) {
	var e domain.AccountEvent
	err := s.Scan(
		&e.ID, &e.AccountID, &e.EventType, &e.Actor, &e.Payload,
		&e.Status, &e.Attempts, &e.LastAttempt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
