package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AccountEventType string

const (
	AccountEventCreated          AccountEventType = "account.created"
	AccountEventActivated        AccountEventType = "account.activated"
	AccountEventSuspended        AccountEventType = "account.suspended"
	AccountEventClosed           AccountEventType = "account.closed"
	AccountEventUpdated          AccountEventType = "account.updated"
	AccountEventCharged          AccountEventType = "account.charged"
	AccountEventAdjusted         AccountEventType = "account.adjusted"
	AccountEventWrittenOff       AccountEventType = "account.written_off"
	AccountEventPaymentRecorded  AccountEventType = "payment.recorded"
	AccountEventPaymentAllocated AccountEventType = "payment.allocated"
	AccountEventStatement        AccountEventType = "statement.generated"
	AccountEventBalanceCorrected AccountEventType = "balance.corrected"
)

type AccountEventStatus string

const (
	AccountEventStatusPending    AccountEventStatus = "pending"
	AccountEventStatusDispatched AccountEventStatus = "dispatched"
	AccountEventStatusFailed     AccountEventStatus = "failed"
)

// AccountEvent is an outbox row written in the same transaction as the
// state change it describes.
type AccountEvent struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	EventType   AccountEventType
	Actor       string
	Payload     json.RawMessage
	Status      AccountEventStatus
	Attempts    int
	LastAttempt *time.Time
	CreatedAt   time.Time
}

// ActorLabel renders the acting user for audit columns.
func ActorLabel(userID *uuid.UUID) string {
	if userID == nil {
		return "system"
	}
	return "user:" + userID.String()
}

func NewAccountEvent(accountID uuid.UUID, eventType AccountEventType, actor *uuid.UUID, payload any, now time.Time) (*AccountEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("NewAccountEvent: %s: %w", eventType, err)
	}
	return &AccountEvent{
		ID:        uuid.New(),
		AccountID: accountID,
		EventType: eventType,
		Actor:     ActorLabel(actor),
		Payload:   body,
		Status:    AccountEventStatusPending,
		CreatedAt: now,
	}, nil
}
