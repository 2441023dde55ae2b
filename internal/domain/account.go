package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusPending   AccountStatus = "pending"
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusClosed    AccountStatus = "closed"
)

func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusPending, AccountStatusActive, AccountStatusSuspended, AccountStatusClosed:
		return true
	}
	return false
}

type CustomerAccount struct {
	ID               uuid.UUID
	AccountNumber    string
	CustomerID       uuid.UUID
	BusinessID       uuid.UUID
	Name             string
	Status           AccountStatus
	CreditLimit      decimal.Decimal
	CurrentBalance   decimal.Decimal
	PaymentTermsDays int
	PINHash          *string
	Notes            string
	OpenedAt         *time.Time
	SuspendedAt      *time.Time
	ClosedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func FormatAccountNumber(prefix string, seq int) string {
	return fmt.Sprintf("ACC-%s-%05d", strings.ToUpper(prefix), seq)
}

func (a *CustomerAccount) AvailableCredit() decimal.Decimal {
	return a.CreditLimit.Sub(a.CurrentBalance)
}

// DefaultDueDate is the due date of a charge created at createdAt that
// carries no explicit due date.
func (a *CustomerAccount) DefaultDueDate(createdAt time.Time) time.Time {
	return createdAt.AddDate(0, 0, a.PaymentTermsDays)
}

func (a *CustomerAccount) Activate(now time.Time) error {
	if a.Status == AccountStatusActive || a.Status == AccountStatusClosed {
		return fmt.Errorf("activate from %s: %w", a.Status, ErrInvalidState)
	}
	a.Status = AccountStatusActive
	a.OpenedAt = &now
	a.SuspendedAt = nil
	a.UpdatedAt = now
	return nil
}

func (a *CustomerAccount) Suspend(now time.Time, reason string) error {
	if a.Status != AccountStatusActive {
		return fmt.Errorf("suspend from %s: %w", a.Status, ErrInvalidState)
	}
	a.Status = AccountStatusSuspended
	a.SuspendedAt = &now
	a.UpdatedAt = now
	a.AppendNote(now, "Suspended", reason)
	return nil
}

func (a *CustomerAccount) Close(now time.Time, reason string) error {
	if a.Status == AccountStatusClosed {
		return fmt.Errorf("close from %s: %w", a.Status, ErrInvalidState)
	}
	if !a.CurrentBalance.IsZero() {
		return fmt.Errorf("close with balance %s: %w", a.CurrentBalance.StringFixed(2), ErrOutstandingBalance)
	}
	a.Status = AccountStatusClosed
	a.ClosedAt = &now
	a.UpdatedAt = now
	a.AppendNote(now, "Closed", reason)
	return nil
}

// AppendNote adds a dated line to the free-text notes. Empty details are skipped.
func (a *CustomerAccount) AppendNote(now time.Time, label, detail string) {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return
	}
	line := fmt.Sprintf("[%s] %s: %s", now.UTC().Format("2006-01-02"), label, detail)
	if a.Notes == "" {
		a.Notes = line
		return
	}
	a.Notes += "\n" + line
}
