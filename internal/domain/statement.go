package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatement covers the inclusive calendar dates [PeriodStart, PeriodEnd].
type AccountStatement struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OpeningBalance decimal.Decimal
	TotalCharges   decimal.Decimal
	TotalPayments  decimal.Decimal
	ClosingBalance decimal.Decimal
	Aging          AgingBuckets
	CreatedBy      *uuid.UUID
	CreatedAt      time.Time
}

type StatementCheck struct {
	StatementID     uuid.UUID
	ExpectedClosing decimal.Decimal
	AgingTotal      decimal.Decimal
	ClosingBalance  decimal.Decimal
	BalanceAccurate bool
	AgingAccurate   bool
	Accurate        bool
}

// StatementDocument is the structured record handed to the rendering service.
type StatementDocument struct {
	Statement     AccountStatement
	AccountNumber string
	CustomerName  string
	BusinessName  string
	Transactions  []AccountTransaction
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b (UTC).
func DaysBetween(a, b time.Time) int {
	return int(DayStart(b).Sub(DayStart(a)).Hours() / 24)
}

// MonthPeriod returns the first and last calendar day of the month.
func MonthPeriod(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}
