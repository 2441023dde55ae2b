package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AgingBucket string

const (
	AgingBucketCurrent AgingBucket = "current"
	AgingBucket30      AgingBucket = "days_30"
	AgingBucket60      AgingBucket = "days_60"
	AgingBucket90Plus  AgingBucket = "days_90_plus"
)

// BucketFor classifies a charge by how many whole days it is past due.
func BucketFor(daysOverdue int) AgingBucket {
	switch {
	case daysOverdue < 0:
		return AgingBucketCurrent
	case daysOverdue <= 30:
		return AgingBucket30
	case daysOverdue <= 60:
		return AgingBucket60
	default:
		return AgingBucket90Plus
	}
}

type AgingBuckets struct {
	Current    decimal.Decimal
	Days30     decimal.Decimal
	Days60     decimal.Decimal
	Days90Plus decimal.Decimal
}

func (b *AgingBuckets) Add(bucket AgingBucket, amount decimal.Decimal) {
	switch bucket {
	case AgingBucketCurrent:
		b.Current = b.Current.Add(amount)
	case AgingBucket30:
		b.Days30 = b.Days30.Add(amount)
	case AgingBucket60:
		b.Days60 = b.Days60.Add(amount)
	case AgingBucket90Plus:
		b.Days90Plus = b.Days90Plus.Add(amount)
	}
}

func (b AgingBuckets) Total() decimal.Decimal {
	return b.Current.Add(b.Days30).Add(b.Days60).Add(b.Days90Plus)
}

type AgingReport struct {
	AccountID uuid.UUID
	AsOf      time.Time
	Buckets   AgingBuckets
	Total     decimal.Decimal
}

type AlertLevel string

const (
	AlertLevelWarning   AlertLevel = "warning"
	AlertLevelCritical  AlertLevel = "critical"
	AlertLevelOverLimit AlertLevel = "over_limit"
)

type CreditAlert struct {
	AccountID      uuid.UUID
	Level          AlertLevel
	Balance        decimal.Decimal
	CreditLimit    decimal.Decimal
	UtilizationPct decimal.Decimal
	ThresholdPct   decimal.Decimal
	Message        string
}

type CreditCheck struct {
	Valid           bool
	AvailableCredit decimal.Decimal
	Message         string
}

type BalanceCheck struct {
	AccountID         uuid.UUID
	StoredBalance     decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	Tolerance         decimal.Decimal
	Accurate          bool
}

type BalanceFix struct {
	BalanceCheck
	Fixed bool
}
