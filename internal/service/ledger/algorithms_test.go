package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func activeAccount(limit, balance string) *domain.CustomerAccount {
	return &domain.CustomerAccount{
		ID:               uuid.New(),
		Status:           domain.AccountStatusActive,
		CreditLimit:      d(limit),
		CurrentBalance:   d(balance),
		PaymentTermsDays: 30,
	}
}

func TestCheckCredit(t *testing.T) {
	tests := []struct {
		name      string
		status    domain.AccountStatus
		balance   string
		amount    string
		wantValid bool
		wantErr   error
	}{
		{"within limit", domain.AccountStatusActive, "200", "300", true, nil},
		{"exactly available", domain.AccountStatusActive, "200", "800", true, nil},
		{"one cent over", domain.AccountStatusActive, "200", "800.01", false, domain.ErrInsufficientCredit},
		{"zero amount", domain.AccountStatusActive, "0", "0", false, domain.ErrInvalidAmount},
		{"negative amount", domain.AccountStatusActive, "0", "-5", false, domain.ErrInvalidAmount},
		{"pending account", domain.AccountStatusPending, "0", "10", false, domain.ErrInvalidState},
		{"suspended account", domain.AccountStatusSuspended, "0", "10", false, domain.ErrInvalidState},
		{"closed account", domain.AccountStatusClosed, "0", "10", false, domain.ErrClosedAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := activeAccount("1000", tt.balance)
			a.Status = tt.status

			check, err := checkCredit(a, d(tt.amount))
			assert.Equal(t, tt.wantValid, check.Valid)
			assert.True(t, a.AvailableCredit().Equal(check.AvailableCredit))
			assert.NotEmpty(t, check.Message)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func unpaid(amount, allocated string) domain.UnpaidCharge {
	return domain.UnpaidCharge{
		Charge:    domain.AccountTransaction{ID: uuid.New(), Type: domain.TransactionTypeCharge, Amount: d(amount)},
		Allocated: d(allocated),
	}
}

func TestPlanAllocations(t *testing.T) {
	t.Run("oldest charges first", func(t *testing.T) {
		charges := []domain.UnpaidCharge{unpaid("300", "0"), unpaid("400", "0"), unpaid("500", "0")}

		plan, left := planAllocations(d("700"), charges)

		require.Len(t, plan, 2)
		assert.Equal(t, charges[0].Charge.ID, plan[0].ChargeID)
		assert.True(t, plan[0].Amount.Equal(d("300")))
		assert.Equal(t, charges[1].Charge.ID, plan[1].ChargeID)
		assert.True(t, plan[1].Amount.Equal(d("400")))
		assert.True(t, left.IsZero())
	})

	t.Run("partial charge", func(t *testing.T) {
		charges := []domain.UnpaidCharge{unpaid("1000", "0")}

		plan, left := planAllocations(d("400"), charges)

		require.Len(t, plan, 1)
		assert.True(t, plan[0].Amount.Equal(d("400")))
		assert.True(t, left.IsZero())
	})

	t.Run("uses remainder of partly paid charge", func(t *testing.T) {
		charges := []domain.UnpaidCharge{unpaid("100", "60"), unpaid("50", "0")}

		plan, left := planAllocations(d("70"), charges)

		require.Len(t, plan, 2)
		assert.True(t, plan[0].Amount.Equal(d("40")))
		assert.True(t, plan[1].Amount.Equal(d("30")))
		assert.True(t, left.IsZero())
	})

	t.Run("skips settled charges", func(t *testing.T) {
		charges := []domain.UnpaidCharge{unpaid("100", "100"), unpaid("50", "0")}

		plan, _ := planAllocations(d("20"), charges)

		require.Len(t, plan, 1)
		assert.Equal(t, charges[1].Charge.ID, plan[0].ChargeID)
	})

	t.Run("overpayment leaves remainder", func(t *testing.T) {
		charges := []domain.UnpaidCharge{unpaid("500", "0")}

		plan, left := planAllocations(d("800"), charges)

		require.Len(t, plan, 1)
		assert.True(t, plan[0].Amount.Equal(d("500")))
		assert.True(t, left.Equal(d("300")))
	})

	t.Run("no charges", func(t *testing.T) {
		plan, left := planAllocations(d("25"), nil)
		assert.Empty(t, plan)
		assert.True(t, left.Equal(d("25")))
	})
}

func TestPlanAllocations_NeverExceedsRemainder(t *testing.T) {
	charges := []domain.UnpaidCharge{
		unpaid("10.10", "0"), unpaid("0.99", "0.50"), unpaid("250", "249.99"), unpaid("75.25", "0"),
	}
	for _, amount := range []string{"0.01", "5", "10.59", "11", "86.00", "1000"} {
		plan, left := planAllocations(d(amount), charges)

		placed := decimal.Zero
		for i, step := range plan {
			assert.True(t, step.Amount.IsPositive())
			assert.True(t, step.Amount.LessThanOrEqual(charges[i].Remaining()), "amount %s step %d", amount, i)
			placed = placed.Add(step.Amount)
		}
		assert.True(t, placed.Add(left).Equal(d(amount)))
	}
}

func TestBuildAging_Boundaries(t *testing.T) {
	asOf := time.Date(2026, 3, 31, 15, 0, 0, 0, time.UTC)
	a := activeAccount("10000", "0")

	tests := []struct {
		name       string
		daysPast   int
		wantBucket domain.AgingBucket
	}{
		{"not yet due", -1, domain.AgingBucketCurrent},
		{"due today", 0, domain.AgingBucket30},
		{"30 days", 30, domain.AgingBucket30},
		{"31 days", 31, domain.AgingBucket60},
		{"60 days", 60, domain.AgingBucket60},
		{"61 days", 61, domain.AgingBucket90Plus},
		{"a year", 365, domain.AgingBucket90Plus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC).AddDate(0, 0, -tt.daysPast)
			c := unpaid("100", "25")
			c.Charge.DueDate = &due

			got := buildAging(a, []domain.UnpaidCharge{c}, asOf)

			var want domain.AgingBuckets
			want.Add(tt.wantBucket, d("75"))
			assert.True(t, want.Current.Equal(got.Current))
			assert.True(t, want.Days30.Equal(got.Days30))
			assert.True(t, want.Days60.Equal(got.Days60))
			assert.True(t, want.Days90Plus.Equal(got.Days90Plus))
		})
	}
}

func TestBuildAging_DefaultsDueDateFromTerms(t *testing.T) {
	a := activeAccount("10000", "0")
	a.PaymentTermsDays = 15
	created := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	c := unpaid("40", "0")
	c.Charge.CreatedAt = created

	// due 2026-01-16; 2026-01-15 is one day before
	got := buildAging(a, []domain.UnpaidCharge{c}, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.True(t, got.Current.Equal(d("40")))

	got = buildAging(a, []domain.UnpaidCharge{c}, time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC))
	assert.True(t, got.Days30.Equal(d("40")))
}

func TestBuildAging_SkipsPaidCharges(t *testing.T) {
	a := activeAccount("10000", "0")
	got := buildAging(a, []domain.UnpaidCharge{unpaid("40", "40")}, time.Now())
	assert.True(t, got.Total().IsZero())
}

func TestCheckAlert(t *testing.T) {
	tests := []struct {
		name      string
		limit     string
		balance   string
		threshold string
		want      domain.AlertLevel
	}{
		{"below threshold", "1000", "799.90", "80", ""},
		{"just below threshold rounds up", "1000", "799.99", "80", ""},
		{"at threshold", "1000", "800", "80", domain.AlertLevelWarning},
		{"just below limit rounds up", "1000", "999.99", "80", domain.AlertLevelWarning},
		{"fractional threshold", "3", "1", "33.333", domain.AlertLevelWarning},
		{"custom threshold", "1000", "500", "50", domain.AlertLevelWarning},
		{"fully used", "1000", "1000", "80", domain.AlertLevelCritical},
		{"over limit", "1000", "1000.01", "80", domain.AlertLevelOverLimit},
		{"zero limit with balance", "0", "1", "80", domain.AlertLevelOverLimit},
		{"zero limit no balance", "0", "0", "80", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := checkAlert(activeAccount(tt.limit, tt.balance), d(tt.threshold))
			if tt.want == "" {
				assert.Nil(t, alert)
				return
			}
			require.NotNil(t, alert)
			assert.Equal(t, tt.want, alert.Level)
			assert.NotEmpty(t, alert.Message)
		})
	}
}

func TestCheckAlert_ReportsRoundedUtilization(t *testing.T) {
	alert := checkAlert(activeAccount("1000", "999.99"), d("80"))
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertLevelWarning, alert.Level)
	assert.True(t, alert.UtilizationPct.Equal(d("100")))
	assert.Contains(t, alert.Message, "100.00%")
}

func entry(kind domain.TransactionType, amount string, at time.Time) domain.AccountTransaction {
	return domain.AccountTransaction{ID: uuid.New(), Type: kind, Amount: d(amount), CreatedAt: at}
}

func TestSummarizePeriod(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	txns := []domain.AccountTransaction{
		entry(domain.TransactionTypeCharge, "500", start.Add(-time.Hour)),
		entry(domain.TransactionTypePayment, "100", start.Add(-time.Minute)),
		entry(domain.TransactionTypeCharge, "200", start),
		entry(domain.TransactionTypeAdjustment, "15", start.Add(48*time.Hour)),
		entry(domain.TransactionTypeAdjustment, "-5", start.Add(72*time.Hour)),
		entry(domain.TransactionTypePayment, "300", end.Add(23*time.Hour)),
		entry(domain.TransactionTypeWriteOff, "10", end.Add(23*time.Hour+59*time.Minute)),
		entry(domain.TransactionTypeCharge, "999", end.AddDate(0, 0, 1)),
	}

	p := summarizePeriod(txns, start, end)

	assert.True(t, p.Opening.Equal(d("400")))
	assert.True(t, p.Charges.Equal(d("215")))
	assert.True(t, p.Payments.Equal(d("315")))
	assert.True(t, p.Closing().Equal(d("300")))
	assert.Len(t, p.Entries, 5)
}

func TestReconcileAging_SumsToClosing(t *testing.T) {
	buckets := domain.AgingBuckets{Current: d("10"), Days30: d("20"), Days60: d("30"), Days90Plus: d("40")}

	got := reconcileAging(buckets, d("85"))

	assert.True(t, got.Total().Equal(d("85")))
	assert.True(t, got.Current.Equal(d("-5")))
	assert.True(t, got.Days90Plus.Equal(d("40")))
}

func TestCheckStatement(t *testing.T) {
	st := &domain.AccountStatement{
		ID:             uuid.New(),
		OpeningBalance: d("100"),
		TotalCharges:   d("50"),
		TotalPayments:  d("30"),
		ClosingBalance: d("120"),
		Aging:          domain.AgingBuckets{Current: d("100"), Days30: d("20")},
	}

	check := checkStatement(st, decimal.Zero)
	assert.True(t, check.Accurate)
	assert.True(t, check.ExpectedClosing.Equal(d("120")))

	st.Aging.Days60 = d("0.02")
	check = checkStatement(st, decimal.Zero)
	assert.True(t, check.BalanceAccurate)
	assert.False(t, check.AgingAccurate)
	assert.False(t, check.Accurate)

	check = checkStatement(st, d("0.05"))
	assert.True(t, check.Accurate)
}

func TestCompareBalance(t *testing.T) {
	a := activeAccount("1000", "100.00")

	check := compareBalance(a, d("100.01"), decimal.Zero)
	assert.True(t, check.Accurate)
	assert.True(t, check.Tolerance.Equal(domain.BalanceTolerance))

	check = compareBalance(a, d("99.98"), decimal.Zero)
	assert.False(t, check.Accurate)
	assert.True(t, check.Difference.Equal(d("0.02")))
}

func TestDefaultPeriodStart(t *testing.T) {
	end := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	opened := time.Date(2026, 1, 10, 14, 30, 0, 0, time.UTC)
	a := activeAccount("1000", "0")

	a.OpenedAt = nil
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), defaultPeriodStart(a, nil, end))

	a.OpenedAt = &opened
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), defaultPeriodStart(a, nil, end))

	latest := &domain.AccountStatement{PeriodEnd: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), defaultPeriodStart(a, latest, end))
}
