package domain

import "github.com/shopspring/decimal"

// BalanceTolerance is the epsilon used by every balance and statement
// accuracy comparison.
var BalanceTolerance = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinTolerance reports whether |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// UtilizationPct returns balance as a percentage of limit, rounded to two places.
// A zero limit yields zero; callers decide what that means.
func UtilizationPct(balance, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	return balance.Div(limit).Mul(hundred).Round(2)
}
