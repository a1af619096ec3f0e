package proration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coefficient is the fraction of the window remaining at now, in [0, 1].
// Before the window starts it is 1, after it ends it is 0.
func Coefficient(w Window, now time.Time) decimal.Decimal {
	if !now.After(w.Start) {
		return decimal.NewFromInt(1)
	}
	if !now.Before(w.End) {
		return decimal.Zero
	}
	remaining := decimal.NewFromInt(int64(w.End.Sub(now)))
	total := decimal.NewFromInt(int64(w.Duration()))
	return remaining.Div(total)
}

// CalculateProrationAmount scales amount by the unused share of the window.
// Negative results are clamped to zero unless allowNegative is set, which
// credit calculations for unused time rely on.
func CalculateProrationAmount(amount decimal.Decimal, w Window, now time.Time, allowNegative bool) decimal.Decimal {
	prorated := amount.Mul(Coefficient(w, now))
	if prorated.IsNegative() && !allowNegative {
		return decimal.Zero
	}
	return prorated
}
