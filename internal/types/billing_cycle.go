package types

import (
	"time"

	ierr "github.com/prorata-io/prorata/internal/errors"
)

// maxAlignIterations bounds the anchor alignment descent. A misconfigured
// anchor (e.g. far in the future with a weekly period) fails fast instead of
// spinning. The month-length pinning below makes interval length non-uniform,
// so a closed-form modular calculation would drift for end-of-month anchors.
const maxAlignIterations = 10000

// thresholds below which a computed anchor is considered degenerate,
// i.e. equal to or a moment away from "now"
const (
	anchorNaturalTolerance = time.Minute
	anchorNowTolerance     = 20 * time.Second
)

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonthsPinned shifts t by the given number of calendar months (negative
// for the past), preserving time-of-day. If t falls on the last calendar day
// of its month the result is pinned to the last day of the target month, so
// Sep 30 + 1 month = Oct 31 rather than Oct 30. Days that do not exist in the
// target month are clamped to its last day.
func addMonthsPinned(t time.Time, months int) time.Time {
	t = t.UTC()
	year, month, day := t.Date()

	anchor := time.Date(year, month+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)

	lastOfSource := daysInMonth(year, month)
	lastOfTarget := daysInMonth(anchor.Year(), anchor.Month())

	targetDay := day
	if day == lastOfSource || day > lastOfTarget {
		targetDay = lastOfTarget
	}

	return time.Date(anchor.Year(), anchor.Month(), targetDay,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// AddBillingPeriod returns the timestamp exactly count periods after t,
// preserving end-of-month anchoring for month based periods. Week periods are
// exact 7-day shifts.
func AddBillingPeriod(t time.Time, period BillingPeriod, count int) (time.Time, error) {
	if count <= 0 {
		count = 1
	}
	switch period {
	case BILLING_PERIOD_WEEKLY:
		return t.UTC().AddDate(0, 0, 7*count), nil
	case BILLING_PERIOD_MONTHLY, BILLING_PERIOD_QUARTERLY,
		BILLING_PERIOD_HALF_YEARLY, BILLING_PERIOD_ANNUAL:
		return addMonthsPinned(t, period.Months()*count), nil
	default:
		return time.Time{}, ierr.NewErrorf("invalid billing period: %s", period).
			WithHint("Billing period must be one of WEEKLY, MONTHLY, QUARTERLY, HALF_YEARLY, ANNUAL").
			Mark(ierr.ErrValidation)
	}
}

// SubtractBillingPeriod returns the timestamp exactly count periods before t,
// preserving end-of-month anchoring, so Oct 31 - 1 month = Sep 30 and
// Sep 30 - 1 month = Aug 31.
func SubtractBillingPeriod(t time.Time, period BillingPeriod, count int) (time.Time, error) {
	if count <= 0 {
		count = 1
	}
	switch period {
	case BILLING_PERIOD_WEEKLY:
		return t.UTC().AddDate(0, 0, -7*count), nil
	case BILLING_PERIOD_MONTHLY, BILLING_PERIOD_QUARTERLY,
		BILLING_PERIOD_HALF_YEARLY, BILLING_PERIOD_ANNUAL:
		return addMonthsPinned(t, -period.Months()*count), nil
	default:
		return time.Time{}, ierr.NewErrorf("invalid billing period: %s", period).
			WithHint("Billing period must be one of WEEKLY, MONTHLY, QUARTERLY, HALF_YEARLY, ANNUAL").
			Mark(ierr.ErrValidation)
	}
}

// NextBillingDate returns the natural next cycle boundary one period after now.
func NextBillingDate(now time.Time, period BillingPeriod, count int) (time.Time, error) {
	return AddBillingPeriod(now, period, count)
}

// AlignBillingAnchor finds the latest cycle boundary at or before now that
// lies on the recurring schedule defined by anchor, by repeatedly subtracting
// one period from a cursor seeded at anchor. The descent is bounded by
// maxAlignIterations.
//
// If the boundary is degenerate - within a minute of the natural next billing
// date, or within 20 seconds of now itself - the function returns the natural
// date when alwaysReturn is set, and the zero time otherwise, signalling the
// caller to let the payment processor fall back to its default cycle.
func AlignBillingAnchor(anchor time.Time, period BillingPeriod, count int, now time.Time, alwaysReturn bool) (time.Time, error) {
	if err := period.Validate(); err != nil {
		return time.Time{}, err
	}

	now = now.UTC()
	natural, err := NextBillingDate(now, period, count)
	if err != nil {
		return time.Time{}, err
	}

	maxIterationsErr := func() error {
		return ierr.NewError("max iterations reached aligning billing anchor").
			WithHint("The billing anchor is too far from the current time for its period").
			WithReportableDetails(map[string]interface{}{
				"anchor": anchor,
				"period": period,
				"count":  count,
			}).
			Mark(ierr.ErrValidation)
	}

	cursor := anchor.UTC()
	iterations := 0
	for cursor.After(now) {
		prev, err := SubtractBillingPeriod(cursor, period, count)
		if err != nil {
			return time.Time{}, err
		}
		cursor = prev

		iterations++
		if iterations > maxAlignIterations {
			return time.Time{}, maxIterationsErr()
		}
	}
	// Anchors in the past walk forward to the latest boundary not after now.
	for {
		step, err := AddBillingPeriod(cursor, period, count)
		if err != nil {
			return time.Time{}, err
		}
		if step.After(now) {
			break
		}
		cursor = step

		iterations++
		if iterations > maxAlignIterations {
			return time.Time{}, maxIterationsErr()
		}
	}

	next, err := AddBillingPeriod(cursor, period, count)
	if err != nil {
		return time.Time{}, err
	}

	nearNatural := absDuration(natural.Sub(next)) < anchorNaturalTolerance
	nearNow := absDuration(now.Sub(cursor)) < anchorNowTolerance
	if nearNatural || nearNow {
		if alwaysReturn {
			return natural, nil
		}
		return time.Time{}, nil
	}

	return cursor, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
