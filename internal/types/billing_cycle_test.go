package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func TestAddBillingPeriod_EndOfMonthPinning(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		period   BillingPeriod
		count    int
		expected time.Time
	}{
		{
			name:     "sep 30 plus one month pins to oct 31",
			start:    date(2025, time.September, 30),
			period:   BILLING_PERIOD_MONTHLY,
			count:    1,
			expected: date(2025, time.October, 31),
		},
		{
			name:     "jan 31 plus one month clamps to feb 28",
			start:    date(2025, time.January, 31),
			period:   BILLING_PERIOD_MONTHLY,
			count:    1,
			expected: date(2025, time.February, 28),
		},
		{
			name:     "jan 31 plus one month clamps to feb 29 in leap year",
			start:    date(2024, time.January, 31),
			period:   BILLING_PERIOD_MONTHLY,
			count:    1,
			expected: date(2024, time.February, 29),
		},
		{
			name:     "feb 28 is last day so pins to mar 31",
			start:    date(2025, time.February, 28),
			period:   BILLING_PERIOD_MONTHLY,
			count:    1,
			expected: date(2025, time.March, 31),
		},
		{
			name:     "mid month day is preserved",
			start:    date(2025, time.January, 15),
			period:   BILLING_PERIOD_MONTHLY,
			count:    1,
			expected: date(2025, time.February, 15),
		},
		{
			name:     "quarterly spans three months",
			start:    date(2025, time.January, 15),
			period:   BILLING_PERIOD_QUARTERLY,
			count:    1,
			expected: date(2025, time.April, 15),
		},
		{
			name:     "annual preserves date",
			start:    date(2025, time.March, 10),
			period:   BILLING_PERIOD_ANNUAL,
			count:    1,
			expected: date(2026, time.March, 10),
		},
		{
			name:     "weekly is an exact seven day shift",
			start:    date(2025, time.January, 30),
			period:   BILLING_PERIOD_WEEKLY,
			count:    2,
			expected: date(2025, time.February, 13),
		},
		{
			name:     "count below one defaults to one",
			start:    date(2025, time.January, 15),
			period:   BILLING_PERIOD_MONTHLY,
			count:    0,
			expected: date(2025, time.February, 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddBillingPeriod(tt.start, tt.period, tt.count)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s got %s", tt.expected, got)
		})
	}
}

func TestAddBillingPeriod_InvalidPeriod(t *testing.T) {
	_, err := AddBillingPeriod(date(2025, time.January, 1), BillingPeriod("DAILY"), 1)
	require.Error(t, err)
}

func TestSubtractBillingPeriod(t *testing.T) {
	got, err := SubtractBillingPeriod(date(2025, time.October, 31), BILLING_PERIOD_MONTHLY, 1)
	require.NoError(t, err)
	assert.True(t, date(2025, time.September, 30).Equal(got))

	got, err = SubtractBillingPeriod(date(2025, time.March, 31), BILLING_PERIOD_MONTHLY, 1)
	require.NoError(t, err)
	assert.True(t, date(2025, time.February, 28).Equal(got))
}

func TestBillingPeriod_MidMonthRoundTrip(t *testing.T) {
	start := date(2025, time.January, 15)
	forward, err := AddBillingPeriod(start, BILLING_PERIOD_MONTHLY, 1)
	require.NoError(t, err)
	back, err := SubtractBillingPeriod(forward, BILLING_PERIOD_MONTHLY, 1)
	require.NoError(t, err)
	assert.True(t, start.Equal(back))
}

func TestAlignBillingAnchor_PastAnchor(t *testing.T) {
	anchor := date(2025, time.January, 10)
	now := date(2025, time.March, 25)

	got, err := AlignBillingAnchor(anchor, BILLING_PERIOD_MONTHLY, 1, now, false)
	require.NoError(t, err)
	assert.True(t, date(2025, time.March, 10).Equal(got))
}

func TestAlignBillingAnchor_FutureAnchor(t *testing.T) {
	anchor := date(2025, time.May, 10)
	now := date(2025, time.March, 25)

	got, err := AlignBillingAnchor(anchor, BILLING_PERIOD_MONTHLY, 1, now, false)
	require.NoError(t, err)
	assert.True(t, date(2025, time.March, 10).Equal(got))
}

func TestAlignBillingAnchor_NeverAfterNow(t *testing.T) {
	anchors := []time.Time{
		date(2024, time.June, 3),
		date(2025, time.March, 31),
		date(2026, time.December, 25),
	}
	now := date(2025, time.July, 14)

	for _, anchor := range anchors {
		got, err := AlignBillingAnchor(anchor, BILLING_PERIOD_MONTHLY, 1, now, false)
		require.NoError(t, err)
		if !got.IsZero() {
			assert.False(t, got.After(now), "aligned anchor %s is after now %s", got, now)
		}
	}
}

func TestAlignBillingAnchor_EndOfMonthSchedule(t *testing.T) {
	anchor := date(2025, time.August, 31)
	now := date(2025, time.October, 15)

	got, err := AlignBillingAnchor(anchor, BILLING_PERIOD_MONTHLY, 1, now, false)
	require.NoError(t, err)
	assert.True(t, date(2025, time.September, 30).Equal(got))
}

func TestAlignBillingAnchor_DegenerateAnchor(t *testing.T) {
	now := date(2025, time.March, 25)

	// Anchor equal to now is indistinguishable from the processor's default
	// cycle. Without alwaysReturn the caller gets the zero time.
	got, err := AlignBillingAnchor(now, BILLING_PERIOD_MONTHLY, 1, now, false)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	// With alwaysReturn the natural next billing date is returned instead.
	got, err = AlignBillingAnchor(now, BILLING_PERIOD_MONTHLY, 1, now, true)
	require.NoError(t, err)
	assert.True(t, date(2025, time.April, 25).Equal(got))
}

func TestAlignBillingAnchor_MaxIterations(t *testing.T) {
	anchor := date(2025, time.January, 1).AddDate(250, 0, 0)
	now := date(2025, time.January, 1)

	_, err := AlignBillingAnchor(anchor, BILLING_PERIOD_WEEKLY, 1, now, false)
	require.Error(t, err)
}

func TestNextBillingDate(t *testing.T) {
	got, err := NextBillingDate(date(2025, time.September, 30), BILLING_PERIOD_MONTHLY, 1)
	require.NoError(t, err)
	assert.True(t, date(2025, time.October, 31).Equal(got))
}
