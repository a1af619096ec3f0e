package rollover

import (
	"sort"
	"time"

	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

// Rollover is one bucket of unused allowance carried across a reset. Buckets
// expire independently and are consumed before the live balance.
type Rollover struct {
	ID            string                     `json:"id"`
	EntitlementID string                     `json:"entitlement_id"`
	Balance       decimal.Decimal            `json:"balance"`
	Entities      map[string]decimal.Decimal `json:"entities,omitempty"`
	ExpiresAt     time.Time                  `json:"expires_at"`
	types.BaseModel
}

// Config is the rollover policy attached to an entitlement.
type Config struct {
	// Max caps the total rolled over balance across all live buckets.
	// Nil means unbounded accumulation.
	Max *decimal.Decimal `json:"max,omitempty"`
	// Duration and DurationCount set how long a bucket lives.
	Duration      types.BillingPeriod `json:"duration"`
	DurationCount int                 `json:"duration_count"`
}

func (r *Rollover) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Total sums the bucket balance, preferring entity balances when present.
func (r *Rollover) Total() decimal.Decimal {
	if len(r.Entities) == 0 {
		return r.Balance
	}
	total := decimal.Zero
	for _, b := range r.Entities {
		total = total.Add(b)
	}
	return total
}

func (r *Rollover) entityIDs() []string {
	ids := make([]string, 0, len(r.Entities))
	for id := range r.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortByExpiry orders buckets oldest expiry first, the order in which both
// deduction and maximum clearing consume them.
func SortByExpiry(rollovers []*Rollover) {
	sort.SliceStable(rollovers, func(i, j int) bool {
		return rollovers[i].ExpiresAt.Before(rollovers[j].ExpiresAt)
	})
}
