package entitlement

import (
	"sort"
	"time"

	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

// EntityBalance is the per-entity slice of a ledger record's balance, used
// when an allowance is granted per seat, per workspace or similar.
type EntityBalance struct {
	Balance    decimal.Decimal `json:"balance"`
	Adjustment decimal.Decimal `json:"adjustment"`
}

// Entitlement is one ledger record: a customer's grant of a feature under a
// specific product instance. Balance counts remaining allowance and may go
// negative when overage is allowed. Adjustment accumulates manual credits and
// debits that survive balance resets.
type Entitlement struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customer_id"`
	CustomerProductID string          `json:"customer_product_id"`
	FeatureID         string          `json:"feature_id"`
	// EntityFeatureID, when set, shards the balance per entity of that
	// feature instead of keeping a single master balance.
	EntityFeatureID string                    `json:"entity_feature_id,omitempty"`
	AllowanceType   types.AllowanceType       `json:"allowance_type"`
	Allowance       decimal.Decimal           `json:"allowance"`
	Balance         decimal.Decimal           `json:"balance"`
	Adjustment      decimal.Decimal           `json:"adjustment"`
	Entities        map[string]*EntityBalance `json:"entities,omitempty"`
	// UsageAllowed permits the balance to go negative, producing overage.
	UsageAllowed bool `json:"usage_allowed"`
	// UsageLimit caps total usage on an overage-enabled record. Nil means no cap.
	UsageLimit    *decimal.Decimal    `json:"usage_limit,omitempty"`
	Interval      types.BillingPeriod `json:"interval,omitempty"`
	IntervalCount int                 `json:"interval_count,omitempty"`
	NextResetAt   *time.Time          `json:"next_reset_at,omitempty"`
	types.BaseModel
}

func (e *Entitlement) IsUnlimited() bool {
	return e.AllowanceType == types.ALLOWANCE_TYPE_UNLIMITED
}

func (e *Entitlement) IsEntityScoped() bool {
	return e.EntityFeatureID != ""
}

// TotalBalance sums the master balance or, for entity scoped records, every
// entity balance.
func (e *Entitlement) TotalBalance() decimal.Decimal {
	if !e.IsEntityScoped() {
		return e.Balance
	}
	total := decimal.Zero
	for _, eb := range e.Entities {
		total = total.Add(eb.Balance)
	}
	return total
}

// TotalAllowance is the granted allowance across the record, counting entity
// scoped allowances once per entity.
func (e *Entitlement) TotalAllowance() decimal.Decimal {
	if !e.IsEntityScoped() {
		return e.Allowance
	}
	return e.Allowance.Mul(decimal.NewFromInt(int64(len(e.Entities))))
}

// TotalUsage is how much of the allowance has been consumed. Negative
// balances count as usage beyond the allowance.
func (e *Entitlement) TotalUsage() decimal.Decimal {
	return e.TotalAllowance().Sub(e.TotalBalance())
}

// MinBalance is the floor the balance may reach under the usage limit.
// Returns nil when there is no cap.
func (e *Entitlement) MinBalance() *decimal.Decimal {
	if e.UsageLimit == nil {
		return nil
	}
	min := e.Allowance.Sub(*e.UsageLimit)
	return &min
}

// EntityIDs returns the entity keys in deterministic order.
func (e *Entitlement) EntityIDs() []string {
	ids := make([]string, 0, len(e.Entities))
	for id := range e.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
