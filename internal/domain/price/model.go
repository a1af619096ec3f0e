package price

import (
	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

// Price is a single charge attached to a product. Fixed prices bill a flat
// amount per cycle; usage prices bill against a feature, either prepaid
// (quantity purchased up front) or pay-per-use in arrear.
type Price struct {
	ID                 string              `json:"id"`
	ProductID          string              `json:"product_id"`
	FeatureID          string              `json:"feature_id,omitempty"`
	Type               types.PriceType     `json:"type"`
	BillingCadence     types.BillingCadence `json:"billing_cadence"`
	BillingPeriod      types.BillingPeriod `json:"billing_period,omitempty"`
	BillingPeriodCount int                 `json:"billing_period_count,omitempty"`
	Currency           string              `json:"currency"`
	Amount             decimal.Decimal     `json:"amount"`
	// BillingUnits is the pack size for prepaid usage prices: Amount buys
	// BillingUnits units of the feature.
	BillingUnits decimal.Decimal `json:"billing_units,omitempty"`
	// Prorated marks continued-use arrear prices (e.g. seats) whose quantity
	// changes produce prorated invoice items mid cycle.
	Prorated bool `json:"prorated,omitempty"`
	types.BaseModel
}

func (p *Price) IsFixed() bool {
	return p.Type == types.PRICE_TYPE_FIXED
}

func (p *Price) IsUsage() bool {
	return p.Type == types.PRICE_TYPE_USAGE
}

// IsRecurring reports whether the price bills on a cycle rather than once.
func (p *Price) IsRecurring() bool {
	return p.BillingPeriod != ""
}

// GetBillingType classifies the price for line item construction.
func (p *Price) GetBillingType() types.BillingType {
	if p.IsFixed() {
		if !p.IsRecurring() {
			return types.BILLING_TYPE_ONE_OFF
		}
		return types.BILLING_TYPE_FIXED_CYCLE
	}
	if p.BillingCadence == types.BILLING_CADENCE_ADVANCE {
		return types.BILLING_TYPE_USAGE_IN_ADVANCE
	}
	if p.Prorated {
		return types.BILLING_TYPE_IN_ARREAR_PRORATED
	}
	return types.BILLING_TYPE_USAGE_IN_ARREAR
}

// GetUsageModel is the customer facing classification shown on previews.
func (p *Price) GetUsageModel() types.UsageModel {
	if p.GetBillingType() == types.BILLING_TYPE_USAGE_IN_ADVANCE {
		return types.USAGE_MODEL_PREPAID
	}
	return types.USAGE_MODEL_PAY_PER_USE
}

// IsEmpty reports whether the price charges nothing. Empty prices act as
// placeholders for pending invoice items on continued-use features.
func (p *Price) IsEmpty() bool {
	return p.Amount.IsZero()
}

// PrepaidCost returns the cost of buying quantity units of a prepaid price.
// Quantity is billed in whole packs of BillingUnits.
func (p *Price) PrepaidCost(quantity decimal.Decimal) decimal.Decimal {
	if p.BillingUnits.IsZero() || p.BillingUnits.Equal(decimal.NewFromInt(1)) {
		return p.Amount.Mul(quantity)
	}
	packs := quantity.Div(p.BillingUnits).Ceil()
	return p.Amount.Mul(packs)
}

// UnitCost returns the per-unit overage rate for pay-per-use prices.
func (p *Price) UnitCost() decimal.Decimal {
	if p.BillingUnits.IsZero() {
		return p.Amount
	}
	return p.Amount.Div(p.BillingUnits)
}
