package feature

import (
	"github.com/prorata-io/prorata/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreditSchemaItem maps one underlying metered feature into a credit system
// at a fixed conversion ratio.
type CreditSchemaItem struct {
	MeteredFeatureID string          `json:"metered_feature_id"`
	CreditCost       decimal.Decimal `json:"credit_cost"`
}

// Feature is a billable capability. Metered features track raw usage;
// credit systems aggregate usage of their schema features into credit units.
type Feature struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Type         types.FeatureType  `json:"type"`
	CreditSchema []CreditSchemaItem `json:"credit_schema,omitempty"`
	types.BaseModel
}

func (f *Feature) IsMetered() bool {
	return f.Type == types.FEATURE_TYPE_METERED
}

func (f *Feature) IsCreditSystem() bool {
	return f.Type == types.FEATURE_TYPE_CREDIT_SYSTEM
}

// ContainsFeature reports whether a credit system converts usage of the given
// metered feature.
func (f *Feature) ContainsFeature(meteredFeatureID string) bool {
	if !f.IsCreditSystem() {
		return false
	}
	return lo.ContainsBy(f.CreditSchema, func(item CreditSchemaItem) bool {
		return item.MeteredFeatureID == meteredFeatureID
	})
}

// ToCreditAmount converts a raw metered amount into credit units using the
// schema's conversion ratio. Returns zero if the feature is not part of the
// credit system.
func (f *Feature) ToCreditAmount(meteredFeatureID string, amount decimal.Decimal) decimal.Decimal {
	for _, item := range f.CreditSchema {
		if item.MeteredFeatureID == meteredFeatureID {
			return amount.Mul(item.CreditCost)
		}
	}
	return decimal.Zero
}
