package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityBalanceView is one entity's slice of a feature balance.
type EntityBalanceView struct {
	Balance    decimal.Decimal `json:"balance"`
	Adjustment decimal.Decimal `json:"adjustment"`
}

// FeatureBalance is the composed read side view of one feature's balance:
// live ledger balance plus active rollovers, with per entity detail when the
// entitlement is entity scoped.
type FeatureBalance struct {
	FeatureID string `json:"feature_id"`
	// Unlimited features report no numeric balances.
	Unlimited       bool                          `json:"unlimited"`
	Balance         decimal.Decimal               `json:"balance"`
	RolloverBalance decimal.Decimal               `json:"rollover_balance"`
	Allowance       decimal.Decimal               `json:"allowance"`
	Usage           decimal.Decimal               `json:"usage"`
	Overage         decimal.Decimal               `json:"overage"`
	Entities        map[string]*EntityBalanceView `json:"entities,omitempty"`
	// PrepaidQuantity is how many units the customer bought up front on
	// usage-in-advance prices for this feature.
	PrepaidQuantity decimal.Decimal `json:"prepaid_quantity"`
	NextResetAt     *time.Time      `json:"next_reset_at,omitempty"`
}

// CustomerBalancesResponse is the full balance sheet of a customer.
type CustomerBalancesResponse struct {
	CustomerID string            `json:"customer_id"`
	Balances   []*FeatureBalance `json:"balances"`
}
