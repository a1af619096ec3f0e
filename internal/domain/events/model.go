package events

import (
	"time"

	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

// UsageEvent is a single usage report for one customer and feature.
type UsageEvent struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	FeatureID  string          `json:"feature_id"`
	// EntityID scopes the usage to one entity (a seat, a workspace) on
	// entity scoped entitlements.
	EntityID string          `json:"entity_id,omitempty"`
	Value    decimal.Decimal `json:"value"`
	// Set replaces total usage with Value instead of adding to it. The
	// applied deduction becomes the delta against current usage.
	Set            bool              `json:"set,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Properties     map[string]string `json:"properties,omitempty"`
	TenantID       string            `json:"tenant_id"`
	EnvironmentID  string            `json:"environment_id,omitempty"`
}

// NewUsageEvent fills identifiers and defaults for an incoming event.
func NewUsageEvent(customerID, featureID string, value decimal.Decimal, tenantID string) *UsageEvent {
	return &UsageEvent{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		CustomerID: customerID,
		FeatureID:  featureID,
		Value:      value,
		Timestamp:  time.Now().UTC(),
		TenantID:   tenantID,
	}
}
