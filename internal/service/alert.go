package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

const alertTopic = "balance_alerts"

// balanceAlert is published when a feature's remaining allowance share drops
// below the configured threshold.
type balanceAlert struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	FeatureID  string          `json:"feature_id"`
	Balance    decimal.Decimal `json:"balance"`
	Allowance  decimal.Decimal `json:"allowance"`
	Percent    decimal.Decimal `json:"percent"`
	TenantID   string          `json:"tenant_id"`
	Timestamp  time.Time       `json:"timestamp"`
}

// checkThresholds inspects post deduction balances and publishes a low
// balance alert per feature that crossed the threshold. Alerting is best
// effort and never fails the deduction that triggered it.
func (s *usageService) checkThresholds(ctx context.Context, customerID string, deductions []featureDeduction) {
	threshold := s.Config.Billing.AlertThresholdPercent
	if threshold <= 0 || s.Publisher == nil {
		return
	}

	for _, d := range deductions {
		ents, err := s.EntitlementRepo.ListByCustomerFeatures(ctx, customerID, []string{d.feature.ID})
		if err != nil {
			s.Logger.Warnw("skipping threshold check", "feature_id", d.feature.ID, "error", err)
			continue
		}

		balance := decimal.Zero
		allowance := decimal.Zero
		unlimited := false
		for _, e := range ents {
			if e.IsUnlimited() {
				unlimited = true
				break
			}
			balance = balance.Add(e.TotalBalance())
			allowance = allowance.Add(e.TotalAllowance())
		}
		if unlimited || !allowance.IsPositive() {
			continue
		}

		percent := balance.Div(allowance).Mul(decimal.NewFromInt(100))
		if percent.GreaterThanOrEqual(decimal.NewFromInt(int64(threshold))) {
			continue
		}

		alert := balanceAlert{
			ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ALERT),
			CustomerID: customerID,
			FeatureID:  d.feature.ID,
			Balance:    balance,
			Allowance:  allowance,
			Percent:    percent,
			TenantID:   types.GetTenantID(ctx),
			Timestamp:  time.Now().UTC(),
		}
		payload, err := json.Marshal(alert)
		if err != nil {
			s.Logger.Errorw("failed to encode balance alert", "error", err)
			continue
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := s.Publisher.Publish(ctx, alertTopic, msg); err != nil {
			s.Logger.Errorw("failed to publish balance alert",
				"customer_id", customerID,
				"feature_id", d.feature.ID,
				"error", err)
		}
	}
}
