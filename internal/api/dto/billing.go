package dto

import (
	"time"

	"github.com/prorata-io/prorata/internal/domain/proration"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/prorata-io/prorata/internal/validator"
	"github.com/shopspring/decimal"
)

// AttachPreviewRequest asks what attaching (or switching to) a product would
// charge today. The orchestrator has already classified the scenario into
// Branch; this request carries everything the line item constructor needs.
type AttachPreviewRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	// NewProductID is the product being attached.
	NewProductID string `json:"new_product_id" validate:"required"`
	// CurrentProductID is the product instance being replaced, empty on a
	// first attach.
	CurrentProductID string             `json:"current_product_id,omitempty"`
	Branch           types.AttachBranch `json:"branch,omitempty"`
	ProrationBehavior types.ProrationBehavior `json:"proration_behavior,omitempty"`
	// BillingAnchor is the customer's existing cycle anchor. Zero means no
	// established cycle, so charges are not prorated.
	BillingAnchor time.Time `json:"billing_anchor,omitempty"`
	// FreeTrial zeroes every charge on the preview.
	FreeTrial bool `json:"free_trial,omitempty"`
	// Quantities sets the purchased quantity per prepaid price.
	Quantities map[string]decimal.Decimal `json:"quantities,omitempty"`
}

func (r *AttachPreviewRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	for priceID, qty := range r.Quantities {
		if qty.IsNegative() {
			return ierr.NewErrorf("quantity for price %s cannot be negative", priceID).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// NextCyclePreview shows what the following full cycle will charge.
type NextCyclePreview struct {
	Total     decimal.Decimal              `json:"total"`
	StartsAt  time.Time                    `json:"starts_at"`
	LineItems []*proration.PreviewLineItem `json:"line_items"`
}

// AttachPreviewResponse is the composed preview: what is due immediately and
// what the next cycle looks like.
type AttachPreviewResponse struct {
	CustomerID string                       `json:"customer_id"`
	Currency   string                       `json:"currency"`
	DueToday   decimal.Decimal              `json:"due_today"`
	LineItems  []*proration.PreviewLineItem `json:"line_items"`
	NextCycle  *NextCyclePreview            `json:"next_cycle,omitempty"`
}
