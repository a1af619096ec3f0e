package dto

import (
	"time"

	"github.com/prorata-io/prorata/internal/domain/events"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/validator"
	"github.com/shopspring/decimal"
)

// IngestUsageRequest reports usage of a feature by a customer. When Set is
// true, Value replaces the customer's total usage instead of adding to it.
type IngestUsageRequest struct {
	CustomerID     string            `json:"customer_id" validate:"required"`
	FeatureID      string            `json:"feature_id" validate:"required"`
	EntityID       string            `json:"entity_id,omitempty"`
	Value          decimal.Decimal   `json:"value"`
	Set            bool              `json:"set,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Timestamp      time.Time         `json:"timestamp,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
}

func (r *IngestUsageRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Value.IsNegative() && !r.Set {
		return ierr.NewError("usage value cannot be negative").
			WithHint("Use set semantics to lower total usage").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *IngestUsageRequest) ToUsageEvent(tenantID string) *events.UsageEvent {
	event := events.NewUsageEvent(r.CustomerID, r.FeatureID, r.Value, tenantID)
	event.EntityID = r.EntityID
	event.Set = r.Set
	event.IdempotencyKey = r.IdempotencyKey
	event.Properties = r.Properties
	if !r.Timestamp.IsZero() {
		event.Timestamp = r.Timestamp.UTC()
	}
	return event
}

// UpdateUsageRequest is the synchronous variant of usage ingestion. Callers
// that need hard failures on insufficient balance set FailOnError; the
// fire-and-forget ingestion path leaves it off and keeps partial deductions.
type UpdateUsageRequest struct {
	IngestUsageRequest
	FailOnError bool `json:"fail_on_error,omitempty"`
}

func (r *UpdateUsageRequest) ToUsageEvent(tenantID string) *events.UsageEvent {
	return r.IngestUsageRequest.ToUsageEvent(tenantID)
}
