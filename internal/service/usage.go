package service

import (
	"context"
	"sort"
	"time"

	"github.com/prorata-io/prorata/internal/api/dto"
	"github.com/prorata-io/prorata/internal/cache"
	"github.com/prorata-io/prorata/internal/domain/entitlement"
	"github.com/prorata-io/prorata/internal/domain/events"
	"github.com/prorata-io/prorata/internal/domain/feature"
	"github.com/prorata-io/prorata/internal/domain/rollover"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// UsageService applies usage events to the customer's entitlement ledger.
//
// Deductions drain rollover buckets before the live balance, exhaust finite
// allowances before overage-enabled records, and after the metered feature
// itself every credit system containing it absorbs the converted amount.
type UsageService interface {
	// ProcessUsageEvent applies an event best effort: amounts that cannot be
	// covered are dropped with a log line, never an error.
	ProcessUsageEvent(ctx context.Context, event *events.UsageEvent) error
	// UpdateUsage applies usage synchronously. With FailOnError set the whole
	// deduction rolls back when any part cannot be covered.
	UpdateUsage(ctx context.Context, req *dto.UpdateUsageRequest) error
}

type usageService struct {
	ServiceParams
}

func NewUsageService(params ServiceParams) UsageService {
	return &usageService{ServiceParams: params}
}

// featureDeduction is one step of the pipeline: a feature and the amount to
// take from its records.
type featureDeduction struct {
	feature *feature.Feature
	amount  decimal.Decimal
	// set replaces total usage instead of adding to it; the delta is
	// computed against the loaded records inside the transaction.
	set bool
}

func (s *usageService) ProcessUsageEvent(ctx context.Context, event *events.UsageEvent) error {
	return s.applyEvent(ctx, event, false)
}

func (s *usageService) UpdateUsage(ctx context.Context, req *dto.UpdateUsageRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	event := req.ToUsageEvent(types.GetTenantID(ctx))
	return s.applyEvent(ctx, event, req.FailOnError)
}

func (s *usageService) applyEvent(ctx context.Context, event *events.UsageEvent, failOnError bool) error {
	if event.Value.IsZero() && !event.Set {
		return nil
	}

	deductions, err := s.buildDeductions(ctx, event)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("usage event for unknown feature dropped",
				"feature_id", event.FeatureID, "customer_id", event.CustomerID)
			return nil
		}
		return err
	}
	if len(deductions) == 0 {
		return nil
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		// The advisory lock covers rollover bucket rewrites, which reset
		// jobs perform without touching the ledger rows. The row lock
		// still guards the balances themselves.
		if err := s.lockLedger(ctx, event.CustomerID); err != nil {
			return err
		}
		if err := s.EntitlementRepo.LockCustomerLedger(ctx, event.CustomerID); err != nil {
			return err
		}
		for _, d := range deductions {
			if err := s.applyFeatureDeduction(ctx, event, d, failOnError); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Cache.Delete(ctx, cache.CustomerBalanceKey(types.GetTenantID(ctx), event.CustomerID))
	s.checkThresholds(ctx, event.CustomerID, deductions)
	return nil
}

// buildDeductions resolves the pipeline order: the metered feature first,
// then every credit system containing it in feature id order.
func (s *usageService) buildDeductions(ctx context.Context, event *events.UsageEvent) ([]featureDeduction, error) {
	f, err := s.FeatureRepo.Get(ctx, event.FeatureID)
	if err != nil {
		return nil, err
	}
	if f.Type == types.FEATURE_TYPE_BOOLEAN {
		return nil, nil
	}

	deductions := []featureDeduction{{feature: f, amount: event.Value, set: event.Set}}
	if !f.IsMetered() {
		return deductions, nil
	}

	all, err := s.FeatureRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	creditSystems := lo.Filter(all, func(cs *feature.Feature, _ int) bool {
		return cs.ContainsFeature(f.ID)
	})
	sort.Slice(creditSystems, func(i, j int) bool {
		return creditSystems[i].ID < creditSystems[j].ID
	})
	for _, cs := range creditSystems {
		deductions = append(deductions, featureDeduction{
			feature: cs,
			amount:  cs.ToCreditAmount(f.ID, event.Value),
			set:     event.Set,
		})
	}
	return deductions, nil
}

func (s *usageService) applyFeatureDeduction(ctx context.Context, event *events.UsageEvent, d featureDeduction, failOnError bool) error {
	ents, err := s.EntitlementRepo.ListByCustomerFeatures(ctx, event.CustomerID, []string{d.feature.ID})
	if err != nil {
		return err
	}
	ents = s.matchingRecords(ents, event.EntityID)
	if len(ents) == 0 {
		return nil
	}

	// An unlimited grant swallows the whole amount.
	if lo.SomeBy(ents, func(e *entitlement.Entitlement) bool { return e.IsUnlimited() }) {
		return nil
	}

	amount := d.amount
	if d.set {
		amount = setUsageDelta(ents, d.amount)
		if !amount.IsPositive() {
			s.Logger.Debugw("set usage at or below current usage, nothing to deduct",
				"feature_id", d.feature.ID, "customer_id", event.CustomerID)
			return nil
		}
	}
	if !amount.IsPositive() {
		return nil
	}

	remaining, err := s.deductFromRecords(ctx, ents, event.EntityID, amount)
	if err != nil {
		return err
	}
	if remaining.IsPositive() {
		if failOnError {
			return ierr.NewError("insufficient balance to cover usage").
				WithHint("The customer's balance does not cover this usage").
				WithReportableDetails(map[string]interface{}{
					"customer_id": event.CustomerID,
					"feature_id":  d.feature.ID,
					"uncovered":   remaining.String(),
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		s.Logger.Infow("usage partially uncovered, dropping remainder",
			"customer_id", event.CustomerID,
			"feature_id", d.feature.ID,
			"uncovered", remaining.String())
	}
	return nil
}

// matchingRecords filters ledger records to the ones the event can deduct
// from. Entity scoped records only participate when they hold a balance for
// the event's entity; non scoped records always participate.
func (s *usageService) matchingRecords(ents []*entitlement.Entitlement, entityID string) []*entitlement.Entitlement {
	return lo.Filter(ents, func(e *entitlement.Entitlement, _ int) bool {
		if !e.IsEntityScoped() {
			return true
		}
		if entityID == "" {
			return len(e.Entities) > 0
		}
		_, ok := e.Entities[entityID]
		return ok
	})
}

// setUsageDelta converts "set total usage to value" into the deduction that
// brings the records there: totalBalance - (totalAllowance - value).
func setUsageDelta(ents []*entitlement.Entitlement, value decimal.Decimal) decimal.Decimal {
	totalBalance := decimal.Zero
	totalAllowance := decimal.Zero
	for _, e := range ents {
		totalBalance = totalBalance.Add(e.TotalBalance())
		totalAllowance = totalAllowance.Add(e.TotalAllowance())
	}
	return totalBalance.Sub(totalAllowance.Sub(value))
}

// deductFromRecords walks the customer's records for one feature, finite
// allowances first and overage enabled records last. Each record's rollover
// buckets are drained before its live balance.
func (s *usageService) deductFromRecords(ctx context.Context, ents []*entitlement.Entitlement, entityID string, amount decimal.Decimal) (decimal.Decimal, error) {
	ordered := make([]*entitlement.Entitlement, 0, len(ents))
	ordered = append(ordered, lo.Filter(ents, func(e *entitlement.Entitlement, _ int) bool { return !e.UsageAllowed })...)
	ordered = append(ordered, lo.Filter(ents, func(e *entitlement.Entitlement, _ int) bool { return e.UsageAllowed })...)

	now := time.Now().UTC()
	remaining := amount
	for _, ent := range ordered {
		if !remaining.IsPositive() {
			break
		}

		rollovers, err := s.RolloverRepo.ListActive(ctx, ent.ID, now)
		if err != nil {
			return remaining, err
		}
		if len(rollovers) > 0 {
			recEntityID := entityID
			if !ent.IsEntityScoped() {
				recEntityID = ""
			}
			result := rollover.Deduct(rollovers, remaining, recEntityID)
			if len(result.Updated) > 0 {
				if err := s.RolloverRepo.UpdateBulk(ctx, result.Updated); err != nil {
					return remaining, err
				}
			}
			remaining = result.Remaining
			if !remaining.IsPositive() {
				break
			}
		}

		params := entitlement.DeductParams{
			Amount:        remaining,
			AllowNegative: ent.UsageAllowed,
			EnforceLimit:  true,
		}
		if ent.IsEntityScoped() {
			params.EntityID = entityID
		}
		result, err := ent.Deduct(params)
		if err != nil {
			return remaining, err
		}
		if result.Deducted.IsPositive() || ent.UsageAllowed {
			ent.Apply(result)
			if err := s.EntitlementRepo.Update(ctx, ent); err != nil {
				return remaining, err
			}
		}
		remaining = result.Remaining
	}
	return remaining, nil
}
