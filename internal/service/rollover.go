package service

import (
	"context"
	"time"

	"github.com/prorata-io/prorata/internal/domain/rollover"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

// RolloverService manages rollover buckets across entitlement resets.
type RolloverService interface {
	// CreateRollover carries the unused balance of an entitlement into a new
	// bucket and enforces the accumulation cap.
	CreateRollover(ctx context.Context, entitlementID string, cfg rollover.Config) (*rollover.Rollover, error)
	// ClearExpired drops buckets whose expiry has passed.
	ClearExpired(ctx context.Context, entitlementID string) error
	// EnforceMaximum shrinks live buckets until their total fits the cap,
	// oldest expiring first.
	EnforceMaximum(ctx context.Context, entitlementID string, max decimal.Decimal) error
}

type rolloverService struct {
	ServiceParams
}

func NewRolloverService(params ServiceParams) RolloverService {
	return &rolloverService{ServiceParams: params}
}

func (s *rolloverService) CreateRollover(ctx context.Context, entitlementID string, cfg rollover.Config) (*rollover.Rollover, error) {
	if err := cfg.Duration.Validate(); err != nil {
		return nil, err
	}

	ent, err := s.EntitlementRepo.Get(ctx, entitlementID)
	if err != nil {
		return nil, err
	}
	if ent.IsUnlimited() {
		return nil, ierr.NewError("unlimited entitlements do not roll over").
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	expiresAt, err := types.AddBillingPeriod(now, cfg.Duration, cfg.DurationCount)
	if err != nil {
		return nil, err
	}

	bucket := &rollover.Rollover{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ROLLOVER),
		EntitlementID: ent.ID,
		ExpiresAt:     expiresAt,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}

	if ent.IsEntityScoped() {
		bucket.Entities = make(map[string]decimal.Decimal, len(ent.Entities))
		for id, eb := range ent.Entities {
			if eb.Balance.IsPositive() {
				bucket.Entities[id] = eb.Balance
			}
		}
		bucket.Balance = bucket.Total()
	} else if ent.Balance.IsPositive() {
		bucket.Balance = ent.Balance
	}

	if !bucket.Total().IsPositive() {
		s.Logger.Debugw("no unused balance to roll over", "entitlement_id", ent.ID)
		return nil, nil
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.lockLedger(ctx, ent.CustomerID); err != nil {
			return err
		}
		if err := s.RolloverRepo.Create(ctx, bucket); err != nil {
			return err
		}
		if cfg.Max != nil {
			return s.enforceMaximum(ctx, ent.ID, *cfg.Max)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

func (s *rolloverService) ClearExpired(ctx context.Context, entitlementID string) error {
	ent, err := s.EntitlementRepo.Get(ctx, entitlementID)
	if err != nil {
		return err
	}
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.lockLedger(ctx, ent.CustomerID); err != nil {
			return err
		}
		return s.RolloverRepo.DeleteExpired(ctx, entitlementID, time.Now().UTC())
	})
}

func (s *rolloverService) EnforceMaximum(ctx context.Context, entitlementID string, max decimal.Decimal) error {
	ent, err := s.EntitlementRepo.Get(ctx, entitlementID)
	if err != nil {
		return err
	}
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.lockLedger(ctx, ent.CustomerID); err != nil {
			return err
		}
		return s.enforceMaximum(ctx, entitlementID, max)
	})
}

func (s *rolloverService) enforceMaximum(ctx context.Context, entitlementID string, max decimal.Decimal) error {
	active, err := s.RolloverRepo.ListActive(ctx, entitlementID, time.Now().UTC())
	if err != nil {
		return err
	}

	result := rollover.PerformMaximumClearing(active, max)
	if len(result.ToDelete) > 0 {
		if err := s.RolloverRepo.Delete(ctx, result.ToDelete); err != nil {
			return err
		}
	}
	if len(result.ToUpdate) > 0 {
		if err := s.RolloverRepo.UpdateBulk(ctx, result.ToUpdate); err != nil {
			return err
		}
	}
	if len(result.ToDelete) > 0 || len(result.ToUpdate) > 0 {
		s.Logger.Infow("rollover maximum enforced",
			"entitlement_id", entitlementID,
			"max", max.String(),
			"deleted", len(result.ToDelete),
			"shrunk", len(result.ToUpdate))
	}
	return nil
}
