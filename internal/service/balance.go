package service

import (
	"context"
	"sort"
	"time"

	"github.com/prorata-io/prorata/internal/api/dto"
	"github.com/prorata-io/prorata/internal/cache"
	"github.com/prorata-io/prorata/internal/domain/entitlement"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BalanceService composes the read side balance view: ledger balances plus
// active rollovers, grouped per feature.
type BalanceService interface {
	GetCustomerBalances(ctx context.Context, customerID string) (*dto.CustomerBalancesResponse, error)
	GetFeatureBalance(ctx context.Context, customerID, featureID string) (*dto.FeatureBalance, error)
}

type balanceService struct {
	ServiceParams
}

func NewBalanceService(params ServiceParams) BalanceService {
	return &balanceService{ServiceParams: params}
}

func (s *balanceService) GetCustomerBalances(ctx context.Context, customerID string) (*dto.CustomerBalancesResponse, error) {
	cacheKey := cache.CustomerBalanceKey(types.GetTenantID(ctx), customerID)
	if cached, found := s.Cache.Get(ctx, cacheKey); found {
		if resp, ok := cache.UnmarshalCacheValue[dto.CustomerBalancesResponse](cached); ok {
			return resp, nil
		}
	}

	resp, err := s.composeBalances(ctx, customerID)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(s.Config.Cache.DefaultTTLSeconds) * time.Second
	s.Cache.Set(ctx, cacheKey, resp, ttl)
	return resp, nil
}

func (s *balanceService) GetFeatureBalance(ctx context.Context, customerID, featureID string) (*dto.FeatureBalance, error) {
	balances, err := s.GetCustomerBalances(ctx, customerID)
	if err != nil {
		return nil, err
	}
	fb, found := lo.Find(balances.Balances, func(b *dto.FeatureBalance) bool {
		return b.FeatureID == featureID
	})
	if !found {
		return nil, ierr.NewErrorf("customer %s has no balance for feature %s", customerID, featureID).
			WithHint("The customer holds no entitlement for this feature").
			Mark(ierr.ErrNotFound)
	}
	return fb, nil
}

func (s *balanceService) composeBalances(ctx context.Context, customerID string) (*dto.CustomerBalancesResponse, error) {
	ents, err := s.EntitlementRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	prepaid, err := s.prepaidQuantities(ctx, ents)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	byFeature := lo.GroupBy(ents, func(e *entitlement.Entitlement) string { return e.FeatureID })
	featureIDs := lo.Keys(byFeature)
	sort.Strings(featureIDs)

	balances := make([]*dto.FeatureBalance, 0, len(byFeature))
	for _, featureID := range featureIDs {
		fb, err := s.composeFeatureBalance(ctx, featureID, byFeature[featureID], now)
		if err != nil {
			return nil, err
		}
		fb.PrepaidQuantity = prepaid[featureID]
		balances = append(balances, fb)
	}

	return &dto.CustomerBalancesResponse{CustomerID: customerID, Balances: balances}, nil
}

func (s *balanceService) composeFeatureBalance(ctx context.Context, featureID string, ents []*entitlement.Entitlement, now time.Time) (*dto.FeatureBalance, error) {
	fb := &dto.FeatureBalance{FeatureID: featureID}

	for _, e := range ents {
		if e.IsUnlimited() {
			fb.Unlimited = true
			fb.NextResetAt = nil
			return fb, nil
		}

		fb.Balance = fb.Balance.Add(e.TotalBalance())
		fb.Allowance = fb.Allowance.Add(e.TotalAllowance())

		rollovers, err := s.RolloverRepo.ListActive(ctx, e.ID, now)
		if err != nil {
			return nil, err
		}
		for _, r := range rollovers {
			fb.RolloverBalance = fb.RolloverBalance.Add(r.Total())
		}

		if e.IsEntityScoped() {
			if fb.Entities == nil {
				fb.Entities = make(map[string]*dto.EntityBalanceView)
			}
			for id, eb := range e.Entities {
				view, ok := fb.Entities[id]
				if !ok {
					view = &dto.EntityBalanceView{}
					fb.Entities[id] = view
				}
				view.Balance = view.Balance.Add(eb.Balance)
				view.Adjustment = view.Adjustment.Add(eb.Adjustment)
			}
		}

		if e.NextResetAt != nil && (fb.NextResetAt == nil || e.NextResetAt.Before(*fb.NextResetAt)) {
			fb.NextResetAt = e.NextResetAt
		}
	}

	fb.Usage = fb.Allowance.Sub(fb.Balance)
	if fb.Balance.IsNegative() {
		fb.Overage = fb.Balance.Neg()
	}
	return fb, nil
}

// prepaidQuantities sums purchased units on usage-in-advance prices per
// feature, shown alongside balances on the read side.
func (s *balanceService) prepaidQuantities(ctx context.Context, ents []*entitlement.Entitlement) (map[string]decimal.Decimal, error) {
	quantities := make(map[string]decimal.Decimal)
	productIDs := lo.Uniq(lo.Map(ents, func(e *entitlement.Entitlement, _ int) string {
		return e.CustomerProductID
	}))

	for _, productID := range productIDs {
		if productID == "" {
			continue
		}
		prices, err := s.PriceRepo.ListByProduct(ctx, productID)
		if err != nil {
			if ierr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, p := range prices {
			if p.FeatureID == "" || p.GetBillingType() != types.BILLING_TYPE_USAGE_IN_ADVANCE {
				continue
			}
			matching := lo.Filter(ents, func(e *entitlement.Entitlement, _ int) bool {
				return e.FeatureID == p.FeatureID && e.CustomerProductID == productID && !e.IsUnlimited()
			})
			for _, e := range matching {
				quantities[p.FeatureID] = quantities[p.FeatureID].Add(e.TotalAllowance())
			}
		}
	}
	return quantities, nil
}

