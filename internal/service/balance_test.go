package service

import (
	"testing"
	"time"

	"github.com/prorata-io/prorata/internal/domain/entitlement"
	"github.com/prorata-io/prorata/internal/domain/price"
	"github.com/prorata-io/prorata/internal/domain/rollover"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BalanceServiceSuite struct {
	serviceSuite
	service BalanceService
}

func TestBalanceService(t *testing.T) {
	suite.Run(t, new(BalanceServiceSuite))
}

func (s *BalanceServiceSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.service = NewBalanceService(s.params())
}

func (s *BalanceServiceSuite) seed(e *entitlement.Entitlement) *entitlement.Entitlement {
	if e.ID == "" {
		e.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT)
	}
	e.BaseModel = types.GetDefaultBaseModel(s.GetContext())
	s.Require().NoError(s.GetStores().EntitlementRepo.Create(s.GetContext(), e))
	return e
}

func (s *BalanceServiceSuite) TestComposesLedgerAndRollovers() {
	ent := s.seed(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(60),
	})
	s.Require().NoError(s.GetStores().RolloverRepo.Create(s.GetContext(), &rollover.Rollover{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ROLLOVER),
		EntitlementID: ent.ID,
		Balance:       decimal.NewFromInt(25),
		ExpiresAt:     time.Now().UTC().AddDate(0, 1, 0),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}))
	// Expired buckets never appear on the read side.
	s.Require().NoError(s.GetStores().RolloverRepo.Create(s.GetContext(), &rollover.Rollover{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ROLLOVER),
		EntitlementID: ent.ID,
		Balance:       decimal.NewFromInt(99),
		ExpiresAt:     time.Now().UTC().AddDate(0, -1, 0),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}))

	resp, err := s.service.GetCustomerBalances(s.GetContext(), "cus_1")
	s.Require().NoError(err)
	s.Require().Len(resp.Balances, 1)

	fb := resp.Balances[0]
	s.Equal("feat_messages", fb.FeatureID)
	s.True(fb.Balance.Equal(decimal.NewFromInt(60)))
	s.True(fb.RolloverBalance.Equal(decimal.NewFromInt(25)))
	s.True(fb.Allowance.Equal(decimal.NewFromInt(100)))
	s.True(fb.Usage.Equal(decimal.NewFromInt(40)))
	s.True(fb.Overage.IsZero())
}

func (s *BalanceServiceSuite) TestNegativeBalanceReportsOverage() {
	s.seed(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_api_calls",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(-30),
		UsageAllowed:  true,
	})

	fb, err := s.service.GetFeatureBalance(s.GetContext(), "cus_1", "feat_api_calls")
	s.Require().NoError(err)
	s.True(fb.Overage.Equal(decimal.NewFromInt(30)))
	s.True(fb.Usage.Equal(decimal.NewFromInt(130)))
}

func (s *BalanceServiceSuite) TestUnlimitedShortCircuits() {
	s.seed(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_UNLIMITED,
	})
	s.seed(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(40),
	})

	fb, err := s.service.GetFeatureBalance(s.GetContext(), "cus_1", "feat_messages")
	s.Require().NoError(err)
	s.True(fb.Unlimited)
	s.True(fb.Balance.IsZero())
	s.Nil(fb.NextResetAt)
}

func (s *BalanceServiceSuite) TestEntityViewsMerged() {
	s.seed(&entitlement.Entitlement{
		CustomerID:      "cus_1",
		FeatureID:       "feat_messages",
		EntityFeatureID: "feat_seats",
		AllowanceType:   types.ALLOWANCE_TYPE_FIXED,
		Allowance:       decimal.NewFromInt(50),
		Entities: map[string]*entitlement.EntityBalance{
			"seat_a": {Balance: decimal.NewFromInt(50)},
			"seat_b": {Balance: decimal.NewFromInt(20), Adjustment: decimal.NewFromInt(-5)},
		},
	})

	fb, err := s.service.GetFeatureBalance(s.GetContext(), "cus_1", "feat_messages")
	s.Require().NoError(err)
	s.True(fb.Balance.Equal(decimal.NewFromInt(70)))
	s.True(fb.Allowance.Equal(decimal.NewFromInt(100)))
	s.Require().Len(fb.Entities, 2)
	s.True(fb.Entities["seat_a"].Balance.Equal(decimal.NewFromInt(50)))
	s.True(fb.Entities["seat_b"].Balance.Equal(decimal.NewFromInt(20)))
	s.True(fb.Entities["seat_b"].Adjustment.Equal(decimal.NewFromInt(-5)))
}

func (s *BalanceServiceSuite) TestEarliestResetWins() {
	soon := time.Now().UTC().AddDate(0, 0, 3)
	later := time.Now().UTC().AddDate(0, 1, 0)
	s.seed(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(10),
		Balance:       decimal.NewFromInt(10),
		NextResetAt:   &later,
	})
	s.seed(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(20),
		Balance:       decimal.NewFromInt(20),
		NextResetAt:   &soon,
	})

	fb, err := s.service.GetFeatureBalance(s.GetContext(), "cus_1", "feat_messages")
	s.Require().NoError(err)
	s.Require().NotNil(fb.NextResetAt)
	s.True(fb.NextResetAt.Equal(soon))
}

func (s *BalanceServiceSuite) TestPrepaidQuantityFromAdvancePrices() {
	s.Require().NoError(s.GetStores().PriceRepo.Create(s.GetContext(), &price.Price{
		ID:                 "price_prepaid",
		ProductID:          "prod_1",
		FeatureID:          "feat_messages",
		Type:               types.PRICE_TYPE_USAGE,
		BillingCadence:     types.BILLING_CADENCE_ADVANCE,
		BillingPeriod:      types.BILLING_PERIOD_MONTHLY,
		BillingPeriodCount: 1,
		Currency:           "usd",
		Amount:             decimal.NewFromInt(10),
		BillingUnits:       decimal.NewFromInt(100),
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}))
	s.seed(&entitlement.Entitlement{
		CustomerID:        "cus_1",
		CustomerProductID: "prod_1",
		FeatureID:         "feat_messages",
		AllowanceType:     types.ALLOWANCE_TYPE_FIXED,
		Allowance:         decimal.NewFromInt(300),
		Balance:           decimal.NewFromInt(120),
	})

	fb, err := s.service.GetFeatureBalance(s.GetContext(), "cus_1", "feat_messages")
	s.Require().NoError(err)
	s.True(fb.PrepaidQuantity.Equal(decimal.NewFromInt(300)))
}

func (s *BalanceServiceSuite) TestUnknownFeatureNotFound() {
	_, err := s.service.GetFeatureBalance(s.GetContext(), "cus_1", "feat_ghost")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *BalanceServiceSuite) TestBalancesServedFromCache() {
	ent := s.seed(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(60),
	})

	first, err := s.service.GetCustomerBalances(s.GetContext(), "cus_1")
	s.Require().NoError(err)

	// Mutate the store behind the cache; the stale view is served until a
	// deduction invalidates it.
	ent.Balance = decimal.NewFromInt(10)
	s.Require().NoError(s.GetStores().EntitlementRepo.Update(s.GetContext(), ent))

	second, err := s.service.GetCustomerBalances(s.GetContext(), "cus_1")
	s.Require().NoError(err)
	s.True(second.Balances[0].Balance.Equal(first.Balances[0].Balance))
}
