package service

import (
	"testing"
	"time"

	"github.com/prorata-io/prorata/internal/api/dto"
	"github.com/prorata-io/prorata/internal/cache"
	"github.com/prorata-io/prorata/internal/domain/entitlement"
	"github.com/prorata-io/prorata/internal/domain/events"
	"github.com/prorata-io/prorata/internal/domain/feature"
	"github.com/prorata-io/prorata/internal/domain/rollover"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type UsageServiceSuite struct {
	serviceSuite
	service UsageService
}

func TestUsageService(t *testing.T) {
	suite.Run(t, new(UsageServiceSuite))
}

func (s *UsageServiceSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.service = NewUsageService(s.params())
}

func (s *UsageServiceSuite) seedFeature(id string, ftype types.FeatureType, schema ...feature.CreditSchemaItem) {
	err := s.GetStores().FeatureRepo.Create(s.GetContext(), &feature.Feature{
		ID:           id,
		Name:         id,
		Type:         ftype,
		CreditSchema: schema,
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	})
	s.Require().NoError(err)
}

func (s *UsageServiceSuite) seedEntitlement(e *entitlement.Entitlement) *entitlement.Entitlement {
	if e.ID == "" {
		e.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT)
	}
	e.BaseModel = types.GetDefaultBaseModel(s.GetContext())
	s.Require().NoError(s.GetStores().EntitlementRepo.Create(s.GetContext(), e))
	return e
}

func (s *UsageServiceSuite) event(customerID, featureID string, value int64) *events.UsageEvent {
	return &events.UsageEvent{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		CustomerID: customerID,
		FeatureID:  featureID,
		Value:      decimal.NewFromInt(value),
		Timestamp:  time.Now().UTC(),
		TenantID:   types.DefaultTenantID,
	}
}

func (s *UsageServiceSuite) getEntitlement(id string) *entitlement.Entitlement {
	e, err := s.GetStores().EntitlementRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return e
}

func (s *UsageServiceSuite) TestSimpleDeduction() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(100),
	})

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_messages", 30))
	s.Require().NoError(err)
	s.True(s.getEntitlement(ent.ID).Balance.Equal(decimal.NewFromInt(70)))
}

func (s *UsageServiceSuite) TestOverageGoesNegative() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(20),
		UsageAllowed:  true,
	})

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_messages", 110))
	s.Require().NoError(err)

	got := s.getEntitlement(ent.ID)
	s.True(got.Balance.Equal(decimal.NewFromInt(-90)))
	s.True(got.TotalUsage().Equal(decimal.NewFromInt(190)))
}

func (s *UsageServiceSuite) TestFiniteRecordsDrainBeforeOverage() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	finite := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(100),
	})
	overage := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.Zero,
		Balance:       decimal.Zero,
		UsageAllowed:  true,
	})
	bucket := &rollover.Rollover{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ROLLOVER),
		EntitlementID: finite.ID,
		Balance:       decimal.NewFromInt(20),
		ExpiresAt:     time.Now().UTC().AddDate(0, 1, 0),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(s.GetStores().RolloverRepo.Create(s.GetContext(), bucket))

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_messages", 130))
	s.Require().NoError(err)

	// Rollover first, then the finite balance, and only the shortfall
	// lands on the overage record. The finite record never goes negative.
	gotBucket, err := s.GetStores().RolloverRepo.Get(s.GetContext(), bucket.ID)
	s.Require().NoError(err)
	s.True(gotBucket.Balance.IsZero())
	s.True(s.getEntitlement(finite.ID).Balance.IsZero())
	s.True(s.getEntitlement(overage.ID).Balance.Equal(decimal.NewFromInt(-10)))
}

func (s *UsageServiceSuite) TestDeductionTakesLedgerLock() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(100),
	})

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_messages", 10))
	s.Require().NoError(err)

	keys := s.GetMockDB().LockedKeys()
	s.Require().NotEmpty(keys)
	s.Contains(keys[0], string(types.LockScopeCustomerLedger))
	s.Contains(keys[0], "customer_id=cus_1")
}

func (s *UsageServiceSuite) TestBestEffortClampsWithoutOverage() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(20),
	})

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_messages", 110))
	s.Require().NoError(err)
	s.True(s.getEntitlement(ent.ID).Balance.IsZero())
}

func (s *UsageServiceSuite) TestFailOnErrorRejectsUncoveredUsage() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(20),
	})

	err := s.service.UpdateUsage(s.GetContext(), &dto.UpdateUsageRequest{
		IngestUsageRequest: dto.IngestUsageRequest{
			CustomerID: "cus_1",
			FeatureID:  "feat_messages",
			Value:      decimal.NewFromInt(110),
		},
		FailOnError: true,
	})
	s.Require().Error(err)
}

func (s *UsageServiceSuite) TestRolloverConsumedBeforeBalance() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(50),
	})
	roll := &rollover.Rollover{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ROLLOVER),
		EntitlementID: ent.ID,
		Balance:       decimal.NewFromInt(30),
		ExpiresAt:     time.Now().UTC().AddDate(0, 1, 0),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(s.GetStores().RolloverRepo.Create(s.GetContext(), roll))

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_messages", 40))
	s.Require().NoError(err)

	gotRoll, err := s.GetStores().RolloverRepo.Get(s.GetContext(), roll.ID)
	s.Require().NoError(err)
	s.True(gotRoll.Balance.IsZero())
	s.True(s.getEntitlement(ent.ID).Balance.Equal(decimal.NewFromInt(40)))
}

func (s *UsageServiceSuite) TestExpiredRolloverIgnored() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(50),
	})
	expired := &rollover.Rollover{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ROLLOVER),
		EntitlementID: ent.ID,
		Balance:       decimal.NewFromInt(30),
		ExpiresAt:     time.Now().UTC().AddDate(0, -1, 0),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(s.GetStores().RolloverRepo.Create(s.GetContext(), expired))

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_messages", 10))
	s.Require().NoError(err)

	gotRoll, err := s.GetStores().RolloverRepo.Get(s.GetContext(), expired.ID)
	s.Require().NoError(err)
	s.True(gotRoll.Balance.Equal(decimal.NewFromInt(30)))
	s.True(s.getEntitlement(ent.ID).Balance.Equal(decimal.NewFromInt(40)))
}

func (s *UsageServiceSuite) TestUnlimitedSwallowsUsage() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_UNLIMITED,
	})

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_messages", 100000))
	s.Require().NoError(err)
	s.True(s.getEntitlement(ent.ID).Balance.IsZero())
}

func (s *UsageServiceSuite) TestCreditSystemConversion() {
	s.seedFeature("feat_api_calls", types.FEATURE_TYPE_METERED)
	s.seedFeature("feat_credits", types.FEATURE_TYPE_CREDIT_SYSTEM, feature.CreditSchemaItem{
		MeteredFeatureID: "feat_api_calls",
		CreditCost:       decimal.NewFromFloat(0.5),
	})
	credits := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_credits",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(100),
	})

	// 10 api calls at 0.5 credits each cost 5 credits. The customer holds no
	// direct api call entitlement, so only the credit balance moves.
	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_api_calls", 10))
	s.Require().NoError(err)
	s.True(s.getEntitlement(credits.ID).Balance.Equal(decimal.NewFromInt(95)))
}

func (s *UsageServiceSuite) TestDirectAndCreditDeductionsAreIndependent() {
	s.seedFeature("feat_api_calls", types.FEATURE_TYPE_METERED)
	s.seedFeature("feat_credits", types.FEATURE_TYPE_CREDIT_SYSTEM, feature.CreditSchemaItem{
		MeteredFeatureID: "feat_api_calls",
		CreditCost:       decimal.NewFromInt(2),
	})
	direct := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_api_calls",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(50),
		Balance:       decimal.NewFromInt(50),
	})
	credits := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_credits",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(100),
	})

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_api_calls", 10))
	s.Require().NoError(err)
	s.True(s.getEntitlement(direct.ID).Balance.Equal(decimal.NewFromInt(40)))
	s.True(s.getEntitlement(credits.ID).Balance.Equal(decimal.NewFromInt(80)))
}

func (s *UsageServiceSuite) TestSetUsageComputesDelta() {
	s.seedFeature("feat_seats", types.FEATURE_TYPE_METERED)
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_seats",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(80),
	})

	// Current usage is 20; setting it to 50 deducts 30 more.
	err := s.service.UpdateUsage(s.GetContext(), &dto.UpdateUsageRequest{
		IngestUsageRequest: dto.IngestUsageRequest{
			CustomerID: "cus_1",
			FeatureID:  "feat_seats",
			Value:      decimal.NewFromInt(50),
			Set:        true,
		},
	})
	s.Require().NoError(err)
	s.True(s.getEntitlement(ent.ID).Balance.Equal(decimal.NewFromInt(50)))
}

func (s *UsageServiceSuite) TestSetUsageBelowCurrentIsNoop() {
	s.seedFeature("feat_seats", types.FEATURE_TYPE_METERED)
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_seats",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(80),
	})

	err := s.service.UpdateUsage(s.GetContext(), &dto.UpdateUsageRequest{
		IngestUsageRequest: dto.IngestUsageRequest{
			CustomerID: "cus_1",
			FeatureID:  "feat_seats",
			Value:      decimal.NewFromInt(10),
			Set:        true,
		},
	})
	s.Require().NoError(err)
	s.True(s.getEntitlement(ent.ID).Balance.Equal(decimal.NewFromInt(80)))
}

func (s *UsageServiceSuite) TestEntityScopedDeduction() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:      "cus_1",
		FeatureID:       "feat_messages",
		EntityFeatureID: "feat_seats",
		AllowanceType:   types.ALLOWANCE_TYPE_FIXED,
		Allowance:       decimal.NewFromInt(50),
		Entities: map[string]*entitlement.EntityBalance{
			"seat_a": {Balance: decimal.NewFromInt(50)},
			"seat_b": {Balance: decimal.NewFromInt(50)},
		},
	})

	event := s.event("cus_1", "feat_messages", 30)
	event.EntityID = "seat_b"
	s.Require().NoError(s.service.ProcessUsageEvent(s.GetContext(), event))

	got := s.getEntitlement(ent.ID)
	s.True(got.Entities["seat_a"].Balance.Equal(decimal.NewFromInt(50)))
	s.True(got.Entities["seat_b"].Balance.Equal(decimal.NewFromInt(20)))
}

func (s *UsageServiceSuite) TestUnknownFeatureIsDropped() {
	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_ghost", 10))
	s.Require().NoError(err)
}

func (s *UsageServiceSuite) TestDeductionInvalidatesBalanceCache() {
	s.seedFeature("feat_messages", types.FEATURE_TYPE_METERED)
	s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(100),
	})

	key := cache.CustomerBalanceKey(types.DefaultTenantID, "cus_1")
	s.GetCache().Set(s.GetContext(), key, "stale", time.Minute)

	err := s.service.ProcessUsageEvent(s.GetContext(), s.event("cus_1", "feat_messages", 10))
	s.Require().NoError(err)

	_, found := s.GetCache().Get(s.GetContext(), key)
	s.False(found)
}
