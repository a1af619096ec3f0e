package service

import (
	"testing"
	"time"

	"github.com/prorata-io/prorata/internal/domain/entitlement"
	"github.com/prorata-io/prorata/internal/domain/rollover"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RolloverServiceSuite struct {
	serviceSuite
	service RolloverService
}

func TestRolloverService(t *testing.T) {
	suite.Run(t, new(RolloverServiceSuite))
}

func (s *RolloverServiceSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.service = NewRolloverService(s.params())
}

func (s *RolloverServiceSuite) seedEntitlement(e *entitlement.Entitlement) *entitlement.Entitlement {
	if e.ID == "" {
		e.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT)
	}
	e.BaseModel = types.GetDefaultBaseModel(s.GetContext())
	s.Require().NoError(s.GetStores().EntitlementRepo.Create(s.GetContext(), e))
	return e
}

func (s *RolloverServiceSuite) seedBucket(entID string, balance int64, expiresAt time.Time) *rollover.Rollover {
	r := &rollover.Rollover{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ROLLOVER),
		EntitlementID: entID,
		Balance:       decimal.NewFromInt(balance),
		ExpiresAt:     expiresAt,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(s.GetStores().RolloverRepo.Create(s.GetContext(), r))
	return r
}

func (s *RolloverServiceSuite) TestCreateCarriesUnusedBalance() {
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(35),
	})

	bucket, err := s.service.CreateRollover(s.GetContext(), ent.ID, rollover.Config{
		Duration:      types.BILLING_PERIOD_MONTHLY,
		DurationCount: 1,
	})
	s.Require().NoError(err)
	s.Require().NotNil(bucket)
	s.True(bucket.Balance.Equal(decimal.NewFromInt(35)))
	s.True(bucket.ExpiresAt.After(time.Now().UTC()))
}

func (s *RolloverServiceSuite) TestCreateSkipsEmptyBalance() {
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(-10),
		UsageAllowed:  true,
	})

	bucket, err := s.service.CreateRollover(s.GetContext(), ent.ID, rollover.Config{
		Duration:      types.BILLING_PERIOD_MONTHLY,
		DurationCount: 1,
	})
	s.Require().NoError(err)
	s.Nil(bucket)
}

func (s *RolloverServiceSuite) TestCreateRejectsUnlimited() {
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_UNLIMITED,
	})

	_, err := s.service.CreateRollover(s.GetContext(), ent.ID, rollover.Config{
		Duration:      types.BILLING_PERIOD_MONTHLY,
		DurationCount: 1,
	})
	s.Require().Error(err)
}

func (s *RolloverServiceSuite) TestCreateRejectsInvalidDuration() {
	_, err := s.service.CreateRollover(s.GetContext(), "ent_any", rollover.Config{
		Duration:      types.BillingPeriod("FORTNIGHTLY"),
		DurationCount: 1,
	})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *RolloverServiceSuite) TestCreateEntityScopedBucket() {
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:      "cus_1",
		FeatureID:       "feat_messages",
		EntityFeatureID: "feat_seats",
		AllowanceType:   types.ALLOWANCE_TYPE_FIXED,
		Allowance:       decimal.NewFromInt(50),
		Entities: map[string]*entitlement.EntityBalance{
			"seat_a": {Balance: decimal.NewFromInt(30)},
			"seat_b": {Balance: decimal.NewFromInt(-5)},
		},
	})

	bucket, err := s.service.CreateRollover(s.GetContext(), ent.ID, rollover.Config{
		Duration:      types.BILLING_PERIOD_MONTHLY,
		DurationCount: 1,
	})
	s.Require().NoError(err)
	s.Require().NotNil(bucket)

	// Only positive entity balances carry over.
	s.Require().Len(bucket.Entities, 1)
	s.True(bucket.Entities["seat_a"].Equal(decimal.NewFromInt(30)))
	s.True(bucket.Total().Equal(decimal.NewFromInt(30)))
}

func (s *RolloverServiceSuite) TestCreateEnforcesMaximum() {
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(60),
	})
	old := s.seedBucket(ent.ID, 50, time.Now().UTC().AddDate(0, 0, 10))

	bucket, err := s.service.CreateRollover(s.GetContext(), ent.ID, rollover.Config{
		Duration:      types.BILLING_PERIOD_MONTHLY,
		DurationCount: 1,
		Max:           lo.ToPtr(decimal.NewFromInt(80)),
	})
	s.Require().NoError(err)
	s.Require().NotNil(bucket)

	// 110 held against a cap of 80: the oldest bucket absorbs the excess.
	gotOld, err := s.GetStores().RolloverRepo.Get(s.GetContext(), old.ID)
	s.Require().NoError(err)
	s.True(gotOld.Balance.Equal(decimal.NewFromInt(20)))

	gotNew, err := s.GetStores().RolloverRepo.Get(s.GetContext(), bucket.ID)
	s.Require().NoError(err)
	s.True(gotNew.Balance.Equal(decimal.NewFromInt(60)))
}

func (s *RolloverServiceSuite) TestEnforceMaximumDeletesDrainedBuckets() {
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(0),
	})
	oldest := s.seedBucket(ent.ID, 40, time.Now().UTC().AddDate(0, 0, 5))
	newest := s.seedBucket(ent.ID, 50, time.Now().UTC().AddDate(0, 0, 20))

	err := s.service.EnforceMaximum(s.GetContext(), ent.ID, decimal.NewFromInt(30))
	s.Require().NoError(err)

	_, err = s.GetStores().RolloverRepo.Get(s.GetContext(), oldest.ID)
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))

	gotNewest, err := s.GetStores().RolloverRepo.Get(s.GetContext(), newest.ID)
	s.Require().NoError(err)
	s.True(gotNewest.Balance.Equal(decimal.NewFromInt(30)))
}

func (s *RolloverServiceSuite) TestClearExpired() {
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(10),
	})
	expired := s.seedBucket(ent.ID, 15, time.Now().UTC().AddDate(0, 0, -1))
	live := s.seedBucket(ent.ID, 20, time.Now().UTC().AddDate(0, 0, 15))

	err := s.service.ClearExpired(s.GetContext(), ent.ID)
	s.Require().NoError(err)

	_, err = s.GetStores().RolloverRepo.Get(s.GetContext(), expired.ID)
	s.Require().Error(err)

	gotLive, err := s.GetStores().RolloverRepo.Get(s.GetContext(), live.ID)
	s.Require().NoError(err)
	s.True(gotLive.Balance.Equal(decimal.NewFromInt(20)))
}

func (s *RolloverServiceSuite) TestBucketRewritesTakeLedgerLock() {
	ent := s.seedEntitlement(&entitlement.Entitlement{
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(0),
	})
	s.seedBucket(ent.ID, 40, time.Now().UTC().AddDate(0, 0, 5))

	err := s.service.EnforceMaximum(s.GetContext(), ent.ID, decimal.NewFromInt(10))
	s.Require().NoError(err)

	keys := s.GetMockDB().LockedKeys()
	s.Require().NotEmpty(keys)
	s.Contains(keys[0], string(types.LockScopeCustomerLedger))
	s.Contains(keys[0], "customer_id=cus_1")
}
