package service

import (
	"github.com/prorata-io/prorata/internal/testutil"
)

// serviceSuite wires the shared in-memory dependencies into ServiceParams for
// every service suite in this package.
type serviceSuite struct {
	testutil.BaseServiceTestSuite
}

func (s *serviceSuite) params() ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		DB:              s.GetDB(),
		Cache:           s.GetCache(),
		EntitlementRepo: stores.EntitlementRepo,
		RolloverRepo:    stores.RolloverRepo,
		FeatureRepo:     stores.FeatureRepo,
		PriceRepo:       stores.PriceRepo,
		InvoiceClient:   s.GetInvoiceClient(),
		Publisher:       s.GetPubSub(),
	}
}
