package testutil

import (
	"context"

	"github.com/prorata-io/prorata/internal/cache"
	"github.com/prorata-io/prorata/internal/config"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/prorata-io/prorata/internal/postgres"
	"github.com/prorata-io/prorata/internal/pubsub"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores bundles the in-memory repositories used by service tests.
type Stores struct {
	EntitlementRepo *InMemoryEntitlementStore
	RolloverRepo    *InMemoryRolloverStore
	FeatureRepo     *InMemoryFeatureStore
	PriceRepo       *InMemoryPriceStore
}

// BaseServiceTestSuite provides common setup for service layer tests: an
// authenticated context, in-memory stores, and a no-op database client.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx           context.Context
	cfg           *config.Configuration
	log           *logger.Logger
	db            postgres.IClient
	cacheStore    cache.Cache
	stores        Stores
	pubSub        pubsub.PubSub
	invoiceClient *FakeInvoiceClient
}

// SetupTest initializes fresh stores before each test.
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = types.SetTenantID(context.Background(), types.DefaultTenantID)
	s.cfg = config.GetDefaultConfig()

	log, err := logger.NewLogger(s.cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
	s.log = log

	s.db = NewMockPostgresClient()
	s.cacheStore = cache.NewInMemoryCache()
	s.pubSub = NewInMemoryPubSub()
	s.invoiceClient = NewFakeInvoiceClient()
	s.stores = Stores{
		EntitlementRepo: NewInMemoryEntitlementStore(),
		RolloverRepo:    NewInMemoryRolloverStore(),
		FeatureRepo:     NewInMemoryFeatureStore(),
		PriceRepo:       NewInMemoryPriceStore(),
	}
}

// TearDownTest clears stores after each test.
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
}

// ClearStores wipes every in-memory store.
func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.EntitlementRepo.Clear()
	s.stores.RolloverRepo.Clear()
	s.stores.FeatureRepo.Clear()
	s.stores.PriceRepo.Clear()
}

func (s *BaseServiceTestSuite) GetContext() context.Context { return s.ctx }

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration { return s.cfg }

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger { return s.log }

func (s *BaseServiceTestSuite) GetDB() postgres.IClient { return s.db }

// GetMockDB exposes the mock client for lock assertions.
func (s *BaseServiceTestSuite) GetMockDB() *MockPostgresClient { return s.db.(*MockPostgresClient) }

func (s *BaseServiceTestSuite) GetCache() cache.Cache { return s.cacheStore }

func (s *BaseServiceTestSuite) GetStores() Stores { return s.stores }

func (s *BaseServiceTestSuite) GetPubSub() pubsub.PubSub { return s.pubSub }

func (s *BaseServiceTestSuite) GetInvoiceClient() *FakeInvoiceClient { return s.invoiceClient }
