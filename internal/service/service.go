package service

import (
	"context"

	"github.com/prorata-io/prorata/internal/cache"
	"github.com/prorata-io/prorata/internal/config"
	"github.com/prorata-io/prorata/internal/domain/entitlement"
	"github.com/prorata-io/prorata/internal/domain/feature"
	"github.com/prorata-io/prorata/internal/domain/price"
	"github.com/prorata-io/prorata/internal/domain/rollover"
	"github.com/prorata-io/prorata/internal/integration/stripe"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/prorata-io/prorata/internal/postgres"
	"github.com/prorata-io/prorata/internal/pubsub"
	"github.com/prorata-io/prorata/internal/types"
)

// ServiceParams bundles the dependencies shared by all services.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	EntitlementRepo entitlement.Repository
	RolloverRepo    rollover.Repository
	FeatureRepo     feature.Repository
	PriceRepo       price.Repository

	InvoiceClient stripe.InvoiceClient
	Publisher     pubsub.Publisher
}

// lockLedger takes the per customer advisory lock shared by every ledger
// writer, so deductions and rollover bucket rewrites never interleave.
// Must run inside a transaction.
func (p ServiceParams) lockLedger(ctx context.Context, customerID string) error {
	return p.DB.LockKey(ctx, types.LockRequest{
		Key: types.GenerateLockKey(ctx, types.LockScopeCustomerLedger, map[string]interface{}{
			"customer_id": customerID,
		}),
	})
}
