package rollover

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, r *Rollover) error
	Get(ctx context.Context, id string) (*Rollover, error)
	// ListActive returns the non expired buckets of an entitlement.
	ListActive(ctx context.Context, entitlementID string, now time.Time) ([]*Rollover, error)
	ListByEntitlement(ctx context.Context, entitlementID string) ([]*Rollover, error)
	Update(ctx context.Context, r *Rollover) error
	UpdateBulk(ctx context.Context, rollovers []*Rollover) error
	Delete(ctx context.Context, ids []string) error
	DeleteExpired(ctx context.Context, entitlementID string, now time.Time) error
}
