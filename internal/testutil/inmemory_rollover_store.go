package testutil

import (
	"context"
	"time"

	"github.com/prorata-io/prorata/internal/domain/rollover"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InMemoryRolloverStore implements rollover.Repository
type InMemoryRolloverStore struct {
	*InMemoryStore[*rollover.Rollover]
}

func NewInMemoryRolloverStore() *InMemoryRolloverStore {
	return &InMemoryRolloverStore{
		InMemoryStore: NewInMemoryStore[*rollover.Rollover](),
	}
}

func copyRollover(r *rollover.Rollover) *rollover.Rollover {
	if r == nil {
		return nil
	}
	copied := *r
	if r.Entities != nil {
		copied.Entities = lo.Assign(map[string]decimal.Decimal{}, r.Entities)
	}
	return &copied
}

func (s *InMemoryRolloverStore) Create(ctx context.Context, r *rollover.Rollover) error {
	if r == nil {
		return ierr.NewError("rollover cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, r.ID, copyRollover(r))
}

func (s *InMemoryRolloverStore) Get(ctx context.Context, id string) (*rollover.Rollover, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == types.StatusDeleted {
		return nil, ierr.NewErrorf("item with id %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyRollover(r), nil
}

func (s *InMemoryRolloverStore) ListActive(ctx context.Context, entitlementID string, now time.Time) ([]*rollover.Rollover, error) {
	rollovers := s.InMemoryStore.List(ctx, func(ctx context.Context, r *rollover.Rollover) bool {
		return r.EntitlementID == entitlementID &&
			r.Status == types.StatusPublished &&
			r.ExpiresAt.After(now)
	}, func(a, b *rollover.Rollover) bool {
		return a.ExpiresAt.Before(b.ExpiresAt)
	})
	return lo.Map(rollovers, func(r *rollover.Rollover, _ int) *rollover.Rollover {
		return copyRollover(r)
	}), nil
}

func (s *InMemoryRolloverStore) ListByEntitlement(ctx context.Context, entitlementID string) ([]*rollover.Rollover, error) {
	rollovers := s.InMemoryStore.List(ctx, func(ctx context.Context, r *rollover.Rollover) bool {
		return r.EntitlementID == entitlementID && r.Status == types.StatusPublished
	}, func(a, b *rollover.Rollover) bool {
		return a.ExpiresAt.Before(b.ExpiresAt)
	})
	return lo.Map(rollovers, func(r *rollover.Rollover, _ int) *rollover.Rollover {
		return copyRollover(r)
	}), nil
}

func (s *InMemoryRolloverStore) Update(ctx context.Context, r *rollover.Rollover) error {
	if r == nil {
		return ierr.NewError("rollover cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, r.ID, copyRollover(r))
}

func (s *InMemoryRolloverStore) UpdateBulk(ctx context.Context, rollovers []*rollover.Rollover) error {
	for _, r := range rollovers {
		if err := s.Update(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Delete soft-deletes by status, mirroring the silent UPDATE the postgres
// repository issues for unknown ids.
func (s *InMemoryRolloverStore) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		r, err := s.InMemoryStore.Get(ctx, id)
		if err != nil {
			continue
		}
		deleted := copyRollover(r)
		deleted.Status = types.StatusDeleted
		if err := s.InMemoryStore.Update(ctx, id, deleted); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryRolloverStore) DeleteExpired(ctx context.Context, entitlementID string, now time.Time) error {
	expired := s.InMemoryStore.List(ctx, func(ctx context.Context, r *rollover.Rollover) bool {
		return r.EntitlementID == entitlementID &&
			r.Status == types.StatusPublished &&
			!r.ExpiresAt.After(now)
	}, nil)
	return s.Delete(ctx, lo.Map(expired, func(r *rollover.Rollover, _ int) string { return r.ID }))
}
