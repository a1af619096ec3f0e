package testutil

import (
	"context"

	"github.com/prorata-io/prorata/internal/domain/entitlement"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InMemoryEntitlementStore implements entitlement.Repository
type InMemoryEntitlementStore struct {
	*InMemoryStore[*entitlement.Entitlement]
}

func NewInMemoryEntitlementStore() *InMemoryEntitlementStore {
	return &InMemoryEntitlementStore{
		InMemoryStore: NewInMemoryStore[*entitlement.Entitlement](),
	}
}

func copyEntitlement(e *entitlement.Entitlement) *entitlement.Entitlement {
	if e == nil {
		return nil
	}

	copied := *e
	if e.Entities != nil {
		copied.Entities = make(map[string]*entitlement.EntityBalance, len(e.Entities))
		for id, eb := range e.Entities {
			copied.Entities[id] = &entitlement.EntityBalance{
				Balance:    eb.Balance,
				Adjustment: eb.Adjustment,
			}
		}
	}
	if e.UsageLimit != nil {
		limit := *e.UsageLimit
		copied.UsageLimit = &limit
	}
	if e.NextResetAt != nil {
		t := *e.NextResetAt
		copied.NextResetAt = &t
	}
	return &copied
}

func (s *InMemoryEntitlementStore) Create(ctx context.Context, e *entitlement.Entitlement) error {
	if e == nil {
		return ierr.NewError("entitlement cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, e.ID, copyEntitlement(e))
}

func (s *InMemoryEntitlementStore) CreateBulk(ctx context.Context, ents []*entitlement.Entitlement) error {
	for _, e := range ents {
		if err := s.Create(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryEntitlementStore) Get(ctx context.Context, id string) (*entitlement.Entitlement, error) {
	e, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyEntitlement(e), nil
}

func (s *InMemoryEntitlementStore) ListByCustomer(ctx context.Context, customerID string) ([]*entitlement.Entitlement, error) {
	ents := s.InMemoryStore.List(ctx, func(ctx context.Context, e *entitlement.Entitlement) bool {
		return e.CustomerID == customerID && e.Status == types.StatusPublished
	}, func(a, b *entitlement.Entitlement) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return lo.Map(ents, func(e *entitlement.Entitlement, _ int) *entitlement.Entitlement {
		return copyEntitlement(e)
	}), nil
}

func (s *InMemoryEntitlementStore) ListByCustomerFeatures(ctx context.Context, customerID string, featureIDs []string) ([]*entitlement.Entitlement, error) {
	ents := s.InMemoryStore.List(ctx, func(ctx context.Context, e *entitlement.Entitlement) bool {
		return e.CustomerID == customerID &&
			e.Status == types.StatusPublished &&
			lo.Contains(featureIDs, e.FeatureID)
	}, func(a, b *entitlement.Entitlement) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return lo.Map(ents, func(e *entitlement.Entitlement, _ int) *entitlement.Entitlement {
		return copyEntitlement(e)
	}), nil
}

func (s *InMemoryEntitlementStore) Update(ctx context.Context, e *entitlement.Entitlement) error {
	if e == nil {
		return ierr.NewError("entitlement cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, e.ID, copyEntitlement(e))
}

func (s *InMemoryEntitlementStore) Delete(ctx context.Context, id string) error {
	e, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	deleted := copyEntitlement(e)
	deleted.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, id, deleted)
}

func (s *InMemoryEntitlementStore) DeleteByCustomerProduct(ctx context.Context, customerProductID string) error {
	ents := s.InMemoryStore.List(ctx, func(ctx context.Context, e *entitlement.Entitlement) bool {
		return e.CustomerProductID == customerProductID && e.Status == types.StatusPublished
	}, nil)
	for _, e := range ents {
		if err := s.Delete(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// LockCustomerLedger is a no-op in memory; tests run serially.
func (s *InMemoryEntitlementStore) LockCustomerLedger(ctx context.Context, customerID string) error {
	return nil
}

// TotalBalance sums all published balances of a customer feature, a test
// convenience.
func (s *InMemoryEntitlementStore) TotalBalance(ctx context.Context, customerID, featureID string) decimal.Decimal {
	ents, _ := s.ListByCustomerFeatures(ctx, customerID, []string{featureID})
	total := decimal.Zero
	for _, e := range ents {
		total = total.Add(e.TotalBalance())
	}
	return total
}
