package testutil

import (
	"context"

	"github.com/prorata-io/prorata/internal/domain/feature"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/samber/lo"
)

// InMemoryFeatureStore implements feature.Repository
type InMemoryFeatureStore struct {
	*InMemoryStore[*feature.Feature]
}

func NewInMemoryFeatureStore() *InMemoryFeatureStore {
	return &InMemoryFeatureStore{
		InMemoryStore: NewInMemoryStore[*feature.Feature](),
	}
}

func copyFeature(f *feature.Feature) *feature.Feature {
	if f == nil {
		return nil
	}
	copied := *f
	if f.CreditSchema != nil {
		copied.CreditSchema = append([]feature.CreditSchemaItem{}, f.CreditSchema...)
	}
	return &copied
}

func (s *InMemoryFeatureStore) Create(ctx context.Context, f *feature.Feature) error {
	if f == nil {
		return ierr.NewError("feature cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, f.ID, copyFeature(f))
}

func (s *InMemoryFeatureStore) Get(ctx context.Context, id string) (*feature.Feature, error) {
	f, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyFeature(f), nil
}

func (s *InMemoryFeatureStore) List(ctx context.Context, ids []string) ([]*feature.Feature, error) {
	features := s.InMemoryStore.List(ctx, func(ctx context.Context, f *feature.Feature) bool {
		return f.Status == types.StatusPublished && lo.Contains(ids, f.ID)
	}, nil)
	return lo.Map(features, func(f *feature.Feature, _ int) *feature.Feature {
		return copyFeature(f)
	}), nil
}

func (s *InMemoryFeatureStore) ListAll(ctx context.Context) ([]*feature.Feature, error) {
	features := s.InMemoryStore.List(ctx, func(ctx context.Context, f *feature.Feature) bool {
		return f.Status == types.StatusPublished
	}, nil)
	return lo.Map(features, func(f *feature.Feature, _ int) *feature.Feature {
		return copyFeature(f)
	}), nil
}

func (s *InMemoryFeatureStore) Update(ctx context.Context, f *feature.Feature) error {
	if f == nil {
		return ierr.NewError("feature cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, f.ID, copyFeature(f))
}

func (s *InMemoryFeatureStore) Delete(ctx context.Context, id string) error {
	f, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	deleted := copyFeature(f)
	deleted.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, id, deleted)
}
