package feature

import "context"

type Repository interface {
	Create(ctx context.Context, f *Feature) error
	Get(ctx context.Context, id string) (*Feature, error)
	List(ctx context.Context, ids []string) ([]*Feature, error)
	ListAll(ctx context.Context) ([]*Feature, error)
	Update(ctx context.Context, f *Feature) error
	Delete(ctx context.Context, id string) error
}
