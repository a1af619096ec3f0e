package price

import "context"

type Repository interface {
	Create(ctx context.Context, p *Price) error
	Get(ctx context.Context, id string) (*Price, error)
	ListByProduct(ctx context.Context, productID string) ([]*Price, error)
	Update(ctx context.Context, p *Price) error
	Delete(ctx context.Context, id string) error
}
