package entitlement

import "context"

type Repository interface {
	Create(ctx context.Context, e *Entitlement) error
	CreateBulk(ctx context.Context, ents []*Entitlement) error
	Get(ctx context.Context, id string) (*Entitlement, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Entitlement, error)
	ListByCustomerFeatures(ctx context.Context, customerID string, featureIDs []string) ([]*Entitlement, error)
	Update(ctx context.Context, e *Entitlement) error
	Delete(ctx context.Context, id string) error
	DeleteByCustomerProduct(ctx context.Context, customerProductID string) error
	// LockCustomerLedger serializes concurrent deductions for one customer.
	// It must be called inside a transaction; the lock is held until commit.
	LockCustomerLedger(ctx context.Context, customerID string) error
}
