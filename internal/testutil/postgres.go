package testutil

import (
	"context"
	"database/sql"
	"sync"

	"github.com/prorata-io/prorata/internal/postgres"
	"github.com/prorata-io/prorata/internal/types"
)

// MockPostgresClient satisfies postgres.IClient for service tests backed by
// in-memory stores. WithTx simply runs the function; there is nothing to
// roll back because the stores are only written after validations pass.
// Advisory lock keys are recorded so tests can assert serialization points.
type MockPostgresClient struct {
	mu       sync.Mutex
	lockKeys []string
}

func NewMockPostgresClient() *MockPostgresClient {
	return &MockPostgresClient{}
}

func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	return nil
}

func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (c *MockPostgresClient) TxFromContext(ctx context.Context) *sql.Tx {
	return nil
}

func (c *MockPostgresClient) LockKey(ctx context.Context, req types.LockRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lockKeys = append(c.lockKeys, req.Key)
	return nil
}

// LockedKeys returns every advisory lock key acquired so far.
func (c *MockPostgresClient) LockedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lockKeys...)
}

func (c *MockPostgresClient) TryLockKey(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (c *MockPostgresClient) Close() error {
	return nil
}
