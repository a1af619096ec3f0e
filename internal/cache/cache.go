package cache

import (
	"context"
	"time"
)

// Cache defines the interface for cache implementations
type Cache interface {
	// Get retrieves a value from the cache, returning (value, true) on a hit
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set adds a value to the cache with the given expiration;
	// zero expiration applies the backend default
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	// Delete removes a key from the cache
	Delete(ctx context.Context, key string)

	// DeleteByPrefix removes all keys with the given prefix
	DeleteByPrefix(ctx context.Context, prefix string)

	// Flush removes all items from the cache
	Flush(ctx context.Context)
}

// Key prefixes for cached aggregates. Balance summaries are invalidated after
// every committed deduction batch.
const (
	PrefixCustomerBalance = "cus_balance"
)

// CustomerBalanceKey builds the cache key for a customer's balance summary.
func CustomerBalanceKey(tenantID, customerID string) string {
	return PrefixCustomerBalance + ":" + tenantID + ":" + customerID
}
