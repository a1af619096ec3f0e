package types

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LockScope represents the scope of a database advisory lock
type LockScope string

const (
	// LockScopeCustomerLedger serializes ledger writers per customer:
	// deduction pipelines and the rollover jobs that rewrite their buckets
	LockScopeCustomerLedger LockScope = "customer_ledger"
)

const defaultLockTimeout = 30 * time.Second

// LockRequest describes an advisory lock acquisition.
// A nil Timeout defaults to 30 seconds; zero or negative means fail-fast.
type LockRequest struct {
	Key     string
	Timeout *time.Duration
}

func (r LockRequest) GetTimeout() time.Duration {
	if r.Timeout == nil {
		return defaultLockTimeout
	}
	return *r.Timeout
}

// GenerateLockKey generates a lock key from a scope and parameters.
// Automatically extracts tenant_id and environment_id from context and
// includes them in the key. The key is a deterministic string that Postgres
// will hash internally via hashtext().
func GenerateLockKey(ctx context.Context, scope LockScope, params map[string]interface{}) string {
	mergedParams := make(map[string]interface{})

	if tenantID := GetTenantID(ctx); tenantID != "" {
		mergedParams["tenant_id"] = tenantID
	}
	if environmentID := GetEnvironmentID(ctx); environmentID != "" {
		mergedParams["environment_id"] = environmentID
	}
	for k, v := range params {
		mergedParams[k] = v
	}

	keys := make([]string, 0, len(mergedParams))
	for k := range mergedParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Format: scope:key1=value1:key2=value2:...
	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, mergedParams[k]))
	}
	return b.String()
}
