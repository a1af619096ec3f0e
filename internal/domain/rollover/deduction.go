package rollover

import "github.com/shopspring/decimal"

// DeductResult reports which buckets changed after consuming from rollovers.
// Buckets drained to zero stay in Updated with a zero balance; callers decide
// whether to delete or keep them until expiry.
type DeductResult struct {
	Updated   []*Rollover
	Deducted  decimal.Decimal
	Remaining decimal.Decimal
}

// Deduct consumes up to amount from the buckets, oldest expiry first.
// entityID targets one entity balance on entity scoped buckets; empty drains
// entities in deterministic order. Rollover balances never go negative.
func Deduct(rollovers []*Rollover, amount decimal.Decimal, entityID string) *DeductResult {
	result := &DeductResult{Remaining: amount, Deducted: decimal.Zero}
	if !amount.IsPositive() {
		return result
	}

	sorted := make([]*Rollover, len(rollovers))
	copy(sorted, rollovers)
	SortByExpiry(sorted)

	for _, r := range sorted {
		if !result.Remaining.IsPositive() {
			break
		}
		taken := deductFromBucket(r, result.Remaining, entityID)
		if taken.IsPositive() {
			result.Updated = append(result.Updated, r)
			result.Deducted = result.Deducted.Add(taken)
			result.Remaining = result.Remaining.Sub(taken)
		}
	}
	return result
}

func deductFromBucket(r *Rollover, amount decimal.Decimal, entityID string) decimal.Decimal {
	if len(r.Entities) == 0 {
		available := r.Balance
		if !available.IsPositive() {
			return decimal.Zero
		}
		take := decimal.Min(available, amount)
		r.Balance = r.Balance.Sub(take)
		return take
	}

	if entityID != "" {
		available, ok := r.Entities[entityID]
		if !ok || !available.IsPositive() {
			return decimal.Zero
		}
		take := decimal.Min(available, amount)
		r.Entities[entityID] = available.Sub(take)
		r.Balance = r.Total()
		return take
	}

	taken := decimal.Zero
	for _, id := range r.entityIDs() {
		if !amount.IsPositive() {
			break
		}
		available := r.Entities[id]
		if !available.IsPositive() {
			continue
		}
		take := decimal.Min(available, amount)
		r.Entities[id] = available.Sub(take)
		amount = amount.Sub(take)
		taken = taken.Add(take)
	}
	r.Balance = r.Total()
	return taken
}
