package rollover

import "github.com/shopspring/decimal"

// ClearingResult lists the bucket changes needed to bring total rolled over
// balance under a cap.
type ClearingResult struct {
	ToDelete []string
	ToUpdate []*Rollover
}

// PerformMaximumClearing shrinks rollover buckets until their total is at
// most max, consuming oldest expiring buckets first. Buckets fully consumed
// are deleted; a partially consumed bucket is updated in place.
func PerformMaximumClearing(rollovers []*Rollover, max decimal.Decimal) *ClearingResult {
	result := &ClearingResult{}

	total := decimal.Zero
	for _, r := range rollovers {
		total = total.Add(r.Total())
	}
	excess := total.Sub(max)
	if !excess.IsPositive() {
		return result
	}

	sorted := make([]*Rollover, len(rollovers))
	copy(sorted, rollovers)
	SortByExpiry(sorted)

	for _, r := range sorted {
		if !excess.IsPositive() {
			break
		}
		bucket := r.Total()
		if bucket.LessThanOrEqual(excess) {
			result.ToDelete = append(result.ToDelete, r.ID)
			excess = excess.Sub(bucket)
			continue
		}
		shrinkBucket(r, excess)
		result.ToUpdate = append(result.ToUpdate, r)
		excess = decimal.Zero
	}
	return result
}

// shrinkBucket removes amount from the bucket, draining entity balances in
// deterministic order when present.
func shrinkBucket(r *Rollover, amount decimal.Decimal) {
	if len(r.Entities) == 0 {
		r.Balance = r.Balance.Sub(amount)
		return
	}
	for _, id := range r.entityIDs() {
		if !amount.IsPositive() {
			break
		}
		take := decimal.Min(r.Entities[id], amount)
		r.Entities[id] = r.Entities[id].Sub(take)
		amount = amount.Sub(take)
	}
	r.Balance = r.Total()
}
