package entitlement

import (
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/shopspring/decimal"
)

// DeductParams controls one deduction against a ledger record.
type DeductParams struct {
	Amount decimal.Decimal
	// EntityID targets a single entity balance on entity scoped records.
	// Empty on an entity scoped record fans the deduction out across all
	// entities in deterministic order.
	EntityID string
	// AllowNegative lets the balance cross zero. Without it the deduction
	// consumes at most the positive balance and reports the remainder.
	AllowNegative bool
	// EnforceLimit blocks the balance from dropping below the usage limit
	// floor even when negative balances are allowed.
	EnforceLimit bool
	// AddAdjustment records the deducted amount as a manual adjustment so it
	// survives the next balance reset.
	AddAdjustment bool
}

// DeductResult is the outcome of applying a deduction. Balance and Entities
// are the new values to persist; the input record is not mutated.
type DeductResult struct {
	Balance    decimal.Decimal
	Adjustment decimal.Decimal
	Entities   map[string]*EntityBalance
	Deducted   decimal.Decimal
	Remaining  decimal.Decimal
}

// deductFromBalance consumes up to amount from a single balance. minBalance,
// when non nil, is the floor the balance may reach.
func deductFromBalance(balance, amount decimal.Decimal, allowNegative bool, minBalance *decimal.Decimal) (newBalance, deducted, remaining decimal.Decimal) {
	available := balance
	if !allowNegative {
		if available.IsNegative() {
			available = decimal.Zero
		}
	} else if minBalance != nil {
		available = balance.Sub(*minBalance)
		if available.IsNegative() {
			available = decimal.Zero
		}
	} else {
		return balance.Sub(amount), amount, decimal.Zero
	}

	deducted = decimal.Min(amount, available)
	return balance.Sub(deducted), deducted, amount.Sub(deducted)
}

// Deduct applies a deduction to the record and returns the new balances. It
// never mutates the record so a failed pipeline can be abandoned without
// touching the ledger.
func (e *Entitlement) Deduct(params DeductParams) (*DeductResult, error) {
	if e.IsUnlimited() {
		return nil, ierr.NewError("cannot deduct from an unlimited entitlement").
			WithHint("Unlimited entitlements do not track balances").
			Mark(ierr.ErrInvalidOperation)
	}

	var minBalance *decimal.Decimal
	if params.EnforceLimit {
		minBalance = e.MinBalance()
	}

	result := &DeductResult{
		Balance:    e.Balance,
		Adjustment: e.Adjustment,
		Deducted:   decimal.Zero,
		Remaining:  params.Amount,
	}

	if !e.IsEntityScoped() {
		result.Balance, result.Deducted, result.Remaining =
			deductFromBalance(e.Balance, params.Amount, params.AllowNegative, minBalance)
		if params.AddAdjustment {
			result.Adjustment = e.Adjustment.Sub(result.Deducted)
		}
		return result, nil
	}

	result.Entities = make(map[string]*EntityBalance, len(e.Entities))
	for id, eb := range e.Entities {
		result.Entities[id] = &EntityBalance{Balance: eb.Balance, Adjustment: eb.Adjustment}
	}

	if params.EntityID != "" {
		eb, ok := result.Entities[params.EntityID]
		if !ok {
			return nil, ierr.NewErrorf("entity %s not found on entitlement %s", params.EntityID, e.ID).
				WithHint("The entity has no balance under this feature").
				Mark(ierr.ErrNotFound)
		}
		var deducted decimal.Decimal
		eb.Balance, deducted, result.Remaining =
			deductFromBalance(eb.Balance, params.Amount, params.AllowNegative, minBalance)
		result.Deducted = deducted
		if params.AddAdjustment {
			eb.Adjustment = eb.Adjustment.Sub(deducted)
		}
		return result, nil
	}

	remaining := params.Amount
	for _, id := range e.EntityIDs() {
		if remaining.IsZero() {
			break
		}
		eb := result.Entities[id]
		var deducted decimal.Decimal
		eb.Balance, deducted, remaining = deductFromBalance(eb.Balance, remaining, params.AllowNegative, minBalance)
		result.Deducted = result.Deducted.Add(deducted)
		if params.AddAdjustment {
			eb.Adjustment = eb.Adjustment.Sub(deducted)
		}
	}
	result.Remaining = remaining
	return result, nil
}

// Apply writes a deduction result back onto the record.
func (e *Entitlement) Apply(result *DeductResult) {
	e.Balance = result.Balance
	e.Adjustment = result.Adjustment
	if result.Entities != nil {
		e.Entities = result.Entities
	}
}
