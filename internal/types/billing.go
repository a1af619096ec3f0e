package types

import (
	ierr "github.com/prorata-io/prorata/internal/errors"
)

// BillingPeriod is the recurring interval of a price or an entitlement reset.
type BillingPeriod string

const (
	BILLING_PERIOD_WEEKLY      BillingPeriod = "WEEKLY"
	BILLING_PERIOD_MONTHLY     BillingPeriod = "MONTHLY"
	BILLING_PERIOD_QUARTERLY   BillingPeriod = "QUARTERLY"
	BILLING_PERIOD_HALF_YEARLY BillingPeriod = "HALF_YEARLY"
	BILLING_PERIOD_ANNUAL      BillingPeriod = "ANNUAL"
)

func (b BillingPeriod) String() string {
	return string(b)
}

func (b BillingPeriod) Validate() error {
	switch b {
	case BILLING_PERIOD_WEEKLY, BILLING_PERIOD_MONTHLY, BILLING_PERIOD_QUARTERLY,
		BILLING_PERIOD_HALF_YEARLY, BILLING_PERIOD_ANNUAL:
		return nil
	default:
		return ierr.NewErrorf("invalid billing period: %s", b).
			WithHint("Billing period must be one of WEEKLY, MONTHLY, QUARTERLY, HALF_YEARLY, ANNUAL").
			Mark(ierr.ErrValidation)
	}
}

// Months returns the number of calendar months the period spans.
// Weekly periods are not month based and return 0.
func (b BillingPeriod) Months() int {
	switch b {
	case BILLING_PERIOD_MONTHLY:
		return 1
	case BILLING_PERIOD_QUARTERLY:
		return 3
	case BILLING_PERIOD_HALF_YEARLY:
		return 6
	case BILLING_PERIOD_ANNUAL:
		return 12
	default:
		return 0
	}
}

// PriceType distinguishes fixed recurring prices from usage based ones.
type PriceType string

const (
	PRICE_TYPE_FIXED PriceType = "FIXED"
	PRICE_TYPE_USAGE PriceType = "USAGE"
)

// BillingCadence is when a price is charged relative to the period.
type BillingCadence string

const (
	BILLING_CADENCE_ADVANCE BillingCadence = "ADVANCE"
	BILLING_CADENCE_ARREAR  BillingCadence = "ARREAR"
)

// BillingType is the full classification of how a price bills. It drives both
// line item construction and the deduction pipeline's overage policy.
type BillingType string

const (
	// BILLING_TYPE_FIXED_CYCLE is a fixed amount charged every cycle in advance.
	BILLING_TYPE_FIXED_CYCLE BillingType = "FIXED_CYCLE"
	// BILLING_TYPE_ONE_OFF is a fixed amount charged once, never prorated.
	BILLING_TYPE_ONE_OFF BillingType = "ONE_OFF"
	// BILLING_TYPE_USAGE_IN_ADVANCE is prepaid usage (quantity x unit price up front).
	BILLING_TYPE_USAGE_IN_ADVANCE BillingType = "USAGE_IN_ADVANCE"
	// BILLING_TYPE_USAGE_IN_ARREAR is metered usage billed at period end.
	BILLING_TYPE_USAGE_IN_ARREAR BillingType = "USAGE_IN_ARREAR"
	// BILLING_TYPE_IN_ARREAR_PRORATED is continued-use billing (e.g. seats)
	// where mid-cycle quantity changes produce prorated invoice items.
	BILLING_TYPE_IN_ARREAR_PRORATED BillingType = "IN_ARREAR_PRORATED"
)

// UsageModel is the customer facing classification of a price on previews.
type UsageModel string

const (
	USAGE_MODEL_PREPAID     UsageModel = "prepaid"
	USAGE_MODEL_PAY_PER_USE UsageModel = "pay_per_use"
)

// AllowanceType marks whether an entitlement grants a finite allowance.
type AllowanceType string

const (
	ALLOWANCE_TYPE_FIXED     AllowanceType = "fixed"
	ALLOWANCE_TYPE_UNLIMITED AllowanceType = "unlimited"
)

// FeatureType classifies features for deduction ordering: metered features
// deduct raw usage, credit systems absorb converted remainders afterwards.
type FeatureType string

const (
	FEATURE_TYPE_METERED       FeatureType = "metered"
	FEATURE_TYPE_CREDIT_SYSTEM FeatureType = "credit_system"
	FEATURE_TYPE_BOOLEAN       FeatureType = "boolean"
)

// ProrationBehavior controls whether plan changes generate prorated items.
type ProrationBehavior string

const (
	ProrationBehaviorCreateProrations ProrationBehavior = "create_prorations"
	ProrationBehaviorNone             ProrationBehavior = "none"
)

// AttachBranch is the high-level plan-change scenario, classified by the
// orchestrator and consumed here as-is.
type AttachBranch string

const (
	AttachBranchNew           AttachBranch = "new"
	AttachBranchUpgrade       AttachBranch = "upgrade"
	AttachBranchDowngrade     AttachBranch = "downgrade"
	AttachBranchRenewal       AttachBranch = "renewal"
	AttachBranchVersionChange AttachBranch = "version_change"
)
