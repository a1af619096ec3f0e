package entitlement

import (
	"testing"

	"github.com/prorata-io/prorata/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedEntitlement(balance int64, usageAllowed bool) *Entitlement {
	return &Entitlement{
		ID:            "ent_1",
		CustomerID:    "cus_1",
		FeatureID:     "feat_messages",
		AllowanceType: types.ALLOWANCE_TYPE_FIXED,
		Allowance:     decimal.NewFromInt(100),
		Balance:       decimal.NewFromInt(balance),
		UsageAllowed:  usageAllowed,
	}
}

func TestDeduct_ClampsAtZeroWithoutOverage(t *testing.T) {
	ent := fixedEntitlement(20, false)

	result, err := ent.Deduct(DeductParams{Amount: decimal.NewFromInt(110)})
	require.NoError(t, err)
	assert.True(t, result.Balance.IsZero())
	assert.True(t, result.Deducted.Equal(decimal.NewFromInt(20)))
	assert.True(t, result.Remaining.Equal(decimal.NewFromInt(90)))

	// The record itself is untouched until Apply.
	assert.True(t, ent.Balance.Equal(decimal.NewFromInt(20)))
}

func TestDeduct_OverageGoesNegative(t *testing.T) {
	ent := fixedEntitlement(20, true)

	result, err := ent.Deduct(DeductParams{
		Amount:        decimal.NewFromInt(110),
		AllowNegative: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(-90)))
	assert.True(t, result.Remaining.IsZero())

	ent.Apply(result)
	assert.True(t, ent.Balance.Equal(decimal.NewFromInt(-90)))
	assert.True(t, ent.TotalUsage().Equal(decimal.NewFromInt(190)))
}

func TestDeduct_UsageLimitFloor(t *testing.T) {
	ent := fixedEntitlement(20, true)
	// Usage may not exceed 150 total, so the balance floors at -50.
	ent.UsageLimit = lo.ToPtr(decimal.NewFromInt(150))

	result, err := ent.Deduct(DeductParams{
		Amount:        decimal.NewFromInt(110),
		AllowNegative: true,
		EnforceLimit:  true,
	})
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(-50)))
	assert.True(t, result.Deducted.Equal(decimal.NewFromInt(70)))
	assert.True(t, result.Remaining.Equal(decimal.NewFromInt(40)))
}

func TestDeduct_UnlimitedIsRejected(t *testing.T) {
	ent := fixedEntitlement(0, false)
	ent.AllowanceType = types.ALLOWANCE_TYPE_UNLIMITED

	_, err := ent.Deduct(DeductParams{Amount: decimal.NewFromInt(10)})
	require.Error(t, err)
}

func TestDeduct_AddAdjustment(t *testing.T) {
	ent := fixedEntitlement(50, false)

	result, err := ent.Deduct(DeductParams{
		Amount:        decimal.NewFromInt(30),
		AddAdjustment: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Adjustment.Equal(decimal.NewFromInt(-30)))
}

func entityEntitlement() *Entitlement {
	return &Entitlement{
		ID:              "ent_2",
		CustomerID:      "cus_1",
		FeatureID:       "feat_messages",
		EntityFeatureID: "feat_seats",
		AllowanceType:   types.ALLOWANCE_TYPE_FIXED,
		Allowance:       decimal.NewFromInt(100),
		Entities: map[string]*EntityBalance{
			"seat_a": {Balance: decimal.NewFromInt(60)},
			"seat_b": {Balance: decimal.NewFromInt(40)},
		},
	}
}

func TestDeduct_TargetsOneEntity(t *testing.T) {
	ent := entityEntitlement()

	result, err := ent.Deduct(DeductParams{
		Amount:   decimal.NewFromInt(50),
		EntityID: "seat_a",
	})
	require.NoError(t, err)
	assert.True(t, result.Entities["seat_a"].Balance.Equal(decimal.NewFromInt(10)))
	assert.True(t, result.Entities["seat_b"].Balance.Equal(decimal.NewFromInt(40)))
}

func TestDeduct_UnknownEntity(t *testing.T) {
	ent := entityEntitlement()

	_, err := ent.Deduct(DeductParams{
		Amount:   decimal.NewFromInt(10),
		EntityID: "seat_missing",
	})
	require.Error(t, err)
}

func TestDeduct_FansOutAcrossEntities(t *testing.T) {
	ent := entityEntitlement()

	result, err := ent.Deduct(DeductParams{Amount: decimal.NewFromInt(80)})
	require.NoError(t, err)
	// seat_a drains first in deterministic order, seat_b takes the rest.
	assert.True(t, result.Entities["seat_a"].Balance.IsZero())
	assert.True(t, result.Entities["seat_b"].Balance.Equal(decimal.NewFromInt(20)))
	assert.True(t, result.Remaining.IsZero())
}

func TestTotalBalanceAndUsage(t *testing.T) {
	ent := entityEntitlement()
	assert.True(t, ent.TotalBalance().Equal(decimal.NewFromInt(100)))
	assert.True(t, ent.TotalAllowance().Equal(decimal.NewFromInt(200)))
	assert.True(t, ent.TotalUsage().Equal(decimal.NewFromInt(100)))
}
