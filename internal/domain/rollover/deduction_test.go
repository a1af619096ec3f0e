package rollover

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeduct_OldestExpiryFirst(t *testing.T) {
	now := time.Now().UTC()
	oldest := bucket("roll_old", 10, now.AddDate(0, 1, 0))
	newest := bucket("roll_new", 10, now.AddDate(0, 2, 0))

	result := Deduct([]*Rollover{newest, oldest}, decimal.NewFromInt(15), "")
	assert.True(t, result.Deducted.Equal(decimal.NewFromInt(15)))
	assert.True(t, result.Remaining.IsZero())
	assert.True(t, oldest.Balance.IsZero())
	assert.True(t, newest.Balance.Equal(decimal.NewFromInt(5)))
}

func TestDeduct_ReportsUncoveredRemainder(t *testing.T) {
	now := time.Now().UTC()
	only := bucket("roll_1", 10, now.AddDate(0, 1, 0))

	result := Deduct([]*Rollover{only}, decimal.NewFromInt(25), "")
	assert.True(t, result.Deducted.Equal(decimal.NewFromInt(10)))
	assert.True(t, result.Remaining.Equal(decimal.NewFromInt(15)))
	assert.True(t, only.Balance.IsZero())
}

func TestDeduct_NeverGoesNegative(t *testing.T) {
	now := time.Now().UTC()
	drained := bucket("roll_1", 0, now.AddDate(0, 1, 0))

	result := Deduct([]*Rollover{drained}, decimal.NewFromInt(5), "")
	assert.True(t, result.Deducted.IsZero())
	assert.True(t, result.Remaining.Equal(decimal.NewFromInt(5)))
	assert.Empty(t, result.Updated)
}

func TestDeduct_EntityScoped(t *testing.T) {
	now := time.Now().UTC()
	r := &Rollover{
		ID:        "roll_ent",
		ExpiresAt: now.AddDate(0, 1, 0),
		Entities: map[string]decimal.Decimal{
			"seat_a": decimal.NewFromInt(10),
			"seat_b": decimal.NewFromInt(10),
		},
	}
	r.Balance = r.Total()

	result := Deduct([]*Rollover{r}, decimal.NewFromInt(7), "seat_b")
	assert.True(t, result.Deducted.Equal(decimal.NewFromInt(7)))
	assert.True(t, r.Entities["seat_b"].Equal(decimal.NewFromInt(3)))
	assert.True(t, r.Entities["seat_a"].Equal(decimal.NewFromInt(10)))
}

func TestDeduct_EntityFanOut(t *testing.T) {
	now := time.Now().UTC()
	r := &Rollover{
		ID:        "roll_ent",
		ExpiresAt: now.AddDate(0, 1, 0),
		Entities: map[string]decimal.Decimal{
			"seat_a": decimal.NewFromInt(10),
			"seat_b": decimal.NewFromInt(10),
		},
	}
	r.Balance = r.Total()

	result := Deduct([]*Rollover{r}, decimal.NewFromInt(15), "")
	assert.True(t, result.Remaining.IsZero())
	assert.True(t, r.Entities["seat_a"].IsZero())
	assert.True(t, r.Entities["seat_b"].Equal(decimal.NewFromInt(5)))
}
