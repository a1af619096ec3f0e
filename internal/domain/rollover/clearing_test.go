package rollover

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func bucket(id string, balance int64, expiresAt time.Time) *Rollover {
	return &Rollover{
		ID:        id,
		Balance:   decimal.NewFromInt(balance),
		ExpiresAt: expiresAt,
	}
}

func TestPerformMaximumClearing_UnderCapIsNoop(t *testing.T) {
	now := time.Now().UTC()
	rollovers := []*Rollover{
		bucket("roll_1", 40, now.AddDate(0, 1, 0)),
		bucket("roll_2", 40, now.AddDate(0, 2, 0)),
	}

	result := PerformMaximumClearing(rollovers, decimal.NewFromInt(100))
	assert.Empty(t, result.ToDelete)
	assert.Empty(t, result.ToUpdate)
}

func TestPerformMaximumClearing_DeletesOldestFirst(t *testing.T) {
	now := time.Now().UTC()
	oldest := bucket("roll_old", 50, now.AddDate(0, 1, 0))
	newest := bucket("roll_new", 50, now.AddDate(0, 3, 0))

	result := PerformMaximumClearing([]*Rollover{newest, oldest}, decimal.NewFromInt(50))
	assert.Equal(t, []string{"roll_old"}, result.ToDelete)
	assert.Empty(t, result.ToUpdate)
}

func TestPerformMaximumClearing_ShrinksPartially(t *testing.T) {
	now := time.Now().UTC()
	oldest := bucket("roll_old", 60, now.AddDate(0, 1, 0))
	newest := bucket("roll_new", 50, now.AddDate(0, 3, 0))

	// Total 110, cap 80: the oldest bucket gives up 30.
	result := PerformMaximumClearing([]*Rollover{oldest, newest}, decimal.NewFromInt(80))
	assert.Empty(t, result.ToDelete)
	assert.Len(t, result.ToUpdate, 1)
	assert.Equal(t, "roll_old", result.ToUpdate[0].ID)
	assert.True(t, result.ToUpdate[0].Balance.Equal(decimal.NewFromInt(30)))
	assert.True(t, newest.Balance.Equal(decimal.NewFromInt(50)))
}

func TestPerformMaximumClearing_DeleteThenShrink(t *testing.T) {
	now := time.Now().UTC()
	first := bucket("roll_1", 30, now.AddDate(0, 1, 0))
	second := bucket("roll_2", 30, now.AddDate(0, 2, 0))
	third := bucket("roll_3", 30, now.AddDate(0, 3, 0))

	// Total 90, cap 40: the first bucket goes entirely, the second loses 20.
	result := PerformMaximumClearing([]*Rollover{first, second, third}, decimal.NewFromInt(40))
	assert.Equal(t, []string{"roll_1"}, result.ToDelete)
	assert.Len(t, result.ToUpdate, 1)
	assert.Equal(t, "roll_2", result.ToUpdate[0].ID)
	assert.True(t, result.ToUpdate[0].Balance.Equal(decimal.NewFromInt(10)))
}

func TestPerformMaximumClearing_EntityBuckets(t *testing.T) {
	now := time.Now().UTC()
	r := &Rollover{
		ID:        "roll_ent",
		ExpiresAt: now.AddDate(0, 1, 0),
		Entities: map[string]decimal.Decimal{
			"seat_a": decimal.NewFromInt(30),
			"seat_b": decimal.NewFromInt(30),
		},
	}
	r.Balance = r.Total()

	result := PerformMaximumClearing([]*Rollover{r}, decimal.NewFromInt(40))
	assert.Len(t, result.ToUpdate, 1)
	assert.True(t, r.Total().Equal(decimal.NewFromInt(40)))
	// Entities drain in deterministic order, seat_a first.
	assert.True(t, r.Entities["seat_a"].Equal(decimal.NewFromInt(10)))
	assert.True(t, r.Entities["seat_b"].Equal(decimal.NewFromInt(30)))
}
