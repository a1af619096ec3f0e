package proration

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func amount(v int64) *decimal.Decimal {
	return lo.ToPtr(decimal.NewFromInt(v))
}

func TestFilterZeroAmounts(t *testing.T) {
	items := []*PreviewLineItem{
		{PriceID: "price_a", Amount: amount(10)},
		{PriceID: "price_b", Amount: amount(0)},
		{PriceID: "price_c", Description: "usage placeholder"},
	}

	filtered := FilterZeroAmounts(items)
	assert.Len(t, filtered, 2)
	assert.Equal(t, "price_a", filtered[0].PriceID)
	assert.Equal(t, "price_c", filtered[1].PriceID)
}

func TestDropOffsettingPairs(t *testing.T) {
	items := []*PreviewLineItem{
		{PriceID: "price_a", Amount: amount(25)},
		{PriceID: "price_a", Amount: amount(-25)},
		{PriceID: "price_b", Amount: amount(25)},
		{PriceID: "price_b", Amount: amount(-10)},
	}

	result := DropOffsettingPairs(items)
	assert.Len(t, result, 2)
	assert.Equal(t, "price_b", result[0].PriceID)
	assert.True(t, result[0].Amount.Equal(decimal.NewFromInt(25)))
	assert.True(t, result[1].Amount.Equal(decimal.NewFromInt(-10)))
}

func TestDropOffsettingPairs_CreditCancelsOnlyOneCharge(t *testing.T) {
	items := []*PreviewLineItem{
		{PriceID: "price_a", Amount: amount(25)},
		{PriceID: "price_a", Amount: amount(25)},
		{PriceID: "price_a", Amount: amount(-25)},
	}

	result := DropOffsettingPairs(items)
	assert.Len(t, result, 1)
	assert.True(t, result[0].Amount.Equal(decimal.NewFromInt(25)))
}

func TestTotal(t *testing.T) {
	items := []*PreviewLineItem{
		{Amount: amount(30)},
		{Amount: amount(-12)},
		{Description: "placeholder"},
	}
	assert.True(t, Total(items).Equal(decimal.NewFromInt(18)))
}
