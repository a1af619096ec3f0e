package proration

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PreviewLineItem is one line of an attach or change preview. Amount is nil
// for description only placeholders, used for arrear prices whose charge
// cannot be known until period end.
type PreviewLineItem struct {
	PriceID     string           `json:"price_id,omitempty"`
	FeatureID   string           `json:"feature_id,omitempty"`
	Description string           `json:"description"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UsageModel  string           `json:"usage_model,omitempty"`
	// Proration marks amounts already scaled to a partial window.
	Proration bool `json:"proration,omitempty"`
}

func (li *PreviewLineItem) HasAmount() bool {
	return li.Amount != nil
}

func (li *PreviewLineItem) AmountOrZero() decimal.Decimal {
	if li.Amount == nil {
		return decimal.Zero
	}
	return *li.Amount
}

// Total sums the priced lines of a preview.
func Total(items []*PreviewLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.AmountOrZero())
	}
	return total
}

// FilterZeroAmounts drops priced lines that charge nothing. Placeholder
// lines without an amount are kept.
func FilterZeroAmounts(items []*PreviewLineItem) []*PreviewLineItem {
	return lo.Filter(items, func(li *PreviewLineItem, _ int) bool {
		return !li.HasAmount() || !li.Amount.IsZero()
	})
}

// DropOffsettingPairs removes charge and credit lines for the same price
// that cancel exactly, which otherwise clutter renewal previews. Each credit
// cancels at most one charge.
func DropOffsettingPairs(items []*PreviewLineItem) []*PreviewLineItem {
	dropped := make(map[int]bool)
	for i, credit := range items {
		if dropped[i] || !credit.HasAmount() || !credit.Amount.IsNegative() {
			continue
		}
		for j, charge := range items {
			if i == j || dropped[j] || !charge.HasAmount() {
				continue
			}
			if charge.PriceID == credit.PriceID && charge.Amount.Neg().Equal(*credit.Amount) {
				dropped[i] = true
				dropped[j] = true
				break
			}
		}
	}
	result := make([]*PreviewLineItem, 0, len(items))
	for i, li := range items {
		if !dropped[i] {
			result = append(result, li)
		}
	}
	return result
}
