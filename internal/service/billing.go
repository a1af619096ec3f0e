package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prorata-io/prorata/internal/api/dto"
	"github.com/prorata-io/prorata/internal/domain/entitlement"
	"github.com/prorata-io/prorata/internal/domain/price"
	"github.com/prorata-io/prorata/internal/domain/proration"
	"github.com/prorata-io/prorata/internal/integration/stripe"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BillingService builds attach and plan change previews: prorated charges
// for the incoming product, credits for unused time on the outgoing one, and
// the composed due-today total.
type BillingService interface {
	GetAttachPreview(ctx context.Context, req *dto.AttachPreviewRequest) (*dto.AttachPreviewResponse, error)
	// ProcessPendingItems reconciles the customer's pending continued-use
	// invoice items with the product being attached: items whose price
	// survives are kept, orphaned items are removed, and items whose feature
	// continues under a different price are reattached as placeholders.
	ProcessPendingItems(ctx context.Context, customerID, newProductID string) error
}

type billingService struct {
	ServiceParams
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{ServiceParams: params}
}

func (s *billingService) GetAttachPreview(ctx context.Context, req *dto.AttachPreviewRequest) (*dto.AttachPreviewResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	newPrices, err := s.PriceRepo.ListByProduct(ctx, req.NewProductID)
	if err != nil {
		return nil, err
	}

	items := make([]*proration.PreviewLineItem, 0)
	newItems, err := s.newProductItems(ctx, req, newPrices, now)
	if err != nil {
		return nil, err
	}
	// A free trial zeroes only the incoming product's charges. Credits for
	// unused time on the outgoing product are still owed to the customer.
	if req.FreeTrial {
		zeroAmounts(newItems)
	}
	items = append(items, newItems...)

	if req.CurrentProductID != "" {
		currentItems, err := s.currentProductItems(ctx, req, now)
		if err != nil {
			return nil, err
		}
		items = append(items, currentItems...)
	}

	items = proration.DropOffsettingPairs(items)
	items = proration.FilterZeroAmounts(items)

	dueToday := proration.Total(items)
	if dueToday.IsNegative() && s.Config.Billing.FloorInvoiceTotal {
		dueToday = decimal.Zero
	}

	resp := &dto.AttachPreviewResponse{
		CustomerID: req.CustomerID,
		Currency:   s.currency(newPrices),
		DueToday:   dueToday,
		LineItems:  items,
	}

	if nextCycle, err := s.nextCyclePreview(req, newPrices, now); err == nil && nextCycle != nil {
		resp.NextCycle = nextCycle
	} else if err != nil {
		s.Logger.Warnw("skipping next cycle preview", "error", err)
	}

	return resp, nil
}

// newProductItems builds the charges for the product being attached.
func (s *billingService) newProductItems(ctx context.Context, req *dto.AttachPreviewRequest, prices []*price.Price, now time.Time) ([]*proration.PreviewLineItem, error) {
	items := make([]*proration.PreviewLineItem, 0, len(prices))
	for _, p := range prices {
		if p.IsEmpty() && p.Type == types.PRICE_TYPE_FIXED {
			continue
		}
		item, err := s.newProductItem(req, p, now)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *billingService) newProductItem(req *dto.AttachPreviewRequest, p *price.Price, now time.Time) (*proration.PreviewLineItem, error) {
	item := &proration.PreviewLineItem{
		PriceID:    p.ID,
		FeatureID:  p.FeatureID,
		UsageModel: string(p.GetUsageModel()),
	}

	switch p.GetBillingType() {
	case types.BILLING_TYPE_ONE_OFF:
		item.Description = "One time charge"
		item.Amount = lo.ToPtr(p.Amount)

	case types.BILLING_TYPE_FIXED_CYCLE:
		amount := p.Amount
		if prorate, window, err := s.prorationWindow(req, p, now); err != nil {
			return nil, err
		} else if prorate {
			amount = proration.CalculateProrationAmount(p.Amount, window, now, false)
			item.Proration = true
		}
		item.Description = "Subscription charge"
		item.Amount = lo.ToPtr(amount)

	case types.BILLING_TYPE_USAGE_IN_ADVANCE:
		quantity := decimal.Zero
		if req.Quantities != nil {
			quantity = req.Quantities[p.ID]
		}
		item.Quantity = lo.ToPtr(quantity)
		amount := p.PrepaidCost(quantity)
		if prorate, window, err := s.prorationWindow(req, p, now); err != nil {
			return nil, err
		} else if prorate {
			amount = proration.CalculateProrationAmount(amount, window, now, false)
			item.Proration = true
		}
		item.Description = "Prepaid usage"
		item.Amount = lo.ToPtr(amount)

	case types.BILLING_TYPE_USAGE_IN_ARREAR, types.BILLING_TYPE_IN_ARREAR_PRORATED:
		// Arrear charges cannot be known up front; the preview carries a
		// description only placeholder.
		item.Description = "Usage billed at end of period"
		item.Amount = nil

	default:
		return nil, nil
	}
	return item, nil
}

// currentProductItems credits the unused share of advance charges on the
// outgoing product and bills metered overage accrued so far.
func (s *billingService) currentProductItems(ctx context.Context, req *dto.AttachPreviewRequest, now time.Time) ([]*proration.PreviewLineItem, error) {
	prices, err := s.PriceRepo.ListByProduct(ctx, req.CurrentProductID)
	if err != nil {
		return nil, err
	}

	var ents []*entitlement.Entitlement
	if lo.SomeBy(prices, func(p *price.Price) bool {
		return p.GetBillingType() == types.BILLING_TYPE_USAGE_IN_ARREAR
	}) {
		featureIDs := lo.FilterMap(prices, func(p *price.Price, _ int) (string, bool) {
			return p.FeatureID, p.FeatureID != ""
		})
		ents, err = s.EntitlementRepo.ListByCustomerFeatures(ctx, req.CustomerID, featureIDs)
		if err != nil {
			return nil, err
		}
	}

	items := make([]*proration.PreviewLineItem, 0, len(prices))
	for _, p := range prices {
		switch p.GetBillingType() {
		case types.BILLING_TYPE_FIXED_CYCLE, types.BILLING_TYPE_USAGE_IN_ADVANCE:
			prorate, window, err := s.prorationWindow(req, p, now)
			if err != nil {
				return nil, err
			}
			if !prorate {
				continue
			}
			paid := p.Amount
			if p.GetBillingType() == types.BILLING_TYPE_USAGE_IN_ADVANCE {
				if req.Quantities == nil {
					continue
				}
				paid = p.PrepaidCost(req.Quantities[p.ID])
			}
			unused := proration.CalculateProrationAmount(paid, window, now, false)
			items = append(items, &proration.PreviewLineItem{
				PriceID:     p.ID,
				FeatureID:   p.FeatureID,
				Description: "Unused time credit",
				Amount:      lo.ToPtr(unused.Neg()),
				Proration:   true,
			})

		case types.BILLING_TYPE_USAGE_IN_ARREAR:
			overage := s.accruedOverage(ents, p.FeatureID)
			if !overage.IsPositive() {
				continue
			}
			due := overage.Mul(p.UnitCost())
			items = append(items, &proration.PreviewLineItem{
				PriceID:     p.ID,
				FeatureID:   p.FeatureID,
				Description: "Usage accrued this period",
				Amount:      lo.ToPtr(due),
				UsageModel:  string(types.USAGE_MODEL_PAY_PER_USE),
			})
		}
	}
	return items, nil
}

// accruedOverage sums negative balances for a feature, the usage already
// consumed beyond what was paid for.
func (s *billingService) accruedOverage(ents []*entitlement.Entitlement, featureID string) decimal.Decimal {
	overage := decimal.Zero
	for _, e := range ents {
		if e.FeatureID != featureID || e.IsUnlimited() {
			continue
		}
		if balance := e.TotalBalance(); balance.IsNegative() {
			overage = overage.Add(balance.Neg())
		}
	}
	return overage
}

// prorationWindow decides whether a price should be prorated and derives the
// billing window from the customer's cycle anchor.
func (s *billingService) prorationWindow(req *dto.AttachPreviewRequest, p *price.Price, now time.Time) (bool, proration.Window, error) {
	if req.ProrationBehavior == types.ProrationBehaviorNone {
		return false, proration.Window{}, nil
	}
	if req.BillingAnchor.IsZero() || !p.IsRecurring() {
		return false, proration.Window{}, nil
	}
	window, err := proration.WindowFromAnchor(req.BillingAnchor, p.BillingPeriod, p.BillingPeriodCount, now)
	if err != nil {
		return false, proration.Window{}, err
	}
	return true, window, nil
}

// nextCyclePreview shows the unprorated charges of the first full cycle.
func (s *billingService) nextCyclePreview(req *dto.AttachPreviewRequest, prices []*price.Price, now time.Time) (*dto.NextCyclePreview, error) {
	recurring := lo.Filter(prices, func(p *price.Price, _ int) bool {
		return p.IsRecurring() && p.GetBillingType() != types.BILLING_TYPE_ONE_OFF
	})
	if len(recurring) == 0 {
		return nil, nil
	}

	window, err := proration.WindowFromAnchor(s.anchorOrNow(req, now), recurring[0].BillingPeriod, recurring[0].BillingPeriodCount, now)
	if err != nil {
		return nil, err
	}

	items := make([]*proration.PreviewLineItem, 0, len(recurring))
	for _, p := range recurring {
		item := &proration.PreviewLineItem{
			PriceID:    p.ID,
			FeatureID:  p.FeatureID,
			UsageModel: string(p.GetUsageModel()),
		}
		switch p.GetBillingType() {
		case types.BILLING_TYPE_FIXED_CYCLE:
			item.Description = "Subscription charge"
			item.Amount = lo.ToPtr(p.Amount)
		case types.BILLING_TYPE_USAGE_IN_ADVANCE:
			quantity := decimal.Zero
			if req.Quantities != nil {
				quantity = req.Quantities[p.ID]
			}
			item.Quantity = lo.ToPtr(quantity)
			item.Description = "Prepaid usage"
			item.Amount = lo.ToPtr(p.PrepaidCost(quantity))
		default:
			item.Description = "Usage billed at end of period"
		}
		items = append(items, item)
	}
	items = proration.FilterZeroAmounts(items)

	return &dto.NextCyclePreview{
		Total:     proration.Total(items),
		StartsAt:  window.End,
		LineItems: items,
	}, nil
}

func (s *billingService) anchorOrNow(req *dto.AttachPreviewRequest, now time.Time) time.Time {
	if req.BillingAnchor.IsZero() {
		return now
	}
	return req.BillingAnchor
}

func (s *billingService) ProcessPendingItems(ctx context.Context, customerID, newProductID string) error {
	pending, err := s.InvoiceClient.ListPendingItems(ctx, customerID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	newPrices, err := s.PriceRepo.ListByProduct(ctx, newProductID)
	if err != nil {
		return err
	}
	pricesByID := lo.KeyBy(newPrices, func(p *price.Price) string { return p.ID })

	for _, item := range pending {
		if item.PriceID == "" {
			continue
		}
		if _, keep := pricesByID[item.PriceID]; keep {
			continue
		}

		oldPrice, err := s.PriceRepo.Get(ctx, item.PriceID)
		if err != nil {
			s.Logger.Warnw("pending item references unknown price, removing",
				"item_id", item.ID, "price_id", item.PriceID)
			if err := s.InvoiceClient.DeletePendingItem(ctx, item.ID); err != nil {
				return err
			}
			continue
		}

		replacement, hasFeature := lo.Find(newPrices, func(p *price.Price) bool {
			return p.FeatureID != "" && p.FeatureID == oldPrice.FeatureID
		})

		if err := s.InvoiceClient.DeletePendingItem(ctx, item.ID); err != nil {
			return err
		}
		if !hasFeature {
			continue
		}

		// The feature continues under a different price. Reattach the
		// accrued charge so it lands on the next invoice.
		_, err = s.InvoiceClient.CreatePendingItem(ctx, &stripe.CreatePendingItemRequest{
			CustomerID:  customerID,
			PriceID:     replacement.ID,
			Amount:      item.Amount,
			Currency:    item.Currency,
			Description: item.Description,
			PeriodStart: item.PeriodStart,
			PeriodEnd:   item.PeriodEnd,
		})
		if err != nil {
			return err
		}
		s.Logger.Infow("reattached pending item to new price",
			"customer_id", customerID,
			"old_price_id", oldPrice.ID,
			"new_price_id", replacement.ID)
	}
	return nil
}

func zeroAmounts(items []*proration.PreviewLineItem) {
	for _, li := range items {
		if li.Amount != nil {
			li.Amount = lo.ToPtr(decimal.Zero)
		}
		li.Description = fmt.Sprintf("%s (free trial)", li.Description)
	}
}

func (s *billingService) currency(prices []*price.Price) string {
	for _, p := range prices {
		if p.Currency != "" {
			return p.Currency
		}
	}
	return s.Config.Billing.DefaultCurrency
}
