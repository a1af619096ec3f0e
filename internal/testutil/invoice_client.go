package testutil

import (
	"context"
	"sync"

	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/integration/stripe"
	"github.com/prorata-io/prorata/internal/types"
)

// FakeInvoiceClient implements stripe.InvoiceClient against a local slice.
type FakeInvoiceClient struct {
	mu    sync.Mutex
	items map[string]*stripe.PendingItem
}

func NewFakeInvoiceClient() *FakeInvoiceClient {
	return &FakeInvoiceClient{items: make(map[string]*stripe.PendingItem)}
}

// Seed adds a pending item directly, bypassing the create path.
func (c *FakeInvoiceClient) Seed(item *stripe.PendingItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
}

func (c *FakeInvoiceClient) ListPendingItems(ctx context.Context, customerID string) ([]*stripe.PendingItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]*stripe.PendingItem, 0, len(c.items))
	for _, item := range c.items {
		result = append(result, item)
	}
	return result, nil
}

func (c *FakeInvoiceClient) CreatePendingItem(ctx context.Context, req *stripe.CreatePendingItemRequest) (*stripe.PendingItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := &stripe.PendingItem{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LINE_ITEM),
		PriceID:     req.PriceID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
	}
	c.items[item.ID] = item
	return item, nil
}

func (c *FakeInvoiceClient) DeletePendingItem(ctx context.Context, itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[itemID]; !ok {
		return ierr.NewErrorf("pending item %s not found", itemID).
			Mark(ierr.ErrNotFound)
	}
	delete(c.items, itemID)
	return nil
}
