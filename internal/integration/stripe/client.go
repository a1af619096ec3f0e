package stripe

import (
	"context"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prorata-io/prorata/internal/config"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

const metadataPriceID = "price_id"

// PendingItem is a pending invoice item on the customer's upcoming invoice,
// typically a prorated continued-use charge created mid cycle.
type PendingItem struct {
	ID          string
	PriceID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// CreatePendingItemRequest adds a charge to the customer's upcoming invoice.
type CreatePendingItemRequest struct {
	CustomerID  string
	PriceID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// InvoiceClient defines the upstream invoice item operations the preview and
// attach flows depend on.
type InvoiceClient interface {
	ListPendingItems(ctx context.Context, customerID string) ([]*PendingItem, error)
	CreatePendingItem(ctx context.Context, req *CreatePendingItemRequest) (*PendingItem, error)
	DeletePendingItem(ctx context.Context, itemID string) error
}

// Client wraps the Stripe API with retrying transport.
type Client struct {
	api    *client.API
	logger *logger.Logger
}

func NewClient(cfg *config.Configuration, log *logger.Logger) InvoiceClient {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.RetryWaitMax = 5 * time.Second
	retry.Logger = log.GetRetryableHTTPLogger()

	api := &client.API{}
	api.Init(cfg.Stripe.SecretKey, stripe.NewBackends(retry.StandardClient()))

	return &Client{api: api, logger: log}
}

func (c *Client) ListPendingItems(ctx context.Context, customerID string) ([]*PendingItem, error) {
	params := &stripe.InvoiceItemListParams{
		Customer: stripe.String(customerID),
		Pending:  stripe.Bool(true),
	}
	params.Context = ctx

	items := make([]*PendingItem, 0)
	iter := c.api.InvoiceItems.List(params)
	for iter.Next() {
		items = append(items, fromStripeItem(iter.InvoiceItem()))
	}
	if err := iter.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list pending invoice items").
			WithReportableDetails(map[string]any{"customer_id": customerID}).
			Mark(ierr.ErrHTTPClient)
	}
	return items, nil
}

func (c *Client) CreatePendingItem(ctx context.Context, req *CreatePendingItemRequest) (*PendingItem, error) {
	params := &stripe.InvoiceItemParams{
		Customer:    stripe.String(req.CustomerID),
		Amount:      stripe.Int64(toMinorUnits(req.Amount)),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	if !req.PeriodStart.IsZero() && !req.PeriodEnd.IsZero() {
		params.Period = &stripe.InvoiceItemPeriodParams{
			Start: stripe.Int64(req.PeriodStart.Unix()),
			End:   stripe.Int64(req.PeriodEnd.Unix()),
		}
	}
	if req.PriceID != "" {
		params.AddMetadata(metadataPriceID, req.PriceID)
	}

	item, err := c.api.InvoiceItems.New(params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create pending invoice item").
			WithReportableDetails(map[string]any{
				"customer_id": req.CustomerID,
				"price_id":    req.PriceID,
			}).
			Mark(ierr.ErrHTTPClient)
	}
	c.logger.Debugw("created pending invoice item",
		"item_id", item.ID,
		"customer_id", req.CustomerID,
		"price_id", req.PriceID)
	return fromStripeItem(item), nil
}

func (c *Client) DeletePendingItem(ctx context.Context, itemID string) error {
	params := &stripe.InvoiceItemParams{}
	params.Context = ctx
	if _, err := c.api.InvoiceItems.Del(itemID, params); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete pending invoice item").
			WithReportableDetails(map[string]any{"item_id": itemID}).
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

func fromStripeItem(item *stripe.InvoiceItem) *PendingItem {
	pi := &PendingItem{
		ID:          item.ID,
		Amount:      fromMinorUnits(item.Amount),
		Currency:    string(item.Currency),
		Description: item.Description,
	}
	if item.Metadata != nil {
		pi.PriceID = item.Metadata[metadataPriceID]
	}
	if item.Period != nil {
		pi.PeriodStart = time.Unix(item.Period.Start, 0).UTC()
		pi.PeriodEnd = time.Unix(item.Period.End, 0).UTC()
	}
	return pi
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
}
