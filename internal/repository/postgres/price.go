package postgres

import (
	"context"
	"database/sql"
	"time"

	domainPrice "github.com/prorata-io/prorata/internal/domain/price"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/prorata-io/prorata/internal/postgres"
	"github.com/prorata-io/prorata/internal/types"
)

const priceColumns = `id, product_id, feature_id, type, billing_cadence, billing_period,
	billing_period_count, currency, amount, billing_units, prorated,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type priceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewPriceRepository(client postgres.IClient, logger *logger.Logger) domainPrice.Repository {
	return &priceRepository{client: client, logger: logger}
}

func (r *priceRepository) Create(ctx context.Context, p *domainPrice.Price) error {
	span := StartRepositorySpan(ctx, "price", "create", map[string]interface{}{
		"price_id":   p.ID,
		"product_id": p.ProductID,
	})
	defer FinishSpan(span)

	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO prices (`+priceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID, p.ProductID, nullString(p.FeatureID), string(p.Type), string(p.BillingCadence),
		nullString(string(p.BillingPeriod)), p.BillingPeriodCount, p.Currency, p.Amount,
		p.BillingUnits, p.Prorated,
		p.TenantID, string(p.Status), p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to create price").
			WithReportableDetails(map[string]interface{}{"price_id": p.ID}).
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return nil
}

func (r *priceRepository) Get(ctx context.Context, id string) (*domainPrice.Price, error) {
	span := StartRepositorySpan(ctx, "price", "get", map[string]interface{}{
		"price_id": id,
	})
	defer FinishSpan(span)

	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT `+priceColumns+`
		FROM prices
		WHERE id = $1 AND tenant_id = $2 AND status = $3`,
		id, types.GetTenantID(ctx), string(types.StatusPublished),
	)

	p, err := scanPrice(row)
	if err != nil {
		SetSpanError(span, err)
		if err == sql.ErrNoRows {
			return nil, ierr.WithError(err).
				WithHintf("Price %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get price").
			WithReportableDetails(map[string]interface{}{"price_id": id}).
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return p, nil
}

func (r *priceRepository) ListByProduct(ctx context.Context, productID string) ([]*domainPrice.Price, error) {
	span := StartRepositorySpan(ctx, "price", "list_by_product", map[string]interface{}{
		"product_id": productID,
	})
	defer FinishSpan(span)

	rows, err := r.client.Querier(ctx).QueryContext(ctx, `
		SELECT `+priceColumns+`
		FROM prices
		WHERE product_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY created_at, id`,
		productID, types.GetTenantID(ctx), string(types.StatusPublished),
	)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list prices").
			WithReportableDetails(map[string]interface{}{"product_id": productID}).
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	prices := make([]*domainPrice.Price, 0)
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			SetSpanError(span, err)
			return nil, ierr.WithError(err).
				WithHint("Failed to scan price").
				Mark(ierr.ErrDatabase)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return prices, nil
}

func (r *priceRepository) Update(ctx context.Context, p *domainPrice.Price) error {
	span := StartRepositorySpan(ctx, "price", "update", map[string]interface{}{
		"price_id": p.ID,
	})
	defer FinishSpan(span)

	p.UpdatedAt = time.Now().UTC()
	result, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE prices
		SET amount = $1, billing_units = $2, prorated = $3, billing_cadence = $4,
			billing_period = $5, billing_period_count = $6, updated_at = $7, updated_by = $8
		WHERE id = $9 AND tenant_id = $10`,
		p.Amount, p.BillingUnits, p.Prorated, string(p.BillingCadence),
		nullString(string(p.BillingPeriod)), p.BillingPeriodCount, p.UpdatedAt, p.UpdatedBy,
		p.ID, p.TenantID,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to update price").
			WithReportableDetails(map[string]interface{}{"price_id": p.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err := ierr.NewErrorf("price %s was not found", p.ID).Mark(ierr.ErrNotFound)
		SetSpanError(span, err)
		return err
	}
	SetSpanSuccess(span)
	return nil
}

func (r *priceRepository) Delete(ctx context.Context, id string) error {
	span := StartRepositorySpan(ctx, "price", "delete", map[string]interface{}{
		"price_id": id,
	})
	defer FinishSpan(span)

	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE prices
		SET status = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4`,
		string(types.StatusDeleted), time.Now().UTC(), id, types.GetTenantID(ctx),
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to delete price").
			WithReportableDetails(map[string]interface{}{"price_id": id}).
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return nil
}

func scanPrice(row rowScanner) (*domainPrice.Price, error) {
	var (
		p         domainPrice.Price
		featureID sql.NullString
		ptype     string
		cadence   string
		period    sql.NullString
		status    string
	)
	err := row.Scan(
		&p.ID, &p.ProductID, &featureID, &ptype, &cadence, &period,
		&p.BillingPeriodCount, &p.Currency, &p.Amount, &p.BillingUnits, &p.Prorated,
		&p.TenantID, &status, &p.CreatedAt, &p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	p.FeatureID = featureID.String
	p.Type = types.PriceType(ptype)
	p.BillingCadence = types.BillingCadence(cadence)
	p.BillingPeriod = types.BillingPeriod(period.String)
	p.Status = types.Status(status)
	return &p, nil
}
