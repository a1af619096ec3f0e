package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domainEntitlement "github.com/prorata-io/prorata/internal/domain/entitlement"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/prorata-io/prorata/internal/postgres"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

const entitlementColumns = `id, customer_id, customer_product_id, feature_id, entity_feature_id,
	allowance_type, allowance, balance, adjustment, entities, usage_allowed, usage_limit,
	interval, interval_count, next_reset_at, tenant_id, status, created_at, updated_at,
	created_by, updated_by`

type entitlementRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewEntitlementRepository(client postgres.IClient, logger *logger.Logger) domainEntitlement.Repository {
	return &entitlementRepository{client: client, logger: logger}
}

func (r *entitlementRepository) Create(ctx context.Context, e *domainEntitlement.Entitlement) error {
	r.logger.Debugw("creating entitlement", "customer_id", e.CustomerID, "feature_id", e.FeatureID)

	span := StartRepositorySpan(ctx, "entitlement", "create", map[string]interface{}{
		"customer_id": e.CustomerID,
		"feature_id":  e.FeatureID,
		"tenant_id":   e.TenantID,
	})
	defer FinishSpan(span)

	entities, err := marshalEntities(e.Entities)
	if err != nil {
		SetSpanError(span, err)
		return err
	}

	_, err = r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO entitlements (`+entitlementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		e.ID, e.CustomerID, e.CustomerProductID, e.FeatureID, nullString(e.EntityFeatureID),
		string(e.AllowanceType), e.Allowance, e.Balance, e.Adjustment, entities,
		e.UsageAllowed, nullDecimal(e.UsageLimit), nullString(string(e.Interval)), e.IntervalCount,
		nullTime(e.NextResetAt), e.TenantID, string(e.Status), e.CreatedAt, e.UpdatedAt,
		e.CreatedBy, e.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to create entitlement").
			WithReportableDetails(map[string]interface{}{
				"customer_id": e.CustomerID,
				"feature_id":  e.FeatureID,
			}).
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *entitlementRepository) CreateBulk(ctx context.Context, ents []*domainEntitlement.Entitlement) error {
	span := StartRepositorySpan(ctx, "entitlement", "create_bulk", map[string]interface{}{
		"count": len(ents),
	})
	defer FinishSpan(span)

	err := r.client.WithTx(ctx, func(ctx context.Context) error {
		for _, e := range ents {
			if err := r.Create(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		SetSpanError(span, err)
		return err
	}
	SetSpanSuccess(span)
	return nil
}

func (r *entitlementRepository) Get(ctx context.Context, id string) (*domainEntitlement.Entitlement, error) {
	span := StartRepositorySpan(ctx, "entitlement", "get", map[string]interface{}{
		"entitlement_id": id,
	})
	defer FinishSpan(span)

	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT `+entitlementColumns+`
		FROM entitlements
		WHERE id = $1 AND tenant_id = $2 AND status = $3`,
		id, types.GetTenantID(ctx), string(types.StatusPublished),
	)

	e, err := scanEntitlement(row)
	if err != nil {
		SetSpanError(span, err)
		if err == sql.ErrNoRows {
			return nil, ierr.WithError(err).
				WithHintf("Entitlement %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get entitlement").
			WithReportableDetails(map[string]interface{}{"entitlement_id": id}).
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return e, nil
}

func (r *entitlementRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domainEntitlement.Entitlement, error) {
	span := StartRepositorySpan(ctx, "entitlement", "list_by_customer", map[string]interface{}{
		"customer_id": customerID,
	})
	defer FinishSpan(span)

	rows, err := r.client.Querier(ctx).QueryContext(ctx, `
		SELECT `+entitlementColumns+`
		FROM entitlements
		WHERE customer_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY created_at, id`,
		customerID, types.GetTenantID(ctx), string(types.StatusPublished),
	)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list entitlements").
			WithReportableDetails(map[string]interface{}{"customer_id": customerID}).
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	ents, err := scanEntitlements(rows)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}
	SetSpanSuccess(span)
	return ents, nil
}

func (r *entitlementRepository) ListByCustomerFeatures(ctx context.Context, customerID string, featureIDs []string) ([]*domainEntitlement.Entitlement, error) {
	span := StartRepositorySpan(ctx, "entitlement", "list_by_customer_features", map[string]interface{}{
		"customer_id": customerID,
		"features":    len(featureIDs),
	})
	defer FinishSpan(span)

	features, err := json.Marshal(featureIDs)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).Mark(ierr.ErrSystem)
	}

	rows, err := r.client.Querier(ctx).QueryContext(ctx, `
		SELECT `+entitlementColumns+`
		FROM entitlements
		WHERE customer_id = $1 AND tenant_id = $2 AND status = $3
		  AND feature_id IN (SELECT jsonb_array_elements_text($4::jsonb))
		ORDER BY created_at, id`,
		customerID, types.GetTenantID(ctx), string(types.StatusPublished), features,
	)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list entitlements by features").
			WithReportableDetails(map[string]interface{}{"customer_id": customerID}).
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	ents, err := scanEntitlements(rows)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}
	SetSpanSuccess(span)
	return ents, nil
}

func (r *entitlementRepository) Update(ctx context.Context, e *domainEntitlement.Entitlement) error {
	span := StartRepositorySpan(ctx, "entitlement", "update", map[string]interface{}{
		"entitlement_id": e.ID,
	})
	defer FinishSpan(span)

	entities, err := marshalEntities(e.Entities)
	if err != nil {
		SetSpanError(span, err)
		return err
	}

	e.UpdatedAt = time.Now().UTC()
	result, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE entitlements
		SET balance = $1, adjustment = $2, entities = $3, allowance = $4,
			allowance_type = $5, usage_allowed = $6, usage_limit = $7,
			next_reset_at = $8, updated_at = $9, updated_by = $10
		WHERE id = $11 AND tenant_id = $12`,
		e.Balance, e.Adjustment, entities, e.Allowance,
		string(e.AllowanceType), e.UsageAllowed, nullDecimal(e.UsageLimit),
		nullTime(e.NextResetAt), e.UpdatedAt, e.UpdatedBy,
		e.ID, e.TenantID,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to update entitlement").
			WithReportableDetails(map[string]interface{}{"entitlement_id": e.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err := ierr.NewErrorf("entitlement %s was not found", e.ID).
			Mark(ierr.ErrNotFound)
		SetSpanError(span, err)
		return err
	}

	SetSpanSuccess(span)
	return nil
}

func (r *entitlementRepository) Delete(ctx context.Context, id string) error {
	span := StartRepositorySpan(ctx, "entitlement", "delete", map[string]interface{}{
		"entitlement_id": id,
	})
	defer FinishSpan(span)

	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE entitlements
		SET status = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4`,
		string(types.StatusDeleted), time.Now().UTC(), id, types.GetTenantID(ctx),
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to delete entitlement").
			WithReportableDetails(map[string]interface{}{"entitlement_id": id}).
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return nil
}

func (r *entitlementRepository) DeleteByCustomerProduct(ctx context.Context, customerProductID string) error {
	span := StartRepositorySpan(ctx, "entitlement", "delete_by_customer_product", map[string]interface{}{
		"customer_product_id": customerProductID,
	})
	defer FinishSpan(span)

	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE entitlements
		SET status = $1, updated_at = $2
		WHERE customer_product_id = $3 AND tenant_id = $4`,
		string(types.StatusDeleted), time.Now().UTC(), customerProductID, types.GetTenantID(ctx),
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to delete entitlements for product").
			WithReportableDetails(map[string]interface{}{"customer_product_id": customerProductID}).
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return nil
}

// LockCustomerLedger takes row locks on every ledger record of the customer.
// Concurrent deductions for the same customer block here until the holding
// transaction commits.
func (r *entitlementRepository) LockCustomerLedger(ctx context.Context, customerID string) error {
	span := StartRepositorySpan(ctx, "entitlement", "lock_customer_ledger", map[string]interface{}{
		"customer_id": customerID,
	})
	defer FinishSpan(span)

	if r.client.TxFromContext(ctx) == nil {
		err := ierr.NewError("ledger lock requires a transaction").
			WithHint("Call inside WithTx so the lock is released on commit").
			Mark(ierr.ErrInvalidOperation)
		SetSpanError(span, err)
		return err
	}

	rows, err := r.client.Querier(ctx).QueryContext(ctx, `
		SELECT id FROM entitlements
		WHERE customer_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY id
		FOR UPDATE`,
		customerID, types.GetTenantID(ctx), string(types.StatusPublished),
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to lock customer ledger").
			WithReportableDetails(map[string]interface{}{"customer_id": customerID}).
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()
	if err := rows.Err(); err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntitlement(row rowScanner) (*domainEntitlement.Entitlement, error) {
	var (
		e               domainEntitlement.Entitlement
		entityFeatureID sql.NullString
		allowanceType   string
		entities        []byte
		usageLimit      decimal.NullDecimal
		interval        sql.NullString
		nextResetAt     sql.NullTime
		status          string
	)
	err := row.Scan(
		&e.ID, &e.CustomerID, &e.CustomerProductID, &e.FeatureID, &entityFeatureID,
		&allowanceType, &e.Allowance, &e.Balance, &e.Adjustment, &entities,
		&e.UsageAllowed, &usageLimit, &interval, &e.IntervalCount, &nextResetAt,
		&e.TenantID, &status, &e.CreatedAt, &e.UpdatedAt, &e.CreatedBy, &e.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	e.EntityFeatureID = entityFeatureID.String
	e.AllowanceType = types.AllowanceType(allowanceType)
	e.Interval = types.BillingPeriod(interval.String)
	e.Status = types.Status(status)
	if usageLimit.Valid {
		v := usageLimit.Decimal
		e.UsageLimit = &v
	}
	if nextResetAt.Valid {
		t := nextResetAt.Time
		e.NextResetAt = &t
	}
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &e.Entities); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Corrupt entity balances on entitlement").
				Mark(ierr.ErrDatabase)
		}
	}
	return &e, nil
}

func scanEntitlements(rows *sql.Rows) ([]*domainEntitlement.Entitlement, error) {
	ents := make([]*domainEntitlement.Entitlement, 0)
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan entitlement").
				Mark(ierr.ErrDatabase)
		}
		ents = append(ents, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return ents, nil
}

func marshalEntities(entities map[string]*domainEntitlement.EntityBalance) ([]byte, error) {
	if entities == nil {
		return nil, nil
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode entity balances").
			Mark(ierr.ErrSystem)
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
