package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domainRollover "github.com/prorata-io/prorata/internal/domain/rollover"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/prorata-io/prorata/internal/postgres"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

const rolloverColumns = `id, entitlement_id, balance, entities, expires_at,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type rolloverRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewRolloverRepository(client postgres.IClient, logger *logger.Logger) domainRollover.Repository {
	return &rolloverRepository{client: client, logger: logger}
}

func (r *rolloverRepository) Create(ctx context.Context, roll *domainRollover.Rollover) error {
	r.logger.Debugw("creating rollover", "entitlement_id", roll.EntitlementID, "expires_at", roll.ExpiresAt)

	span := StartRepositorySpan(ctx, "rollover", "create", map[string]interface{}{
		"entitlement_id": roll.EntitlementID,
	})
	defer FinishSpan(span)

	entities, err := marshalRolloverEntities(roll.Entities)
	if err != nil {
		SetSpanError(span, err)
		return err
	}

	_, err = r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO rollovers (`+rolloverColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		roll.ID, roll.EntitlementID, roll.Balance, entities, roll.ExpiresAt,
		roll.TenantID, string(roll.Status), roll.CreatedAt, roll.UpdatedAt,
		roll.CreatedBy, roll.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to create rollover").
			WithReportableDetails(map[string]interface{}{"entitlement_id": roll.EntitlementID}).
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *rolloverRepository) Get(ctx context.Context, id string) (*domainRollover.Rollover, error) {
	span := StartRepositorySpan(ctx, "rollover", "get", map[string]interface{}{
		"rollover_id": id,
	})
	defer FinishSpan(span)

	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT `+rolloverColumns+`
		FROM rollovers
		WHERE id = $1 AND tenant_id = $2 AND status = $3`,
		id, types.GetTenantID(ctx), string(types.StatusPublished),
	)

	roll, err := scanRollover(row)
	if err != nil {
		SetSpanError(span, err)
		if err == sql.ErrNoRows {
			return nil, ierr.WithError(err).
				WithHintf("Rollover %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get rollover").
			WithReportableDetails(map[string]interface{}{"rollover_id": id}).
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return roll, nil
}

func (r *rolloverRepository) ListActive(ctx context.Context, entitlementID string, now time.Time) ([]*domainRollover.Rollover, error) {
	span := StartRepositorySpan(ctx, "rollover", "list_active", map[string]interface{}{
		"entitlement_id": entitlementID,
	})
	defer FinishSpan(span)

	rows, err := r.client.Querier(ctx).QueryContext(ctx, `
		SELECT `+rolloverColumns+`
		FROM rollovers
		WHERE entitlement_id = $1 AND tenant_id = $2 AND status = $3 AND expires_at > $4
		ORDER BY expires_at, id`,
		entitlementID, types.GetTenantID(ctx), string(types.StatusPublished), now,
	)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list active rollovers").
			WithReportableDetails(map[string]interface{}{"entitlement_id": entitlementID}).
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	rollovers, err := scanRollovers(rows)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}
	SetSpanSuccess(span)
	return rollovers, nil
}

func (r *rolloverRepository) ListByEntitlement(ctx context.Context, entitlementID string) ([]*domainRollover.Rollover, error) {
	span := StartRepositorySpan(ctx, "rollover", "list_by_entitlement", map[string]interface{}{
		"entitlement_id": entitlementID,
	})
	defer FinishSpan(span)

	rows, err := r.client.Querier(ctx).QueryContext(ctx, `
		SELECT `+rolloverColumns+`
		FROM rollovers
		WHERE entitlement_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY expires_at, id`,
		entitlementID, types.GetTenantID(ctx), string(types.StatusPublished),
	)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list rollovers").
			WithReportableDetails(map[string]interface{}{"entitlement_id": entitlementID}).
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	rollovers, err := scanRollovers(rows)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}
	SetSpanSuccess(span)
	return rollovers, nil
}

func (r *rolloverRepository) Update(ctx context.Context, roll *domainRollover.Rollover) error {
	span := StartRepositorySpan(ctx, "rollover", "update", map[string]interface{}{
		"rollover_id": roll.ID,
	})
	defer FinishSpan(span)

	entities, err := marshalRolloverEntities(roll.Entities)
	if err != nil {
		SetSpanError(span, err)
		return err
	}

	roll.UpdatedAt = time.Now().UTC()
	result, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE rollovers
		SET balance = $1, entities = $2, expires_at = $3, updated_at = $4, updated_by = $5
		WHERE id = $6 AND tenant_id = $7`,
		roll.Balance, entities, roll.ExpiresAt, roll.UpdatedAt, roll.UpdatedBy,
		roll.ID, roll.TenantID,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to update rollover").
			WithReportableDetails(map[string]interface{}{"rollover_id": roll.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err := ierr.NewErrorf("rollover %s was not found", roll.ID).
			Mark(ierr.ErrNotFound)
		SetSpanError(span, err)
		return err
	}

	SetSpanSuccess(span)
	return nil
}

func (r *rolloverRepository) UpdateBulk(ctx context.Context, rollovers []*domainRollover.Rollover) error {
	span := StartRepositorySpan(ctx, "rollover", "update_bulk", map[string]interface{}{
		"count": len(rollovers),
	})
	defer FinishSpan(span)

	err := r.client.WithTx(ctx, func(ctx context.Context) error {
		for _, roll := range rollovers {
			if err := r.Update(ctx, roll); err != nil {
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

func (r *rolloverRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	span := StartRepositorySpan(ctx, "rollover", "delete", map[string]interface{}{
		"count": len(ids),
	})
	defer FinishSpan(span)

	encoded, err := json.Marshal(ids)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).Mark(ierr.ErrSystem)
	}

	_, err = r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE rollovers
		SET status = $1, updated_at = $2
		WHERE tenant_id = $3
		  AND id IN (SELECT jsonb_array_elements_text($4::jsonb))`,
		string(types.StatusDeleted), time.Now().UTC(), types.GetTenantID(ctx), encoded,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to delete rollovers").
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return nil
}

func (r *rolloverRepository) DeleteExpired(ctx context.Context, entitlementID string, now time.Time) error {
	span := StartRepositorySpan(ctx, "rollover", "delete_expired", map[string]interface{}{
		"entitlement_id": entitlementID,
	})
	defer FinishSpan(span)

	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE rollovers
		SET status = $1, updated_at = $2
		WHERE entitlement_id = $3 AND tenant_id = $4 AND status = $5 AND expires_at <= $6`,
		string(types.StatusDeleted), time.Now().UTC(), entitlementID,
		types.GetTenantID(ctx), string(types.StatusPublished), now,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to delete expired rollovers").
			WithReportableDetails(map[string]interface{}{"entitlement_id": entitlementID}).
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return nil
}

func scanRollover(row rowScanner) (*domainRollover.Rollover, error) {
	var (
		roll     domainRollover.Rollover
		entities []byte
		status   string
	)
	err := row.Scan(
		&roll.ID, &roll.EntitlementID, &roll.Balance, &entities, &roll.ExpiresAt,
		&roll.TenantID, &status, &roll.CreatedAt, &roll.UpdatedAt,
		&roll.CreatedBy, &roll.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	roll.Status = types.Status(status)
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &roll.Entities); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Corrupt entity balances on rollover").
				Mark(ierr.ErrDatabase)
		}
	}
	return &roll, nil
}

func scanRollovers(rows *sql.Rows) ([]*domainRollover.Rollover, error) {
	rollovers := make([]*domainRollover.Rollover, 0)
	for rows.Next() {
		roll, err := scanRollover(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan rollover").
				Mark(ierr.ErrDatabase)
		}
		rollovers = append(rollovers, roll)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return rollovers, nil
}

func marshalRolloverEntities(entities map[string]decimal.Decimal) ([]byte, error) {
	if entities == nil {
		return nil, nil
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode rollover entity balances").
			Mark(ierr.ErrSystem)
	}
	return data, nil
}
