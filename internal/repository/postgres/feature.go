package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domainFeature "github.com/prorata-io/prorata/internal/domain/feature"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/prorata-io/prorata/internal/postgres"
	"github.com/prorata-io/prorata/internal/types"
)

const featureColumns = `id, name, type, credit_schema,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type featureRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewFeatureRepository(client postgres.IClient, logger *logger.Logger) domainFeature.Repository {
	return &featureRepository{client: client, logger: logger}
}

func (r *featureRepository) Create(ctx context.Context, f *domainFeature.Feature) error {
	span := StartRepositorySpan(ctx, "feature", "create", map[string]interface{}{
		"feature_id": f.ID,
		"type":       string(f.Type),
	})
	defer FinishSpan(span)

	schema, err := marshalCreditSchema(f.CreditSchema)
	if err != nil {
		SetSpanError(span, err)
		return err
	}

	_, err = r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO features (`+featureColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.Name, string(f.Type), schema,
		f.TenantID, string(f.Status), f.CreatedAt, f.UpdatedAt, f.CreatedBy, f.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to create feature").
			WithReportableDetails(map[string]interface{}{"feature_id": f.ID}).
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return nil
}

func (r *featureRepository) Get(ctx context.Context, id string) (*domainFeature.Feature, error) {
	span := StartRepositorySpan(ctx, "feature", "get", map[string]interface{}{
		"feature_id": id,
	})
	defer FinishSpan(span)

	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT `+featureColumns+`
		FROM features
		WHERE id = $1 AND tenant_id = $2 AND status = $3`,
		id, types.GetTenantID(ctx), string(types.StatusPublished),
	)

	f, err := scanFeature(row)
	if err != nil {
		SetSpanError(span, err)
		if err == sql.ErrNoRows {
			return nil, ierr.WithError(err).
				WithHintf("Feature %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get feature").
			WithReportableDetails(map[string]interface{}{"feature_id": id}).
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return f, nil
}

func (r *featureRepository) List(ctx context.Context, ids []string) ([]*domainFeature.Feature, error) {
	span := StartRepositorySpan(ctx, "feature", "list", map[string]interface{}{
		"count": len(ids),
	})
	defer FinishSpan(span)

	encoded, err := json.Marshal(ids)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).Mark(ierr.ErrSystem)
	}

	rows, err := r.client.Querier(ctx).QueryContext(ctx, `
		SELECT `+featureColumns+`
		FROM features
		WHERE tenant_id = $1 AND status = $2
		  AND id IN (SELECT jsonb_array_elements_text($3::jsonb))
		ORDER BY id`,
		types.GetTenantID(ctx), string(types.StatusPublished), encoded,
	)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list features").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	features, err := scanFeatures(rows)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}
	SetSpanSuccess(span)
	return features, nil
}

func (r *featureRepository) ListAll(ctx context.Context) ([]*domainFeature.Feature, error) {
	span := StartRepositorySpan(ctx, "feature", "list_all", nil)
	defer FinishSpan(span)

	rows, err := r.client.Querier(ctx).QueryContext(ctx, `
		SELECT `+featureColumns+`
		FROM features
		WHERE tenant_id = $1 AND status = $2
		ORDER BY id`,
		types.GetTenantID(ctx), string(types.StatusPublished),
	)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list features").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	features, err := scanFeatures(rows)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}
	SetSpanSuccess(span)
	return features, nil
}

func (r *featureRepository) Update(ctx context.Context, f *domainFeature.Feature) error {
	span := StartRepositorySpan(ctx, "feature", "update", map[string]interface{}{
		"feature_id": f.ID,
	})
	defer FinishSpan(span)

	schema, err := marshalCreditSchema(f.CreditSchema)
	if err != nil {
		SetSpanError(span, err)
		return err
	}

	f.UpdatedAt = time.Now().UTC()
	result, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE features
		SET name = $1, type = $2, credit_schema = $3, updated_at = $4, updated_by = $5
		WHERE id = $6 AND tenant_id = $7`,
		f.Name, string(f.Type), schema, f.UpdatedAt, f.UpdatedBy, f.ID, f.TenantID,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to update feature").
			WithReportableDetails(map[string]interface{}{"feature_id": f.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err := ierr.NewErrorf("feature %s was not found", f.ID).Mark(ierr.ErrNotFound)
		SetSpanError(span, err)
		return err
	}
	SetSpanSuccess(span)
	return nil
}

func (r *featureRepository) Delete(ctx context.Context, id string) error {
	span := StartRepositorySpan(ctx, "feature", "delete", map[string]interface{}{
		"feature_id": id,
	})
	defer FinishSpan(span)

	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE features
		SET status = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4`,
		string(types.StatusDeleted), time.Now().UTC(), id, types.GetTenantID(ctx),
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to delete feature").
			WithReportableDetails(map[string]interface{}{"feature_id": id}).
			Mark(ierr.ErrDatabase)
	}
	SetSpanSuccess(span)
	return nil
}

func scanFeature(row rowScanner) (*domainFeature.Feature, error) {
	var (
		f      domainFeature.Feature
		ftype  string
		schema []byte
		status string
	)
	err := row.Scan(
		&f.ID, &f.Name, &ftype, &schema,
		&f.TenantID, &status, &f.CreatedAt, &f.UpdatedAt, &f.CreatedBy, &f.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	f.Type = types.FeatureType(ftype)
	f.Status = types.Status(status)
	if len(schema) > 0 {
		if err := json.Unmarshal(schema, &f.CreditSchema); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Corrupt credit schema on feature").
				Mark(ierr.ErrDatabase)
		}
	}
	return &f, nil
}

func scanFeatures(rows *sql.Rows) ([]*domainFeature.Feature, error) {
	features := make([]*domainFeature.Feature, 0)
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan feature").
				Mark(ierr.ErrDatabase)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return features, nil
}

func marshalCreditSchema(schema []domainFeature.CreditSchemaItem) ([]byte, error) {
	if schema == nil {
		return nil, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode credit schema").
			Mark(ierr.ErrSystem)
	}
	return data, nil
}
