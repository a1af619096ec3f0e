package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	baseMixin "github.com/prorata-io/prorata/ent/schema/mixin"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

// Price holds the schema definition for the Price entity.
type Price struct {
	ent.Schema
}

// Mixin of the Price entity.
func (Price) Mixin() []ent.Mixin {
	return []ent.Mixin{
		baseMixin.BaseMixin{},
	}
}

// Fields of the Price entity.
func (Price) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			Unique().
			Immutable(),

		field.String("product_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			NotEmpty().
			Immutable(),

		field.String("feature_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			Optional(),

		field.String("type").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			NotEmpty().
			GoType(types.PriceType("")),

		field.String("billing_cadence").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			Optional().
			GoType(types.BillingCadence("")),

		field.String("billing_period").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			Optional().
			GoType(types.BillingPeriod("")),

		field.Int("billing_period_count").
			Default(1),

		field.String("currency").
			SchemaType(map[string]string{
				"postgres": "varchar(10)",
			}).
			NotEmpty(),

		field.Other("amount", decimal.Decimal{}).
			SchemaType(map[string]string{
				"postgres": "numeric(20,8)",
			}).
			Default(decimal.Zero),

		// billing_units is the pack size for prepaid usage prices.
		field.Other("billing_units", decimal.Decimal{}).
			SchemaType(map[string]string{
				"postgres": "numeric(20,8)",
			}).
			Optional(),

		field.Bool("prorated").
			Default(false),
	}
}

// Edges of the Price.
func (Price) Edges() []ent.Edge {
	return nil
}

// Indexes of the Price.
func (Price) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "product_id", "status").
			StorageKey("idx_prices_tenant_product"),
		index.Fields("tenant_id", "feature_id").
			StorageKey("idx_prices_tenant_feature"),
	}
}
