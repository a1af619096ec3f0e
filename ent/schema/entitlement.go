package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	baseMixin "github.com/prorata-io/prorata/ent/schema/mixin"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/shopspring/decimal"
)

// Entitlement holds the schema definition for the Entitlement entity.
type Entitlement struct {
	ent.Schema
}

// Mixin of the Entitlement entity.
func (Entitlement) Mixin() []ent.Mixin {
	return []ent.Mixin{
		baseMixin.BaseMixin{},
	}
}

// Fields of the Entitlement entity.
func (Entitlement) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			Unique().
			Immutable(),

		field.String("customer_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			NotEmpty().
			Immutable(),

		field.String("customer_product_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			Optional(),

		field.String("feature_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			NotEmpty(),

		// entity_feature_id marks entity scoped records: the balance is held
		// per entity of this feature (e.g. per seat) instead of per customer.
		field.String("entity_feature_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			Optional().
			Nillable(),

		field.String("allowance_type").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			NotEmpty().
			GoType(types.AllowanceType("")),

		field.Other("allowance", decimal.Decimal{}).
			SchemaType(map[string]string{
				"postgres": "numeric(20,8)",
			}).
			Default(decimal.Zero),

		field.Other("balance", decimal.Decimal{}).
			SchemaType(map[string]string{
				"postgres": "numeric(20,8)",
			}).
			Default(decimal.Zero),

		field.Other("adjustment", decimal.Decimal{}).
			SchemaType(map[string]string{
				"postgres": "numeric(20,8)",
			}).
			Default(decimal.Zero),

		// JSONB map of entity id to its balance and adjustment.
		field.JSON("entities", map[string]interface{}{}).
			SchemaType(map[string]string{
				"postgres": "jsonb",
			}).
			Optional(),

		field.Bool("usage_allowed").
			Default(false),

		field.Other("usage_limit", decimal.Decimal{}).
			SchemaType(map[string]string{
				"postgres": "numeric(20,8)",
			}).
			Optional().
			Nillable(),

		field.String("interval").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			Optional().
			GoType(types.BillingPeriod("")),

		field.Int("interval_count").
			Default(1),

		field.Time("next_reset_at").
			Optional().
			Nillable(),
	}
}

// Edges of the Entitlement.
func (Entitlement) Edges() []ent.Edge {
	return nil
}

// Indexes of the Entitlement.
func (Entitlement) Indexes() []ent.Index {
	return []ent.Index{
		// The deduction pipeline loads every record of a customer and feature.
		index.Fields("tenant_id", "customer_id", "feature_id", "status").
			StorageKey("idx_entitlements_tenant_customer_feature"),
		// Reset jobs scan by due date.
		index.Fields("tenant_id", "next_reset_at").
			StorageKey("idx_entitlements_tenant_next_reset"),
		index.Fields("tenant_id", "customer_product_id").
			StorageKey("idx_entitlements_tenant_customer_product"),
	}
}
