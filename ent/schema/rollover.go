package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	baseMixin "github.com/prorata-io/prorata/ent/schema/mixin"
	"github.com/shopspring/decimal"
)

// Rollover holds the schema definition for the Rollover entity. Each row is
// one bucket of unused balance carried across an entitlement reset, consumed
// before the live balance and dropped once expired.
type Rollover struct {
	ent.Schema
}

// Mixin of the Rollover entity.
func (Rollover) Mixin() []ent.Mixin {
	return []ent.Mixin{
		baseMixin.BaseMixin{},
	}
}

// Fields of the Rollover entity.
func (Rollover) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			Unique().
			Immutable(),

		field.String("entitlement_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			NotEmpty().
			Immutable(),

		field.Other("balance", decimal.Decimal{}).
			SchemaType(map[string]string{
				"postgres": "numeric(20,8)",
			}).
			Default(decimal.Zero),

		// JSONB map of entity id to its share of the bucket, set only for
		// entity scoped entitlements.
		field.JSON("entities", map[string]interface{}{}).
			SchemaType(map[string]string{
				"postgres": "jsonb",
			}).
			Optional(),

		field.Time("expires_at").
			Immutable(),
	}
}

// Edges of the Rollover.
func (Rollover) Edges() []ent.Edge {
	return nil
}

// Indexes of the Rollover.
func (Rollover) Indexes() []ent.Index {
	return []ent.Index{
		// Active bucket lookups filter by entitlement and expiry.
		index.Fields("tenant_id", "entitlement_id", "expires_at").
			StorageKey("idx_rollovers_tenant_entitlement_expires"),
	}
}
