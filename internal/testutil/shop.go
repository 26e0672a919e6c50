package testutil

import (
	"context"
	"database/sql"
	"embed"
	"testing"

	"github.com/leapstack-labs/leapdata/internal/migrate"
	"github.com/leapstack-labs/leapdata/internal/registry"
	"github.com/leapstack-labs/leapdata/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/stretchr/testify/require"
)

//go:embed migrations/*.sql
var shopMigrations embed.FS

// ShopEntities declares the entities of the shop fixture database:
// customers own orders directly, orders reach products through the
// OrderProduct association, and tickets have generated string keys.
func ShopEntities() []core.EntityConfig {
	return []core.EntityConfig{
		{
			Name: "Customer",
			Attributes: []core.AttributeConfig{
				{Name: "id", Type: "int", Identity: true, Generated: true},
				{Name: "name", Type: "string"},
				{Name: "email", Type: "string"},
				{Name: "createdAt", Column: "created_at", Type: "time"},
			},
			Relations: []core.RelationDef{
				{ID: "orders", Target: "Order", OwnerAttribute: "customer"},
			},
		},
		{
			Name:  "Order",
			Table: "orders",
			Attributes: []core.AttributeConfig{
				{Name: "id", Type: "int", Identity: true},
				{Name: "customer", Ref: "Customer"},
				{Name: "total", Type: "float"},
				{Name: "status", Type: "string"},
			},
			Relations: []core.RelationDef{
				{ID: "products", Target: "Product", Association: "OrderProduct"},
			},
		},
		{
			Name: "Product",
			Attributes: []core.AttributeConfig{
				{Name: "sku", Type: "string", Identity: true},
				{Name: "title", Type: "string"},
				{Name: "price", Type: "float"},
			},
		},
		{
			Name:  "OrderProduct",
			Table: "order_product",
			Attributes: []core.AttributeConfig{
				{Name: "order", Ref: "Order", Identity: true},
				{Name: "product", Ref: "Product", Identity: true},
			},
		},
		{
			Name: "Ticket",
			Attributes: []core.AttributeConfig{
				{Name: "id", Type: "string", Identity: true, Generated: true},
				{Name: "subject", Type: "string"},
			},
		},
	}
}

// ShopRegistry builds the registry of ShopEntities.
func ShopRegistry(t testing.TB) *registry.EntityRegistry {
	t.Helper()
	reg, err := registry.Build(ShopEntities(), nil)
	require.NoError(t, err)
	return reg
}

// OpenShop returns an in-memory SQLite database migrated and seeded with
// the shop fixture. The adapter is closed when the test ends.
func OpenShop(t testing.TB) *sqlite.Adapter {
	t.Helper()
	ctx := context.Background()

	adp := sqlite.New(NewTestLogger(t))
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Type: "sqlite", Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })

	MigrateShop(t, adp.DB())
	return adp
}

// MigrateShop applies the shop schema and seed rows to a SQLite database.
func MigrateShop(t testing.TB, db *sql.DB) {
	t.Helper()
	m, err := migrate.New(db, "sqlite", shopMigrations, "migrations", NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())
}
