package registry

import (
	"testing"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopSchema() []core.EntityConfig {
	return []core.EntityConfig{
		{
			Name: "Customer",
			Attributes: []core.AttributeConfig{
				{Name: "id", Type: "int", Identity: true, Generated: true},
				{Name: "name", Type: "string"},
			},
			Relations: []core.RelationDef{
				{ID: "orders", Target: "Order"},
			},
		},
		{
			Name:  "Order",
			Table: "orders",
			Attributes: []core.AttributeConfig{
				{Name: "id", Type: "int", Identity: true},
				{Name: "customer", Ref: "Customer"},
				{Name: "total", Type: "float"},
			},
			Relations: []core.RelationDef{
				{ID: "products", Target: "Product", Association: "OrderProduct"},
			},
		},
		{
			Name: "Product",
			Attributes: []core.AttributeConfig{
				{Name: "sku", Type: "string", Identity: true},
			},
		},
		{
			Name:  "OrderProduct",
			Table: "order_products",
			Attributes: []core.AttributeConfig{
				{Name: "order", Ref: "Order", Identity: true},
				{Name: "product", Ref: "Product", Identity: true},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	r, err := Build(shopSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Count())

	names := make([]string, 0, r.Count())
	for _, e := range r.Entities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Customer", "Order", "Product", "OrderProduct"}, names, "declaration order")

	order, err := r.Entity("Order")
	require.NoError(t, err)
	customer, ok := order.Attribute("customer")
	require.True(t, ok)
	assert.Equal(t, "customer_id", customer.Column, "default foreign key column")
	assert.Equal(t, core.KindReference, customer.Kind)
	require.NotNil(t, customer.Target())
	assert.Equal(t, "Customer", customer.Target().Name)

	link, err := r.Entity("OrderProduct")
	require.NoError(t, err)
	product, _ := link.Attribute("product")
	assert.Equal(t, "product_sku", product.Column)
	assert.Len(t, link.Identity(), 2)
}

func TestEntityRegistry_Entity(t *testing.T) {
	r, err := Build(shopSchema(), nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		lookup    string
		wantName  string
		wantFound bool
	}{
		{name: "exact name", lookup: "Customer", wantName: "Customer", wantFound: true},
		{name: "case insensitive", lookup: "cUsToMeR", wantName: "Customer", wantFound: true},
		{name: "table name", lookup: "order_products", wantName: "OrderProduct", wantFound: true},
		{name: "schema qualified table", lookup: "main.orders", wantName: "Order", wantFound: true},
		{name: "unknown", lookup: "Invoice", wantFound: false},
		{name: "unknown qualified", lookup: "other.invoice", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Entity(tt.lookup)
			if !tt.wantFound {
				var re *core.ResolutionError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, "entity", re.What)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.Name)
		})
	}
}

func TestEntityRegistry_Relation(t *testing.T) {
	r, err := Build(shopSchema(), nil)
	require.NoError(t, err)

	customer, _ := r.Entity("Customer")
	order, _ := r.Entity("Order")

	t.Run("direct", func(t *testing.T) {
		rel, err := r.Relation(customer, "orders")
		require.NoError(t, err)
		assert.False(t, rel.IsAssociative())
		assert.Same(t, order, rel.Target)
		assert.Equal(t, "customer", rel.OwnerAttr.Name)
		assert.Nil(t, rel.TargetAttr)
	})

	t.Run("associative", func(t *testing.T) {
		rel, err := r.Relation(order, "PRODUCTS")
		require.NoError(t, err)
		assert.True(t, rel.IsAssociative())
		assert.Equal(t, "OrderProduct", rel.Association.Name)
		assert.Equal(t, "order", rel.OwnerAttr.Name)
		assert.Equal(t, "product", rel.TargetAttr.Name)
	})

	t.Run("cached", func(t *testing.T) {
		first, err := r.Relation(customer, "orders")
		require.NoError(t, err)
		second, err := r.Relation(customer, "orders")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := r.Relation(customer, "invoices")
		var re *core.ResolutionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "relation", re.What)
		assert.Equal(t, "Customer", re.Owner)
	})
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		defs []core.EntityConfig
	}{
		{
			name: "unknown reference target",
			defs: []core.EntityConfig{{
				Name: "Order",
				Attributes: []core.AttributeConfig{
					{Name: "id", Identity: true},
					{Name: "customer", Ref: "Customer"},
				},
			}},
		},
		{
			name: "no identity",
			defs: []core.EntityConfig{{
				Name:       "Note",
				Attributes: []core.AttributeConfig{{Name: "body"}},
			}},
		},
		{
			name: "duplicate attribute",
			defs: []core.EntityConfig{{
				Name:       "Note",
				Attributes: []core.AttributeConfig{{Name: "id", Identity: true}, {Name: "ID"}},
			}},
		},
		{
			name: "duplicate entity",
			defs: []core.EntityConfig{
				{Name: "Note", Attributes: []core.AttributeConfig{{Name: "id", Identity: true}}},
				{Name: "note", Attributes: []core.AttributeConfig{{Name: "id", Identity: true}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.defs, nil)
			assert.Error(t, err)
		})
	}
}

func TestBuild_FromMetadata(t *testing.T) {
	meta := map[string]*core.TableMetadata{
		"tag": {
			Name: "tag",
			Columns: []core.Column{
				{Name: "code", Type: "TEXT", PrimaryKey: true},
				{Name: "weight", Type: "INTEGER"},
			},
		},
	}
	r, err := Build([]core.EntityConfig{{Name: "Tag"}}, meta)
	require.NoError(t, err)

	tag, err := r.Entity("tag")
	require.NoError(t, err)
	require.Len(t, tag.Attributes, 2)
	ids := tag.Identity()
	require.Len(t, ids, 1)
	assert.Equal(t, "code", ids[0].Name)
	weight, _ := tag.Attribute("weight")
	assert.Equal(t, core.KindInt, weight.Kind)
}

func TestBuild_InfersIdColumn(t *testing.T) {
	r, err := Build([]core.EntityConfig{{
		Name:       "Note",
		Attributes: []core.AttributeConfig{{Name: "id", Type: "int"}, {Name: "body"}},
	}}, nil)
	require.NoError(t, err)
	note, _ := r.Entity("Note")
	require.Len(t, note.Identity(), 1)
	assert.Equal(t, "id", note.Identity()[0].Name)
}
