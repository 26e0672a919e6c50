package datasource

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSource_Filter(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		apply      func(ds *DataSource) error
		wantText   string
		wantParams []core.Value
	}{
		{
			name: "query text",
			apply: func(ds *DataSource) error {
				return ds.Filter(ctx, "SELECT e.* FROM customer e WHERE e.name = :name", core.Named("name", "Bob"))
			},
			wantText:   "SELECT e.* FROM customer e WHERE e.name = :name",
			wantParams: []core.Value{core.Named("name", "Bob")},
		},
		{
			name: "identity values without text",
			apply: func(ds *DataSource) error {
				return ds.Filter(ctx, "", core.V("7"))
			},
			wantText:   "SELECT e.* FROM customer e WHERE e.id = :p0",
			wantParams: []core.Value{core.Named("p0", int64(7))},
		},
		{
			name: "no text and no values",
			apply: func(ds *DataSource) error {
				return ds.Filter(ctx, "")
			},
			wantText: "SELECT e.* FROM customer e ORDER BY e.id",
		},
		{
			name: "identity map",
			apply: func(ds *DataSource) error {
				return ds.FilterByKeys(ctx, map[string]any{"id": 7})
			},
			wantText:   "SELECT e.* FROM customer e WHERE e.id = :p0",
			wantParams: []core.Value{core.Named("p0", int64(7))},
		},
		{
			name: "identity map with extra conditions",
			apply: func(ds *DataSource) error {
				return ds.FilterByKeys(ctx, map[string]any{"ID": 7}, core.Named("name", "Bob"), core.Named("email", "bob@example.com"))
			},
			wantText: "SELECT e.* FROM customer e WHERE e.id = :p0 AND e.name = :p1 AND e.email = :p2",
			wantParams: []core.Value{
				core.Named("p0", int64(7)),
				core.Named("p1", "Bob"),
				core.Named("p2", "bob@example.com"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, fs := newCustomers(t, 3)
			require.NoError(t, tt.apply(ds))

			stmt := fs.lastQuery(t)
			assert.Equal(t, tt.wantText, stmt.Text)
			assert.Equal(t, tt.wantParams, stmt.Params)
			assert.Same(t, ds.Entity(), stmt.Entity)
			assert.Equal(t, 0, ds.Cursor())
		})
	}
}

func TestDataSource_FilterResetsPaging(t *testing.T) {
	ctx := context.Background()
	ds, fs := newCustomers(t, 5, WithPageSize(2))

	_, err := ds.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, ds.Next(ctx))
	require.NoError(t, ds.Next(ctx))
	assert.Equal(t, 1, ds.Page().Request.Number)

	require.NoError(t, ds.Filter(ctx, "SELECT e.* FROM customer e WHERE e.name <> :name", core.V("nobody")))
	assert.Equal(t, core.NewPageRequest(0, 2), fs.requests[len(fs.requests)-1])
	assert.Equal(t, int64(1), currentID(t, ds))

	// paging keeps the filter
	require.NoError(t, ds.Next(ctx))
	require.NoError(t, ds.Next(ctx))
	assert.Equal(t, "SELECT e.* FROM customer e WHERE e.name <> :name", fs.lastQuery(t).Text)
	assert.Equal(t, core.NewPageRequest(1, 2), fs.requests[len(fs.requests)-1])
}

func TestDataSource_FilterPage(t *testing.T) {
	ctx := context.Background()
	ds, fs := newCustomers(t, 5, WithPageSize(2))

	require.NoError(t, ds.FilterPage(ctx, "", core.NewPageRequest(2, 2)))
	assert.Equal(t, core.NewPageRequest(2, 2), fs.requests[len(fs.requests)-1])
	assert.Equal(t, int64(5), currentID(t, ds))
}

func TestDataSource_FilterErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing identity value", func(t *testing.T) {
		ds, fs := newCustomers(t, 1)
		err := ds.FilterByKeys(ctx, map[string]any{"name": "Bob"})
		var qe *core.QueryError
		require.ErrorAs(t, err, &qe)
		assert.Empty(t, fs.queries)
	})

	t.Run("identity value cannot be coerced", func(t *testing.T) {
		ds, _ := newCustomers(t, 1)
		err := ds.Filter(ctx, "", core.V("seven"))
		var qe *core.QueryError
		assert.ErrorAs(t, err, &qe)
	})

	t.Run("too many identity values", func(t *testing.T) {
		ds, _ := newCustomers(t, 1)
		err := ds.Filter(ctx, "", core.V(1), core.V(2))
		var qe *core.QueryError
		assert.ErrorAs(t, err, &qe)
	})

	t.Run("extra condition without name", func(t *testing.T) {
		ds, _ := newCustomers(t, 1)
		err := ds.FilterByKeys(ctx, map[string]any{"id": 1}, core.V("Bob"))
		var qe *core.QueryError
		assert.ErrorAs(t, err, &qe)
	})
}

func TestDataSource_FilterComposite(t *testing.T) {
	ctx := context.Background()
	fs := newFakeSession(t)
	ds, err := New(ctx, fs, "OrderProduct")
	require.NoError(t, err)

	require.NoError(t, ds.FilterByKeys(ctx, map[string]any{"order": "10", "product": "A-1"}))
	stmt := fs.lastQuery(t)
	assert.Equal(t, "SELECT e.* FROM order_product e WHERE e.order_id = :p0 AND e.product_sku = :p1", stmt.Text)
	assert.Equal(t, []core.Value{core.Named("p0", int64(10)), core.Named("p1", "A-1")}, stmt.Params)
}
