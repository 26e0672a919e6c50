package datasource_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/leapdata/internal/testutil"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/datasource"
	"github.com/leapstack-labs/leapdata/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openShop(t *testing.T) *session.Session {
	t.Helper()
	adp := testutil.OpenShop(t)
	logger := testutil.NewTestLogger(t)
	return session.ForAdapter(adp, testutil.ShopRegistry(t), session.WithLogger(logger))
}

func open(t *testing.T, s *session.Session, entity string, opts ...datasource.Option) *datasource.DataSource {
	t.Helper()
	opts = append(opts, datasource.WithLogger(testutil.NewTestLogger(t)))
	ds, err := datasource.New(context.Background(), s, entity, opts...)
	require.NoError(t, err)
	return ds
}

func collect(t *testing.T, ds *datasource.DataSource, field string) []any {
	t.Helper()
	ctx := context.Background()
	_, err := ds.Fetch(ctx)
	require.NoError(t, err)

	var out []any
	for range 1000 {
		rec, err := ds.Current()
		if err != nil {
			require.ErrorIs(t, err, core.ErrNoCurrentRecord)
			return out
		}
		out = append(out, rec.Get(field))
		require.NoError(t, ds.Next(ctx))
	}
	t.Fatal("cursor never ran out")
	return nil
}

func TestSQLite_IterateAllPageSizes(t *testing.T) {
	s := openShop(t)
	for _, size := range []int{1, 2, 3, 4} {
		ds := open(t, s, "Customer", datasource.WithPageSize(size))
		assert.Equal(t, []any{int64(1), int64(2), int64(3)}, collect(t, ds, "id"), "page size %d", size)
	}
}

func TestSQLite_FilterByIdentity(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Order")

	require.NoError(t, ds.FilterByKeys(ctx, map[string]any{"id": 11}))
	assert.Equal(t, int64(1), ds.TotalElements())
	v, err := ds.Field("status")
	require.NoError(t, err)
	assert.Equal(t, "shipped", v)

	require.NoError(t, ds.Filter(ctx, "SELECT e.* FROM orders e WHERE e.status = :status AND e.total > :min ORDER BY e.id",
		core.Named("min", "20"), core.Named("status", "open")))
	assert.Equal(t, int64(2), ds.TotalElements())
	assert.Equal(t, int64(10), mustField(t, ds, "id"))
	require.NoError(t, ds.Next(ctx))
	assert.Equal(t, int64(12), mustField(t, ds, "id"))
}

func TestSQLite_CursorStopsAtEnd(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Customer", datasource.WithPageSize(2))

	_, err := ds.Fetch(ctx)
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, ds.Next(ctx))
	}
	assert.False(t, ds.HasNext())
	require.NoError(t, ds.Next(ctx))
	_, err = ds.Current()
	require.ErrorIs(t, err, core.ErrNoCurrentRecord, "the first page is not revisited")
	assert.Equal(t, 1, ds.Page().Request.Number)

	ok, err := ds.Previous(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), mustField(t, ds, "id"))
}

func TestSQLite_FilterText(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Customer")

	t.Run("trailing line comment", func(t *testing.T) {
		require.NoError(t, ds.Filter(ctx, "SELECT e.* FROM customer e WHERE e.id > :min -- customers past min", core.V(1)))
		assert.Equal(t, int64(2), ds.TotalElements())
		assert.Equal(t, int64(2), mustField(t, ds, "id"))
	})

	t.Run("text the database rejects", func(t *testing.T) {
		err := ds.Filter(ctx, "SELEC e.* FROM customer e WHERE e.id = :id", core.V(1))
		var qe *core.QueryError
		require.ErrorAs(t, err, &qe)
		assert.Contains(t, qe.Query, "SELEC e.*")
		var pe *core.PersistenceError
		assert.False(t, errors.As(err, &pe))
	})
}

func TestSQLite_InsertSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Product")

	fields := map[string]any{"sku": "D-4", "title": "Drill", "price": 42.5}
	require.NoError(t, ds.InsertValues(fields))
	saved, err := ds.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))

	s.Clear()
	require.NoError(t, ds.Filter(ctx, "", core.V(saved.Get("sku"))))
	rec, err := ds.Current()
	require.NoError(t, err)
	assert.Equal(t, fields, rec.Values())
}

func TestSQLite_GeneratedIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Ticket")

	require.NoError(t, ds.InsertValues(map[string]any{"subject": "printer on fire"}))
	saved, err := ds.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))

	require.NoError(t, ds.FilterByKeys(ctx, map[string]any{"id": saved.Get("id")}))
	assert.Equal(t, "printer on fire", mustField(t, ds, "subject"))
}

func TestSQLite_UpdateFlushesOnCommit(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Customer")

	require.NoError(t, s.BeginIfInactive(ctx))
	require.NoError(t, ds.FilterByKeys(ctx, map[string]any{"id": 2}))
	require.NoError(t, ds.UpdateField("email", "bob@example.com"))
	require.NoError(t, ds.UpdateField("nickname", "Bobby"))
	require.NoError(t, s.Commit(ctx))

	s.Clear()
	require.NoError(t, ds.FilterByKeys(ctx, map[string]any{"id": 2}))
	assert.Equal(t, "bob@example.com", mustField(t, ds, "email"))
	assert.Equal(t, "Bob", mustField(t, ds, "name"))
}

func TestSQLite_Delete(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Ticket")

	require.NoError(t, ds.InsertValues(map[string]any{"id": "t-1", "subject": "one"}))
	_, err := ds.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, ds.InsertValues(map[string]any{"id": "t-2", "subject": "two"}))
	_, err = ds.Save(ctx)
	require.NoError(t, err)

	require.NoError(t, ds.Filter(ctx, "", core.V("t-1")))
	require.NoError(t, ds.Delete(ctx))

	n, err := ds.DeleteByKeys(ctx, core.V("t-2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, s.Commit(ctx))

	require.NoError(t, ds.Filter(ctx, ""))
	assert.Equal(t, int64(0), ds.TotalElements())
}

func TestSQLite_AssociativeRelation(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Order")

	countLinks := func() int64 {
		t.Helper()
		links := open(t, s, "OrderProduct")
		_, err := links.Fetch(ctx)
		require.NoError(t, err)
		return links.TotalElements()
	}
	before := countLinks()

	owner, err := ds.InsertRelation(ctx, "products", map[string]any{"sku": "C-3"}, core.V(10))
	require.NoError(t, err)
	assert.Equal(t, int64(10), owner.Get("id"))
	assert.Equal(t, before+1, countLinks())

	require.NoError(t, ds.FilterByRelation(ctx, "products", core.NewPageRequest(0, 10), core.V(10)))
	var skus []any
	for _, rec := range ds.Page().Records {
		skus = append(skus, rec.Get("sku"))
	}
	assert.Equal(t, []any{"A-1", "B-2", "C-3"}, skus)

	n, err := ds.DeleteRelation(ctx, "products", core.Values(10), core.Values("C-3"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, before, countLinks())

	// order 11 keeps its own C-3 link
	require.NoError(t, ds.FilterByRelation(ctx, "products", core.NewPageRequest(0, 10), core.V(11)))
	assert.Equal(t, "C-3", mustField(t, ds, "sku"))
}

func TestSQLite_DirectRelation(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Customer")

	require.NoError(t, ds.FilterByRelation(ctx, "orders", core.NewPageRequest(0, 10), core.V(1)))
	assert.Equal(t, int64(2), ds.TotalElements())

	created, err := ds.InsertRelation(ctx, "orders", map[string]any{"id": 13, "total": 3.5, "status": "open"}, core.V(3))
	require.NoError(t, err)
	assert.Equal(t, "Order", created.Entity().Name)

	require.NoError(t, ds.FilterByRelation(ctx, "orders", core.NewPageRequest(0, 10), core.V(3)))
	assert.Equal(t, int64(1), ds.TotalElements())
	assert.Equal(t, int64(13), mustField(t, ds, "id"))

	n, err := ds.DeleteRelation(ctx, "orders", core.Values(3), core.Values(13))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, ds.FilterByRelation(ctx, "orders", core.NewPageRequest(0, 10), core.V(3)))
	assert.Equal(t, int64(0), ds.TotalElements())
}

func TestSQLite_Execute(t *testing.T) {
	ctx := context.Background()
	s := openShop(t)
	ds := open(t, s, "Order")

	n, err := ds.Execute(ctx, "UPDATE orders SET status = :next WHERE status = :prev", core.Named("prev", "open"), core.Named("next", "held"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = ds.Execute(ctx, "UPDATE nowhere SET x = 1")
	var pe *core.PersistenceError
	require.ErrorAs(t, err, &pe)
	require.NoError(t, s.Rollback())

	require.NoError(t, ds.Filter(ctx, "SELECT e.* FROM orders e WHERE e.status = :s", core.V("held")))
	assert.Equal(t, int64(0), ds.TotalElements(), "rolled back")
}

func mustField(t *testing.T, ds *datasource.DataSource, name string) any {
	t.Helper()
	v, err := ds.Field(name)
	require.NoError(t, err)
	return v
}
