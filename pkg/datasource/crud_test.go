package datasource

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSource_Insert(t *testing.T) {
	ctx := context.Background()
	ds, _ := newCustomers(t, 2)

	_, err := ds.Fetch(ctx)
	require.NoError(t, err)

	ds.Insert()
	assert.True(t, ds.Pending())
	rec, err := ds.Current()
	require.NoError(t, err)
	assert.Nil(t, rec.Get("id"), "pending insert takes precedence over the cursor")
	assert.False(t, rec.Persisted())

	_, err = ds.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, ds.Pending(), "fetch replaces the pending insert")
	assert.Equal(t, int64(1), currentID(t, ds))
}

func TestDataSource_InsertValues(t *testing.T) {
	ds, _ := newCustomers(t, 0)

	require.NoError(t, ds.InsertValues(map[string]any{"name": "Dave", "nickname": "D"}))
	rec, err := ds.Current()
	require.NoError(t, err)
	assert.Equal(t, "Dave", rec.Get("name"))

	err = ds.InsertValues(map[string]any{"id": "not a number"})
	var qe *core.QueryError
	require.ErrorAs(t, err, &qe)
	rec, err = ds.Current()
	require.NoError(t, err)
	assert.Equal(t, "Dave", rec.Get("name"), "failed insert keeps the previous pending record")
}

func TestDataSource_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("pending insert", func(t *testing.T) {
		ds, fs := newCustomers(t, 2)
		_, err := ds.Fetch(ctx)
		require.NoError(t, err)
		require.NoError(t, ds.Next(ctx))

		require.NoError(t, ds.InsertValues(map[string]any{"id": 9, "name": "Dave"}))
		saved, err := ds.Save(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, fs.begins)
		require.Len(t, fs.persisted, 1)
		assert.Same(t, saved, fs.persisted[0])
		assert.Empty(t, fs.merged)
		assert.False(t, ds.Pending())
		assert.Equal(t, int64(2), currentID(t, ds), "cursor is where it was before the insert")
	})

	t.Run("cursor record", func(t *testing.T) {
		ds, fs := newCustomers(t, 2)
		_, err := ds.Fetch(ctx)
		require.NoError(t, err)
		require.NoError(t, ds.UpdateField("name", "Alicia"))

		saved, err := ds.Save(ctx)
		require.NoError(t, err)
		require.Len(t, fs.merged, 1)
		assert.Same(t, saved, fs.merged[0])
		assert.Equal(t, "Alicia", saved.Get("name"))
		assert.Empty(t, fs.persisted)
	})

	t.Run("no current record", func(t *testing.T) {
		ds, fs := newCustomers(t, 0)
		_, err := ds.Save(ctx)
		assert.ErrorIs(t, err, core.ErrNoCurrentRecord)
		assert.Empty(t, fs.merged)
	})

	t.Run("failure keeps the pending insert", func(t *testing.T) {
		ds, fs := newCustomers(t, 0)
		ds.Insert()
		fs.writeErr = &core.PersistenceError{Op: "persist", Cause: assert.AnError}

		_, err := ds.Save(ctx)
		assert.ErrorIs(t, err, assert.AnError)
		assert.True(t, ds.Pending())
	})
}

func TestDataSource_Update(t *testing.T) {
	ctx := context.Background()
	ds, _ := newCustomers(t, 1)

	assert.ErrorIs(t, ds.Update(map[string]any{"name": "x"}), core.ErrNoCurrentRecord)

	_, err := ds.Fetch(ctx)
	require.NoError(t, err)

	require.NoError(t, ds.Update(map[string]any{"name": "Alicia", "email": "alicia@example.com"}))
	rec, err := ds.Current()
	require.NoError(t, err)
	assert.Equal(t, "Alicia", rec.Get("name"))
	assert.Equal(t, "alicia@example.com", rec.Get("email"))
	assert.True(t, rec.Dirty())

	require.NoError(t, ds.UpdateFields(core.Named("name", "Ali"), core.Named("createdAt", "2024-03-01")))
	assert.Equal(t, "Ali", rec.Get("name"))
	assert.NotNil(t, rec.Get("createdAt"))

	err = ds.UpdateField("id", "abc")
	var qe *core.QueryError
	assert.ErrorAs(t, err, &qe)
}

func TestDataSource_UpdateFieldWithoutAccessor(t *testing.T) {
	ctx := context.Background()
	ds, _ := newCustomers(t, 1)
	_, err := ds.Fetch(ctx)
	require.NoError(t, err)

	rec, err := ds.Current()
	require.NoError(t, err)
	before := rec.Values()

	require.NoError(t, ds.UpdateField("nickname", "Al"))
	require.NoError(t, ds.UpdateFields(core.Named("shoeSize", 42)))
	require.NoError(t, ds.Update(map[string]any{"": "blank"}))

	assert.Equal(t, before, rec.Values())
	assert.False(t, rec.Dirty())
}

func TestDataSource_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("cursor record", func(t *testing.T) {
		ds, fs := newCustomers(t, 2)
		_, err := ds.Fetch(ctx)
		require.NoError(t, err)
		rec, err := ds.Current()
		require.NoError(t, err)

		require.NoError(t, ds.Delete(ctx))
		assert.Equal(t, 1, fs.begins)
		assert.Equal(t, []*core.Record{rec}, fs.merged)
		assert.Equal(t, []*core.Record{rec}, fs.removed)
	})

	t.Run("no current record", func(t *testing.T) {
		ds, fs := newCustomers(t, 0)
		assert.ErrorIs(t, ds.Delete(ctx), core.ErrNoCurrentRecord)
		assert.Zero(t, fs.begins)
	})

	t.Run("failure", func(t *testing.T) {
		ds, fs := newCustomers(t, 1)
		_, err := ds.Fetch(ctx)
		require.NoError(t, err)
		fs.writeErr = &core.PersistenceError{Op: "merge", Cause: assert.AnError}

		err = ds.Delete(ctx)
		var pe *core.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Empty(t, fs.removed)
		assert.Equal(t, int64(1), currentID(t, ds))
	})
}

func TestDataSource_DeleteByKeys(t *testing.T) {
	ctx := context.Background()
	ds, fs := newCustomers(t, 3)
	_, err := ds.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, ds.Next(ctx))

	n, err := ds.DeleteByKeys(ctx, core.V("3"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, fs.begins)

	stmt := fs.lastStatement(t)
	assert.Equal(t, "DELETE FROM customer WHERE id = :p0", stmt.Text)
	assert.Equal(t, []core.Value{core.Named("p0", int64(3))}, stmt.Params)

	assert.False(t, ds.Pending())
	assert.Equal(t, int64(2), currentID(t, ds), "cursor untouched")

	_, err = ds.DeleteByKeys(ctx)
	var qe *core.QueryError
	assert.ErrorAs(t, err, &qe)
}

func TestDataSource_Execute(t *testing.T) {
	ctx := context.Background()
	ds, fs := newCustomers(t, 0)
	fs.affected = 3

	n, err := ds.Execute(ctx, "UPDATE customer SET email = NULL WHERE name = :name", core.Named("name", "Bob"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 1, fs.begins)

	stmt := fs.lastStatement(t)
	assert.Equal(t, "UPDATE customer SET email = NULL WHERE name = :name", stmt.Text)
	assert.Same(t, ds.Entity(), stmt.Entity)

	fs.writeErr = &core.PersistenceError{Op: "execute", Cause: assert.AnError}
	_, err = ds.Execute(ctx, "DELETE FROM customer")
	var pe *core.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, assert.AnError)
}
