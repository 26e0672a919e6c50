package datasource

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/query"
)

// Insert starts a blank pending record. It is the current record until it
// is saved or a fetch replaces it.
func (ds *DataSource) Insert() {
	ds.pending = ds.entity.NewRecord()
}

// InsertValues starts a pending record and assigns values by attribute
// name. Names without an accessor are ignored.
func (ds *DataSource) InsertValues(values map[string]any) error {
	rec := ds.entity.NewRecord()
	for name, v := range values {
		if err := rec.Set(name, v); err != nil {
			return err
		}
	}
	ds.pending = rec
	return nil
}

// Save writes the current record inside the session transaction, starting
// one if none is active. A pending insert is persisted as a new row and
// stops being pending; otherwise the cursor record is merged. The saved
// record is returned.
func (ds *DataSource) Save(ctx context.Context) (*core.Record, error) {
	if err := ds.session.BeginIfInactive(ctx); err != nil {
		return nil, err
	}

	if ds.pending != nil {
		rec := ds.pending
		if err := ds.session.Persist(ctx, rec); err != nil {
			return nil, err
		}
		ds.pending = nil
		ds.logger.Debug("inserted record", slog.String("entity", ds.entity.Name), slog.Any("key", rec.Key()))
		return rec, nil
	}

	rec, err := ds.Current()
	if err != nil {
		return nil, err
	}
	merged, err := ds.session.Merge(ctx, rec)
	if err != nil {
		return nil, err
	}
	ds.page.Records[ds.cursor] = merged
	ds.logger.Debug("merged record", slog.String("entity", ds.entity.Name), slog.Any("key", merged.Key()))
	return merged, nil
}

// Update assigns values to the current record by attribute name. The
// assignments reach the database when the session flushes.
func (ds *DataSource) Update(values map[string]any) error {
	rec, err := ds.Current()
	if err != nil {
		return err
	}
	for name, v := range values {
		if err := rec.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// UpdateField assigns one attribute of the current record. A name without
// an accessor is ignored.
func (ds *DataSource) UpdateField(name string, v any) error {
	rec, err := ds.Current()
	if err != nil {
		return err
	}
	return rec.Set(name, v)
}

// UpdateFields assigns each named value to the attribute it names.
func (ds *DataSource) UpdateFields(values ...core.Value) error {
	rec, err := ds.Current()
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := rec.Set(v.Identifier(), v.RawValue()); err != nil {
			return err
		}
	}
	return nil
}

// Delete merges the current record into the session transaction and
// removes it.
func (ds *DataSource) Delete(ctx context.Context) error {
	rec, err := ds.Current()
	if err != nil {
		return err
	}
	if err := ds.session.BeginIfInactive(ctx); err != nil {
		return err
	}
	managed, err := ds.session.Merge(ctx, rec)
	if err != nil {
		return err
	}
	if err := ds.session.Remove(ctx, managed); err != nil {
		return err
	}
	if rec == ds.pending {
		ds.pending = nil
	}
	ds.logger.Debug("deleted record", slog.String("entity", ds.entity.Name), slog.Any("key", managed.Key()))
	return nil
}

// DeleteByKeys deletes the records whose identity equals keys, given in
// identity declaration order, without touching the cursor.
func (ds *DataSource) DeleteByKeys(ctx context.Context, keys ...core.Value) (int64, error) {
	stmt, err := query.IdentityDelete(ds.entity, keys)
	if err != nil {
		return 0, err
	}
	return ds.exec(ctx, stmt)
}

// Execute runs an update or delete statement inside the session
// transaction and returns the number of affected rows. Placeholders bind as
// in Filter.
func (ds *DataSource) Execute(ctx context.Context, text string, params ...core.Value) (int64, error) {
	return ds.exec(ctx, core.Statement{Text: text, Params: params, Entity: ds.entity})
}

func (ds *DataSource) exec(ctx context.Context, stmt core.Statement) (int64, error) {
	if err := ds.session.BeginIfInactive(ctx); err != nil {
		return 0, err
	}
	n, err := ds.session.ExecuteStatement(ctx, stmt)
	if err != nil {
		return 0, err
	}
	ds.logger.Debug("executed statement", slog.String("entity", ds.entity.Name), slog.Int64("rows", n))
	return n, nil
}
