package datasource

import (
	"context"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/query"
)

// Filter sets the query text and parameters and fetches its first page.
//
// Placeholders are written `:name`. A named value binds the placeholder of
// that name; an unnamed value binds the placeholder at the same position in
// order of first appearance. Empty text with identity values selects the
// record with that identity; empty text without values selects every
// record.
func (ds *DataSource) Filter(ctx context.Context, text string, params ...core.Value) error {
	return ds.FilterPage(ctx, text, core.NewPageRequest(0, ds.pageSize), params...)
}

// FilterPage is Filter for an explicit page request.
func (ds *DataSource) FilterPage(ctx context.Context, text string, req core.PageRequest, params ...core.Value) error {
	var stmt core.Statement
	switch {
	case text != "":
		stmt = core.Statement{Text: text, Params: params, Entity: ds.entity}
	case len(params) > 0:
		var err error
		stmt, err = query.IdentityFilter(ds.entity, params)
		if err != nil {
			return err
		}
	default:
		stmt = query.SelectAll(ds.entity)
	}
	return ds.run(ctx, stmt, req)
}

// FilterByKeys selects the record whose identity attributes equal the values
// in keys. Extra named values add equality conditions on the attributes
// they name.
func (ds *DataSource) FilterByKeys(ctx context.Context, keys map[string]any, extra ...core.Value) error {
	key, err := query.KeysFromMap(ds.entity, keys)
	if err != nil {
		return err
	}
	stmt, err := query.IdentityFilter(ds.entity, key, extra...)
	if err != nil {
		return err
	}
	return ds.run(ctx, stmt, core.NewPageRequest(0, ds.pageSize))
}
