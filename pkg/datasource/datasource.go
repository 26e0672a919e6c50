// Package datasource provides a paginated cursor over the records of one
// entity.
//
// A DataSource is bound to an entity by name and delegates all query
// execution and persistence to a core.Session. It keeps the last fetched
// page, a cursor into it and an optional pending insert which, while set,
// is the current record.
//
// A DataSource is not safe for concurrent use.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/query"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 100

// DataSource is a stateful cursor over the records of one entity.
type DataSource struct {
	session core.Session
	entity  *core.Entity
	logger  *slog.Logger

	pageSize int
	stmt     *core.Statement // nil fetches every record
	request  core.PageRequest
	page     *core.Page
	cursor   int
	pending  *core.Record

	// exhausted is set once Next has moved past the last record of the
	// last page. It holds until the next fetch.
	exhausted bool
}

// Option configures a DataSource.
type Option func(*DataSource)

// WithPageSize sets the page size. Values below 1 are ignored.
func WithPageSize(n int) Option {
	return func(ds *DataSource) {
		if n > 0 {
			ds.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ds *DataSource) {
		if logger != nil {
			ds.logger = logger
		}
	}
}

// New binds a data source to the named entity.
func New(ctx context.Context, session core.Session, entityName string, opts ...Option) (*DataSource, error) {
	entity, err := session.ResolveEntity(ctx, entityName)
	if err != nil {
		return nil, err
	}
	ds := &DataSource{
		session:  session,
		entity:   entity,
		logger:   slog.New(slog.DiscardHandler),
		pageSize: DefaultPageSize,
		cursor:   -1,
	}
	for _, opt := range opts {
		opt(ds)
	}
	ds.request = core.NewPageRequest(0, ds.pageSize)
	return ds, nil
}

// Entity returns the bound entity.
func (ds *DataSource) Entity() *core.Entity {
	return ds.entity
}

// PageSize returns the configured page size.
func (ds *DataSource) PageSize() int {
	return ds.pageSize
}

// Fetch runs the current filter, or selects every record when there is
// none, for the current page request. The cursor moves to the first record
// of the new page and any pending insert is dropped. On failure the
// previous page and cursor are kept.
func (ds *DataSource) Fetch(ctx context.Context) ([]*core.Record, error) {
	if err := ds.run(ctx, ds.statement(), ds.request); err != nil {
		return nil, err
	}
	return ds.page.Records, nil
}

func (ds *DataSource) statement() core.Statement {
	if ds.stmt != nil {
		return *ds.stmt
	}
	return query.SelectAll(ds.entity)
}

// run executes stmt for req. On success stmt and req become the current
// filter and window.
func (ds *DataSource) run(ctx context.Context, stmt core.Statement, req core.PageRequest) error {
	page, err := ds.session.ExecuteQuery(ctx, stmt, req)
	if err != nil {
		return err
	}

	ds.logger.Debug("fetched page",
		slog.String("entity", ds.entity.Name),
		slog.Int("page", req.Number),
		slog.Int("size", req.Size),
		slog.Int("records", page.Len()),
		slog.Int64("total", page.Total))

	ds.stmt = &stmt
	ds.request = req
	ds.page = page
	ds.pending = nil
	ds.exhausted = false
	if page.Len() > 0 {
		ds.cursor = 0
	} else {
		ds.cursor = -1
	}
	return nil
}

// Next advances the cursor. Past the last record of the page the adjacent
// page is fetched; past the last record of the last page the cursor is
// cleared and further calls do nothing until the next fetch. Without a
// fetched page, Next fetches the first one.
func (ds *DataSource) Next(ctx context.Context) error {
	if ds.page == nil {
		_, err := ds.Fetch(ctx)
		return err
	}
	if ds.exhausted {
		return nil
	}
	if ds.cursor+1 < ds.page.Len() {
		ds.cursor++
		return nil
	}
	if ds.page.HasNext() {
		return ds.run(ctx, ds.statement(), ds.page.NextRequest())
	}
	ds.cursor = -1
	ds.exhausted = true
	return nil
}

// HasNext reports whether Next would land on a record.
func (ds *DataSource) HasNext() bool {
	if ds.page == nil || ds.exhausted {
		return false
	}
	return ds.cursor+1 < ds.page.Len() || ds.page.HasNext()
}

// Previous moves the cursor back, fetching the preceding page at a page
// boundary. Once the cursor has run past the end, Previous returns to the
// last record. It returns false without moving when there is no earlier
// record.
func (ds *DataSource) Previous(ctx context.Context) (bool, error) {
	if ds.page == nil {
		return false, nil
	}
	if ds.exhausted {
		if ds.page.Len() == 0 {
			return false, nil
		}
		ds.exhausted = false
		ds.cursor = ds.page.Len() - 1
		return true, nil
	}
	if ds.cursor-1 >= 0 {
		ds.cursor--
		return true, nil
	}
	if !ds.page.HasPrevious() {
		return false, nil
	}
	if err := ds.run(ctx, ds.statement(), ds.page.PreviousRequest()); err != nil {
		return false, err
	}
	ds.cursor = ds.page.Len() - 1
	return true, nil
}

// SetPageSize restarts pagination at page 0 with windows of n records. The
// cursor is cleared until the next fetch.
func (ds *DataSource) SetPageSize(n int) error {
	if n < 1 {
		return fmt.Errorf("page size must be at least 1, got %d", n)
	}
	ds.pageSize = n
	ds.request = core.NewPageRequest(0, n)
	ds.page = nil
	ds.cursor = -1
	ds.exhausted = false
	return nil
}

// Current returns the pending insert if there is one, else the record under
// the cursor. It returns core.ErrNoCurrentRecord when there is neither.
func (ds *DataSource) Current() (*core.Record, error) {
	if ds.pending != nil {
		return ds.pending, nil
	}
	if ds.page == nil || ds.cursor < 0 || ds.cursor >= ds.page.Len() {
		return nil, core.ErrNoCurrentRecord
	}
	return ds.page.Records[ds.cursor], nil
}

// Field returns the named attribute of the current record. A name without
// an accessor yields nil.
func (ds *DataSource) Field(name string) (any, error) {
	rec, err := ds.Current()
	if err != nil {
		return nil, err
	}
	return rec.Get(name), nil
}

// Cursor returns the cursor position within the page, -1 when none.
func (ds *DataSource) Cursor() int {
	return ds.cursor
}

// Pending reports whether an unsaved insert is the current record.
func (ds *DataSource) Pending() bool {
	return ds.pending != nil
}

// Page returns the last fetched page, nil before the first fetch.
func (ds *DataSource) Page() *core.Page {
	return ds.page
}

// TotalElements returns the number of records matching the current filter
// as of the last fetch.
func (ds *DataSource) TotalElements() int64 {
	if ds.page == nil {
		return 0
	}
	return ds.page.Total
}

// Clear drops the fetched page and restarts pagination at page 0.
func (ds *DataSource) Clear() {
	ds.request = core.NewPageRequest(0, ds.pageSize)
	ds.page = nil
	ds.cursor = -1
	ds.exhausted = false
}

// MarshalJSON encodes the records of the current page as a JSON array.
func (ds *DataSource) MarshalJSON() ([]byte, error) {
	if ds.page == nil {
		return []byte("[]"), nil
	}
	records := ds.page.Records
	if records == nil {
		records = []*core.Record{}
	}
	return json.Marshal(records)
}

func (ds *DataSource) String() string {
	if ds.page == nil {
		return "[]"
	}
	return fmt.Sprint(ds.page.Records)
}
