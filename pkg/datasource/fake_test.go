package datasource

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapdata/internal/registry"
	"github.com/leapstack-labs/leapdata/internal/testutil"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/stretchr/testify/require"
)

// fakeSession serves in-memory rows by result entity and records every
// call. Query text is not evaluated.
type fakeSession struct {
	reg  *registry.EntityRegistry
	rows map[string][]*core.Record

	queries    []core.Statement
	requests   []core.PageRequest
	statements []core.Statement
	persisted  []*core.Record
	merged     []*core.Record
	removed    []*core.Record
	begins     int

	queryErr error
	writeErr error
	affected int64
}

func newFakeSession(t *testing.T) *fakeSession {
	t.Helper()
	return &fakeSession{
		reg:      testutil.ShopRegistry(t),
		rows:     make(map[string][]*core.Record),
		affected: 1,
	}
}

func (f *fakeSession) ResolveEntity(_ context.Context, name string) (*core.Entity, error) {
	return f.reg.Entity(name)
}

func (f *fakeSession) Relation(_ context.Context, owner *core.Entity, refID string) (*core.Relation, error) {
	return f.reg.Relation(owner, refID)
}

func (f *fakeSession) ExecuteQuery(_ context.Context, stmt core.Statement, req core.PageRequest) (*core.Page, error) {
	f.queries = append(f.queries, stmt)
	f.requests = append(f.requests, req)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	all := f.rows[stmt.Entity.Name]
	page := &core.Page{Request: req, Total: int64(len(all))}
	if req.Size < 1 {
		page.Records = append([]*core.Record(nil), all...)
		return page, nil
	}
	start := min(req.Offset(), len(all))
	end := min(start+req.Size, len(all))
	page.Records = append([]*core.Record(nil), all[start:end]...)
	return page, nil
}

func (f *fakeSession) ExecuteStatement(_ context.Context, stmt core.Statement) (int64, error) {
	f.statements = append(f.statements, stmt)
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.affected, nil
}

func (f *fakeSession) Persist(_ context.Context, rec *core.Record) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	rec.MarkPersisted()
	rec.ClearDirty()
	f.persisted = append(f.persisted, rec)
	return nil
}

func (f *fakeSession) Merge(_ context.Context, rec *core.Record) (*core.Record, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	rec.MarkPersisted()
	rec.ClearDirty()
	f.merged = append(f.merged, rec)
	return rec, nil
}

func (f *fakeSession) Remove(_ context.Context, rec *core.Record) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.removed = append(f.removed, rec)
	return nil
}

func (f *fakeSession) BeginIfInactive(_ context.Context) error {
	f.begins++
	return nil
}

// seed stores records of the named entity built from fields.
func (f *fakeSession) seed(t *testing.T, entity string, fields ...map[string]any) {
	t.Helper()
	e, err := f.reg.Entity(entity)
	require.NoError(t, err)
	for _, fv := range fields {
		rec, err := e.RecordFrom(fv)
		require.NoError(t, err)
		rec.ClearDirty()
		rec.MarkPersisted()
		f.rows[e.Name] = append(f.rows[e.Name], rec)
	}
}

func (f *fakeSession) lastQuery(t *testing.T) core.Statement {
	t.Helper()
	require.NotEmpty(t, f.queries)
	return f.queries[len(f.queries)-1]
}

func (f *fakeSession) lastStatement(t *testing.T) core.Statement {
	t.Helper()
	require.NotEmpty(t, f.statements)
	return f.statements[len(f.statements)-1]
}

var _ core.Session = (*fakeSession)(nil)
