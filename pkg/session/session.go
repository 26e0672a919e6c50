// Package session implements core.Session over a database/sql connection.
//
// A Session holds one explicit transaction handle and tracks the records it
// has loaded or written (managed records). Assignments to a managed record
// mark it dirty; dirty records are flushed before queries run and before
// the transaction commits.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapdata/pkg/adapter"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/dialect"
	"github.com/leapstack-labs/leapdata/pkg/query"
)

// Resolver maps entity and relation names to their descriptors.
type Resolver interface {
	Entity(name string) (*core.Entity, error)
	Relation(owner *core.Entity, refID string) (*core.Relation, error)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Session is a SQL-backed persistence session. It is not safe for
// concurrent use.
type Session struct {
	db       *sql.DB
	dialect  *dialect.Dialect
	resolver Resolver
	logger   *slog.Logger

	tx      *sql.Tx
	managed map[string]*core.Record
	order   []string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a session on an open database with the given dialect.
func New(db *sql.DB, d *dialect.Dialect, resolver Resolver, opts ...Option) *Session {
	s := &Session{
		db:       db,
		dialect:  d,
		resolver: resolver,
		logger:   slog.New(slog.DiscardHandler),
		managed:  make(map[string]*core.Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForAdapter creates a session on a connected adapter.
func ForAdapter(adp adapter.Adapter, resolver Resolver, opts ...Option) *Session {
	return New(adp.DB(), adp.Dialect(), resolver, opts...)
}

// Dialect returns the dialect statements are rendered for.
func (s *Session) Dialect() *dialect.Dialect {
	return s.dialect
}

func (s *Session) conn() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// ResolveEntity returns the descriptor of a named entity.
func (s *Session) ResolveEntity(_ context.Context, name string) (*core.Entity, error) {
	return s.resolver.Entity(name)
}

// Relation resolves relation metadata declared on owner.
func (s *Session) Relation(_ context.Context, owner *core.Entity, refID string) (*core.Relation, error) {
	return s.resolver.Relation(owner, refID)
}

// BeginIfInactive starts a transaction unless one is active.
func (s *Session) BeginIfInactive(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapPersistence("begin", err)
	}
	s.logger.Debug("transaction started")
	s.tx = tx
	return nil
}

// Active reports whether a transaction is open.
func (s *Session) Active() bool {
	return s.tx != nil
}

// Commit flushes dirty managed records and commits the active transaction.
// Without a transaction the flush runs in autocommit mode.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return core.WrapPersistence("commit", err)
	}
	s.logger.Debug("transaction committed")
	return nil
}

// Rollback aborts the active transaction and detaches all managed records.
func (s *Session) Rollback() error {
	s.Clear()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return core.WrapPersistence("rollback", err)
	}
	s.logger.Debug("transaction rolled back")
	return nil
}

// Clear detaches all managed records. Pending assignments are dropped.
func (s *Session) Clear() {
	s.managed = make(map[string]*core.Record)
	s.order = nil
}

// Managed returns the number of records tracked by the session.
func (s *Session) Managed() int {
	return len(s.managed)
}

// ExecuteQuery runs a select statement and returns the requested window.
// A request with Size < 1 returns every row.
func (s *Session) ExecuteQuery(ctx context.Context, stmt core.Statement, req core.PageRequest) (*core.Page, error) {
	if stmt.Entity == nil {
		return nil, core.NewQueryError(stmt.Text, "statement has no result entity")
	}
	stmt.Text = trimStatement(stmt.Text)
	text, args, err := query.Prepare(stmt, s.dialect)
	if err != nil {
		return nil, err
	}
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}

	// The wrappers start on a new line so a trailing line comment in the
	// caller's text cannot swallow them.
	page := &core.Page{Request: req}
	if req.Size > 0 {
		count, err := s.prepare(ctx, stmt.Text, "SELECT COUNT(*) FROM (\n"+text+"\n) q")
		if err != nil {
			return nil, err
		}
		err = count.QueryRowContext(ctx, args...).Scan(&page.Total)
		_ = count.Close()
		if err != nil {
			return nil, core.WrapPersistence("count", err)
		}
		text = fmt.Sprintf("%s\nLIMIT %d OFFSET %d", text, req.Size, req.Offset())
	}

	s.logger.Debug("executing query",
		slog.String("entity", stmt.Entity.Name),
		slog.String("sql", text),
		slog.Int("args", len(args)))

	sel, err := s.prepare(ctx, stmt.Text, text)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sel.Close() }()

	rows, err := sel.QueryContext(ctx, args...)
	if err != nil {
		return nil, core.WrapPersistence("query", err)
	}
	defer func() { _ = rows.Close() }()

	records, err := s.scan(rows, stmt.Entity)
	if err != nil {
		return nil, err
	}
	page.Records = records
	if req.Size < 1 {
		page.Total = int64(len(records))
	}
	return page, nil
}

// prepare compiles text on the current connection. Text the database
// refuses to compile is reported as a QueryError against the caller's
// original query.
func (s *Session) prepare(ctx context.Context, original, text string) (*sql.Stmt, error) {
	st, err := s.conn().PrepareContext(ctx, text)
	if err != nil {
		return nil, &core.QueryError{Query: original, Msg: "database rejected the query", Cause: err}
	}
	return st, nil
}

// ExecuteStatement runs an update or delete and returns the affected rows.
func (s *Session) ExecuteStatement(ctx context.Context, stmt core.Statement) (int64, error) {
	stmt.Text = trimStatement(stmt.Text)
	text, args, err := query.Prepare(stmt, s.dialect)
	if err != nil {
		return 0, err
	}
	if err := s.Flush(ctx); err != nil {
		return 0, err
	}

	s.logger.Debug("executing statement", slog.String("sql", text), slog.Int("args", len(args)))

	res, err := s.conn().ExecContext(ctx, text, args...)
	if err != nil {
		return 0, core.WrapPersistence("execute", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.WrapPersistence("execute", err)
	}
	return n, nil
}

func trimStatement(text string) string {
	return strings.TrimRight(strings.TrimSpace(text), "; \t\n")
}

// managedKey identifies a record in the identity map by the key it was
// stored under. Records with an incomplete identity are not tracked.
func managedKey(rec *core.Record) (string, bool) {
	key := rec.StoredKey()
	if len(key) == 0 {
		return "", false
	}
	for _, k := range key {
		if k == nil {
			return "", false
		}
	}
	return fmt.Sprintf("%s%v", core.FoldName(rec.Entity().Name), key), true
}

// manage adds rec to the identity map. When another instance with the same
// identity is already managed, rec's values are copied into it and the
// managed instance is returned.
func (s *Session) manage(rec *core.Record) *core.Record {
	key, ok := managedKey(rec)
	if !ok {
		return rec
	}
	existing, ok := s.managed[key]
	if !ok {
		s.managed[key] = rec
		s.order = append(s.order, key)
		return rec
	}
	if existing != rec {
		for _, attr := range rec.Entity().Attributes {
			_ = existing.Load(attr, rec.Slot(attr))
		}
		existing.ClearDirty()
		existing.MarkPersisted()
	}
	return existing
}

// refresh merges freshly loaded values into the managed instance, keeping
// slots that carry unflushed assignments.
func (s *Session) refresh(fresh *core.Record) *core.Record {
	key, ok := managedKey(fresh)
	if !ok {
		return fresh
	}
	existing, ok := s.managed[key]
	if !ok {
		s.managed[key] = fresh
		s.order = append(s.order, key)
		return fresh
	}
	for _, attr := range fresh.Entity().Attributes {
		if !existing.IsDirty(attr) {
			_ = existing.Load(attr, fresh.Slot(attr))
		}
	}
	return existing
}

func (s *Session) forget(rec *core.Record) {
	key, ok := managedKey(rec)
	if !ok {
		return
	}
	delete(s.managed, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// rekey moves rec in the identity map from the key it was tracked under to
// its current stored key, keeping its position in flush order.
func (s *Session) rekey(from string, rec *core.Record) {
	to, ok := managedKey(rec)
	if !ok || to == from || s.managed[from] != rec {
		return
	}
	delete(s.managed, from)
	if _, taken := s.managed[to]; taken {
		s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == to })
	}
	s.managed[to] = rec
	for i, k := range s.order {
		if k == from {
			s.order[i] = to
			break
		}
	}
}
