package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/query"
)

// column is one storage column of a record and its value.
type column struct {
	name     string
	value    any
	identity bool
}

// columns flattens rec into storage columns in attribute order. Attributes
// for which skip returns true are left out.
func columns(rec *core.Record, skip func(*core.Attribute) bool) []column {
	var cols []column
	for _, attr := range rec.Entity().Attributes {
		if skip != nil && skip(attr) {
			continue
		}
		names := attr.ForeignColumns()
		vals := rec.ColumnValues(attr)
		for i, name := range names {
			var v any
			if i < len(vals) {
				v = vals[i]
			}
			cols = append(cols, column{name: name, value: v, identity: attr.Identity})
		}
	}
	return cols
}

func (s *Session) quote(name string) string {
	return s.dialect.QuoteIdentifierIfNeeded(name)
}

func (s *Session) placeholders(from, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s.dialect.FormatPlaceholder(from + i)
	}
	return out
}

// generatedIdentity returns the single generated identity attribute of e
// when rec has no value for it yet.
func generatedIdentity(rec *core.Record) *core.Attribute {
	ids := rec.Entity().Identity()
	if len(ids) != 1 || !ids[0].Generated || rec.Slot(ids[0]) != nil {
		return nil
	}
	return ids[0]
}

// Persist inserts rec as a new row. A missing generated string identity is
// assigned a random UUID; a missing generated numeric identity is assigned
// by the database and read back.
func (s *Session) Persist(ctx context.Context, rec *core.Record) error {
	e := rec.Entity()
	gen := generatedIdentity(rec)
	if gen != nil && gen.Kind == core.KindString {
		if err := rec.Load(gen, uuid.NewString()); err != nil {
			return err
		}
		gen = nil
	}

	cols := columns(rec, func(a *core.Attribute) bool { return a == gen })
	names := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = s.quote(c.name)
		args[i] = c.value
	}

	var text string
	if len(cols) == 0 {
		text = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", s.quote(e.Table))
	} else {
		text = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			s.quote(e.Table), strings.Join(names, ", "), strings.Join(s.placeholders(1, len(cols)), ", "))
	}

	s.logger.Debug("persisting record", slog.String("entity", e.Name), slog.String("sql", text))

	switch {
	case gen == nil:
		if _, err := s.conn().ExecContext(ctx, text, args...); err != nil {
			return core.WrapPersistence("persist", err)
		}
	case s.dialect.Returning:
		var id any
		text += " RETURNING " + s.quote(gen.Column)
		if err := s.conn().QueryRowContext(ctx, text, args...).Scan(&id); err != nil {
			return core.WrapPersistence("persist", err)
		}
		if err := rec.Load(gen, id); err != nil {
			return err
		}
	default:
		res, err := s.conn().ExecContext(ctx, text, args...)
		if err != nil {
			return core.WrapPersistence("persist", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return core.WrapPersistence("persist", err)
		}
		if err := rec.Load(gen, id); err != nil {
			return err
		}
	}

	rec.MarkPersisted()
	rec.ClearDirty()
	s.manage(rec)
	return nil
}

// Merge upserts rec and returns the managed instance carrying its values.
// A record without its generated identity is persisted instead.
func (s *Session) Merge(ctx context.Context, rec *core.Record) (*core.Record, error) {
	if generatedIdentity(rec) != nil {
		if err := s.Persist(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	// A reassigned identity renames the stored row first so the upsert
	// lands on it instead of inserting a second row.
	if rec.KeyChanged() {
		if err := s.update(ctx, rec); err != nil {
			return nil, err
		}
	}

	e := rec.Entity()
	cols := columns(rec, nil)
	names := make([]string, len(cols))
	args := make([]any, len(cols))
	var keys, updates []string
	for i, c := range cols {
		names[i] = s.quote(c.name)
		args[i] = c.value
		if c.identity {
			keys = append(keys, names[i])
		} else {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", names[i], names[i]))
		}
	}

	text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		s.quote(e.Table), strings.Join(names, ", "),
		strings.Join(s.placeholders(1, len(cols)), ", "), strings.Join(keys, ", "))
	if len(updates) == 0 {
		text += "DO NOTHING"
	} else {
		text += "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	s.logger.Debug("merging record", slog.String("entity", e.Name), slog.String("sql", text))

	if _, err := s.conn().ExecContext(ctx, text, args...); err != nil {
		return nil, core.WrapPersistence("merge", err)
	}
	rec.MarkPersisted()
	rec.ClearDirty()
	return s.manage(rec), nil
}

// Remove deletes the row identified by rec and detaches it.
func (s *Session) Remove(ctx context.Context, rec *core.Record) error {
	e := rec.Entity()
	stmt, err := query.IdentityDelete(e, core.Values(rec.StoredKey()...))
	if err != nil {
		return err
	}
	text, args, err := query.Prepare(stmt, s.dialect)
	if err != nil {
		return err
	}

	s.logger.Debug("removing record", slog.String("entity", e.Name), slog.String("sql", text))

	if _, err := s.conn().ExecContext(ctx, text, args...); err != nil {
		return core.WrapPersistence("remove", err)
	}
	s.forget(rec)
	return nil
}

// Flush writes the assigned slots of every dirty managed record.
func (s *Session) Flush(ctx context.Context) error {
	for _, key := range slices.Clone(s.order) {
		rec := s.managed[key]
		if rec == nil || !rec.Dirty() {
			continue
		}
		if err := s.update(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) update(ctx context.Context, rec *core.Record) error {
	e := rec.Entity()
	set := columns(rec, func(a *core.Attribute) bool { return !rec.IsDirty(a) })
	if len(set) == 0 {
		rec.ClearDirty()
		return nil
	}
	where := columns(rec, func(a *core.Attribute) bool { return !a.Identity })
	for i, v := range rec.StoredKey() {
		if i < len(where) {
			where[i].value = v
		}
	}

	assignments := make([]string, len(set))
	args := make([]any, 0, len(set)+len(where))
	for i, c := range set {
		assignments[i] = fmt.Sprintf("%s = %s", s.quote(c.name), s.dialect.FormatPlaceholder(i+1))
		args = append(args, c.value)
	}
	conds := make([]string, len(where))
	for i, c := range where {
		conds[i] = fmt.Sprintf("%s = %s", s.quote(c.name), s.dialect.FormatPlaceholder(len(set)+i+1))
		args = append(args, c.value)
	}

	text := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		s.quote(e.Table), strings.Join(assignments, ", "), strings.Join(conds, " AND "))

	s.logger.Debug("flushing record", slog.String("entity", e.Name), slog.String("sql", text))

	if _, err := s.conn().ExecContext(ctx, text, args...); err != nil {
		return core.WrapPersistence("flush", err)
	}
	from, tracked := managedKey(rec)
	rec.MarkPersisted()
	rec.ClearDirty()
	if tracked {
		s.rekey(from, rec)
	}
	return nil
}

// Ensure Session implements core.Session
var _ core.Session = (*Session)(nil)
