package session

import (
	"database/sql"

	"github.com/leapstack-labs/leapdata/pkg/core"
)

// columnSlot maps one result column onto an attribute. part is the index
// into a reference attribute's foreign key columns, -1 for plain attributes.
type columnSlot struct {
	attr *core.Attribute
	part int
}

// planColumns matches result columns to attributes of e. Columns that match
// nothing map to a nil attribute and are skipped.
func planColumns(e *core.Entity, columns []string) []columnSlot {
	plan := make([]columnSlot, len(columns))
	for i, col := range columns {
		if a, ok := e.AttributeByColumn(col); ok {
			plan[i] = columnSlot{attr: a, part: -1}
			continue
		}
		key := core.FoldName(col)
	refs:
		for _, a := range e.Attributes {
			if !a.IsReference() {
				continue
			}
			for j, fk := range a.ForeignColumns() {
				if core.FoldName(fk) == key {
					plan[i] = columnSlot{attr: a, part: j}
					break refs
				}
			}
		}
	}
	return plan
}

func (s *Session) scan(rows *sql.Rows, e *core.Entity) ([]*core.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, core.WrapPersistence("query", err)
	}
	plan := planColumns(e, columns)

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	var records []*core.Record
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, core.WrapPersistence("query", err)
		}
		rec, err := loadRecord(e, plan, values)
		if err != nil {
			return nil, err
		}
		records = append(records, s.refresh(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapPersistence("query", err)
	}
	return records, nil
}

func loadRecord(e *core.Entity, plan []columnSlot, values []any) (*core.Record, error) {
	rec := e.NewRecord()
	parts := make(map[*core.Attribute][]any)
	for i, slot := range plan {
		switch {
		case slot.attr == nil:
			continue
		case slot.part < 0:
			if err := rec.Load(slot.attr, values[i]); err != nil {
				return nil, err
			}
		default:
			key, ok := parts[slot.attr]
			if !ok {
				key = make([]any, len(slot.attr.ForeignColumns()))
				parts[slot.attr] = key
			}
			key[slot.part] = values[i]
		}
	}

	for attr, key := range parts {
		if allNil(key) || attr.Target() == nil {
			continue
		}
		ref, err := attr.Target().RecordFromKey(key...)
		if err != nil {
			return nil, &core.QueryError{Msg: "cannot load reference " + e.Name + "." + attr.Name, Cause: err}
		}
		if err := rec.Load(attr, ref); err != nil {
			return nil, err
		}
	}
	rec.MarkPersisted()
	return rec, nil
}

func allNil(vs []any) bool {
	for _, v := range vs {
		if v != nil {
			return false
		}
	}
	return true
}
