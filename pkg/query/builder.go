package query

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/dialect"
)

// ansi quotes identifiers that collide with common reserved words. The
// rendered text is shared by all target dialects, so only double quotes are used.
var ansi = dialect.NewDialect("ansi").WithReservedWords(
	"user", "order", "group", "table", "select", "from", "where", "index",
	"key", "value", "limit", "offset", "join", "on", "and", "or", "not",
).Build()

func ident(name string) string {
	return ansi.QuoteIdentifierIfNeeded(name)
}

// ParamName returns the generated name of the n-th synthesized parameter.
func ParamName(n int) string {
	return fmt.Sprintf("p%d", n)
}

// KeyColumn is one storage column of an entity's identity.
type KeyColumn struct {
	Name   string // attribute name, or the column for flattened foreign keys
	Column string
	Kind   core.Kind
}

// KeyColumns flattens the identity attributes of e into storage columns in
// declared order.
func KeyColumns(e *core.Entity) []KeyColumn {
	var cols []KeyColumn
	for _, id := range e.Identity() {
		if !id.IsReference() || id.Target() == nil {
			cols = append(cols, KeyColumn{Name: id.Name, Column: id.Column, Kind: id.Kind})
			continue
		}
		tids := id.Target().Identity()
		fks := id.ForeignColumns()
		for i, col := range fks {
			kind := core.KindAny
			if i < len(tids) {
				kind = tids[i].Kind
			}
			name := col
			if len(fks) == 1 {
				name = id.Name
			}
			cols = append(cols, KeyColumn{Name: name, Column: col, Kind: kind})
		}
	}
	return cols
}

// KeysFromMap picks the identity values of e out of fields, in declared order.
func KeysFromMap(e *core.Entity, fields map[string]any) ([]core.Value, error) {
	folded := make(map[string]any, len(fields))
	for k, v := range fields {
		folded[core.FoldName(k)] = v
	}
	var keys []core.Value
	for _, kc := range KeyColumns(e) {
		v, ok := folded[core.FoldName(kc.Name)]
		if !ok {
			v, ok = folded[core.FoldName(kc.Column)]
		}
		if !ok {
			return nil, core.NewQueryError("", "missing identity value %q for entity %s", kc.Name, e.Name)
		}
		keys = append(keys, core.V(v))
	}
	return keys, nil
}

// SelectAll selects every record of e ordered by identity.
func SelectAll(e *core.Entity) core.Statement {
	text := fmt.Sprintf("SELECT e.* FROM %s e", ident(e.Table))
	if order := orderBy("e", KeyColumns(e)); order != "" {
		text += " " + order
	}
	return core.Statement{Text: text, Entity: e}
}

func orderBy(alias string, cols []KeyColumn) string {
	if len(cols) == 0 {
		return ""
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = alias + "." + ident(c.Column)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// conditions accumulates AND-joined equality conditions with sequentially
// numbered parameters.
type conditions struct {
	query  string
	parts  []string
	params []core.Value
}

func (c *conditions) add(column string, kind core.Kind, v core.Value) error {
	n := len(c.params)
	coerced, err := v.As(kind)
	if err != nil {
		return &core.QueryError{Query: c.query, Msg: fmt.Sprintf("cannot bind %s", column), Cause: err}
	}
	c.parts = append(c.parts, fmt.Sprintf("%s = :%s", column, ParamName(n)))
	c.params = append(c.params, core.Named(ParamName(n), coerced))
	return nil
}

func (c *conditions) addKey(prefix string, cols []KeyColumn, fks []string, key []core.Value, what string) error {
	if len(key) != len(cols) {
		return core.NewQueryError(c.query, "%s: expected %d identity values, got %d", what, len(cols), len(key))
	}
	for i, kc := range cols {
		col := kc.Column
		if fks != nil {
			if i >= len(fks) {
				return core.NewQueryError(c.query, "%s: foreign key has %d columns, identity has %d", what, len(fks), len(cols))
			}
			col = fks[i]
		}
		if err := c.add(prefix+ident(col), kc.Kind, key[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *conditions) where() string {
	return " WHERE " + strings.Join(c.parts, " AND ")
}

// IdentityFilter selects the records of e whose identity equals key. Extra
// named values add equality conditions on the attribute they name.
func IdentityFilter(e *core.Entity, key []core.Value, extra ...core.Value) (core.Statement, error) {
	c := &conditions{query: e.Name}
	if err := c.addKey("e.", KeyColumns(e), nil, key, e.Name); err != nil {
		return core.Statement{}, err
	}
	for _, x := range extra {
		if x.Name == "" {
			return core.Statement{}, core.NewQueryError(e.Name, "extra condition value %v has no attribute name", x.Raw)
		}
		col, kind := x.Name, core.KindAny
		if a, ok := e.Attribute(x.Name); ok && !a.IsReference() {
			col, kind = a.Column, a.Kind
		}
		if err := c.add("e."+ident(col), kind, core.V(x.Raw)); err != nil {
			return core.Statement{}, err
		}
	}
	text := fmt.Sprintf("SELECT e.* FROM %s e%s", ident(e.Table), c.where())
	return core.Statement{Text: text, Params: c.params, Entity: e}, nil
}

// IdentityDelete deletes the records of e whose identity equals key.
func IdentityDelete(e *core.Entity, key []core.Value) (core.Statement, error) {
	c := &conditions{query: e.Name}
	if err := c.addKey("", KeyColumns(e), nil, key, e.Name); err != nil {
		return core.Statement{}, err
	}
	text := fmt.Sprintf("DELETE FROM %s%s", ident(e.Table), c.where())
	return core.Statement{Text: text, Params: c.params, Entity: e}, nil
}

// RelationSelect selects the target records of rel owned by the record
// identified by ownerKey.
func RelationSelect(rel *core.Relation, ownerKey []core.Value) (core.Statement, error) {
	c := &conditions{query: rel.ID}
	ownerCols := KeyColumns(rel.Owner)
	targetCols := KeyColumns(rel.Target)
	from := fmt.Sprintf("SELECT t.* FROM %s t", ident(rel.Target.Table))

	if rel.IsAssociative() {
		tfks := rel.TargetAttr.ForeignColumns()
		if len(tfks) != len(targetCols) {
			return core.Statement{}, core.NewQueryError(rel.ID, "association key %s does not match %s identity", rel.TargetAttr.Name, rel.Target.Name)
		}
		on := make([]string, len(tfks))
		for i, fk := range tfks {
			on[i] = fmt.Sprintf("a.%s = t.%s", ident(fk), ident(targetCols[i].Column))
		}
		from += fmt.Sprintf(" JOIN %s a ON %s", ident(rel.Association.Table), strings.Join(on, " AND "))
		if err := c.addKey("a.", ownerCols, rel.OwnerAttr.ForeignColumns(), ownerKey, rel.ID); err != nil {
			return core.Statement{}, err
		}
	} else {
		if err := c.addKey("t.", ownerCols, rel.OwnerAttr.ForeignColumns(), ownerKey, rel.ID); err != nil {
			return core.Statement{}, err
		}
	}

	text := from + c.where()
	if order := orderBy("t", targetCols); order != "" {
		text += " " + order
	}
	return core.Statement{Text: text, Params: c.params, Entity: rel.Target}, nil
}

// RelationDelete removes the link between an owner and a target. For an
// associative relation the association rows matching both keys are deleted;
// for a direct relation the target rows matching targetKey are deleted.
func RelationDelete(rel *core.Relation, ownerKey, targetKey []core.Value) (core.Statement, error) {
	c := &conditions{query: rel.ID}
	if !rel.IsAssociative() {
		if err := c.addKey("", KeyColumns(rel.Target), nil, targetKey, rel.ID); err != nil {
			return core.Statement{}, err
		}
		text := fmt.Sprintf("DELETE FROM %s%s", ident(rel.Target.Table), c.where())
		return core.Statement{Text: text, Params: c.params, Entity: rel.Target}, nil
	}

	if err := c.addKey("", KeyColumns(rel.Owner), rel.OwnerAttr.ForeignColumns(), ownerKey, rel.ID); err != nil {
		return core.Statement{}, err
	}
	if err := c.addKey("", KeyColumns(rel.Target), rel.TargetAttr.ForeignColumns(), targetKey, rel.ID); err != nil {
		return core.Statement{}, err
	}
	text := fmt.Sprintf("DELETE FROM %s%s", ident(rel.Association.Table), c.where())
	return core.Statement{Text: text, Params: c.params, Entity: rel.Association}, nil
}
