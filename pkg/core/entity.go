package core

import (
	"fmt"

	"golang.org/x/text/cases"
)

// Attribute describes one persistent attribute of an entity.
type Attribute struct {
	Name      string
	Column    string
	Kind      Kind
	Identity  bool
	Generated bool // identity value is assigned on persist when absent
	Ref       string
	Position  int

	target *Entity
}

// IsReference reports whether the attribute points at another entity.
func (a *Attribute) IsReference() bool {
	return a.Ref != ""
}

// Target returns the referenced entity of a reference attribute once the
// registry has linked it.
func (a *Attribute) Target() *Entity {
	return a.target
}

// Link sets the referenced entity. Called by the registry while building.
func (a *Attribute) Link(target *Entity) {
	a.target = target
}

// ForeignColumns returns the storage columns of a reference attribute, one
// per identity attribute of the referenced entity. Plain attributes have
// their own column only.
func (a *Attribute) ForeignColumns() []string {
	if a.target == nil {
		return []string{a.Column}
	}
	ids := a.target.Identity()
	if len(ids) == 1 {
		return []string{a.Column}
	}
	cols := make([]string, len(ids))
	for i, id := range ids {
		cols[i] = a.Column + "_" + id.Column
	}
	return cols
}

// Accessor is a getter/setter pair looked up by attribute name.
type Accessor struct {
	Get func(r *Record) any
	Set func(r *Record, v any) error
}

// Entity is the structural descriptor of a bound entity type.
type Entity struct {
	Name       string
	Table      string
	Attributes []*Attribute
	Relations  map[string]RelationDef

	accessors map[string]Accessor
}

// FoldName normalizes an attribute or entity name for case-insensitive lookup.
func FoldName(name string) string {
	return cases.Fold().String(name)
}

// BuildAccessors populates the accessor table from the attribute list.
// Entries added with DefineAccessor are preserved.
func (e *Entity) BuildAccessors() {
	if e.accessors == nil {
		e.accessors = make(map[string]Accessor, len(e.Attributes))
	}
	for i, attr := range e.Attributes {
		attr.Position = i
		a := attr
		key := FoldName(a.Name)
		if _, exists := e.accessors[key]; exists {
			continue
		}
		e.accessors[key] = Accessor{
			Get: func(r *Record) any { return r.values[a.Position] },
			Set: func(r *Record, v any) error { return r.assign(a, v, true) },
		}
	}
}

// DefineAccessor registers a custom accessor, e.g. a derived field.
func (e *Entity) DefineAccessor(name string, acc Accessor) {
	if e.accessors == nil {
		e.accessors = make(map[string]Accessor)
	}
	e.accessors[FoldName(name)] = acc
}

// Accessor looks up the accessor pair for name.
func (e *Entity) Accessor(name string) (Accessor, bool) {
	acc, ok := e.accessors[FoldName(name)]
	return acc, ok
}

// Attribute looks up an attribute by name, case-insensitively.
func (e *Entity) Attribute(name string) (*Attribute, bool) {
	key := FoldName(name)
	for _, a := range e.Attributes {
		if FoldName(a.Name) == key {
			return a, true
		}
	}
	return nil, false
}

// AttributeByColumn looks up a plain attribute by its storage column.
func (e *Entity) AttributeByColumn(column string) (*Attribute, bool) {
	key := FoldName(column)
	for _, a := range e.Attributes {
		if !a.IsReference() && FoldName(a.Column) == key {
			return a, true
		}
	}
	return nil, false
}

// Identity returns the identity attributes in declared order.
func (e *Entity) Identity() []*Attribute {
	var ids []*Attribute
	for _, a := range e.Attributes {
		if a.Identity {
			ids = append(ids, a)
		}
	}
	return ids
}

// IdentityColumns returns the storage columns of the identity attributes.
func (e *Entity) IdentityColumns() []string {
	var cols []string
	for _, a := range e.Identity() {
		cols = append(cols, a.ForeignColumns()...)
	}
	return cols
}

// NewRecord returns a blank, unpersisted record.
func (e *Entity) NewRecord() *Record {
	return &Record{
		entity: e,
		values: make([]any, len(e.Attributes)),
		dirty:  make([]bool, len(e.Attributes)),
	}
}

// RecordFrom builds a new record from name/value pairs, coercing each value
// to the declared attribute kind. Names without an accessor are ignored.
func (e *Entity) RecordFrom(fields map[string]any) (*Record, error) {
	rec := e.NewRecord()
	for name, v := range fields {
		if err := rec.Set(name, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// RecordFromKey builds a stub record that refers to an existing row by its
// identity values.
func (e *Entity) RecordFromKey(key ...any) (*Record, error) {
	ids := e.Identity()
	if len(key) != len(ids) {
		return nil, fmt.Errorf("entity %s has %d identity attributes, got %d values", e.Name, len(ids), len(key))
	}
	rec := e.NewRecord()
	for i, id := range ids {
		if err := rec.assign(id, key[i], false); err != nil {
			return nil, err
		}
	}
	rec.MarkPersisted()
	return rec, nil
}

func (e *Entity) String() string {
	return e.Name
}

// RelationDef is a relation as declared in the entity schema.
type RelationDef struct {
	ID              string `koanf:"id"`
	Target          string `koanf:"target"`
	Association     string `koanf:"association"`
	OwnerAttribute  string `koanf:"owner_attribute"`
	TargetAttribute string `koanf:"target_attribute"`
}

// Relation is resolved relation metadata.
//
// For a direct relation OwnerAttr lives on Target and references Owner.
// For an associative relation both OwnerAttr and TargetAttr live on
// Association.
type Relation struct {
	ID          string
	Owner       *Entity
	Target      *Entity
	Association *Entity
	OwnerAttr   *Attribute
	TargetAttr  *Attribute
}

// IsAssociative reports whether the relation is mediated by an association entity.
func (r *Relation) IsAssociative() bool {
	return r.Association != nil
}
