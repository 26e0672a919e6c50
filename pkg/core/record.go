package core

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Record is one instance of an entity. Values are stored by attribute
// position and reached by name through the entity's accessor table.
type Record struct {
	entity    *Entity
	values    []any
	dirty     []bool
	persisted bool
	stored    []any // column key as of the last load or write
}

// Entity returns the record's entity descriptor.
func (r *Record) Entity() *Entity {
	return r.entity
}

// Get returns the value of the named attribute, nil when no accessor exists.
func (r *Record) Get(name string) any {
	acc, ok := r.entity.Accessor(name)
	if !ok || acc.Get == nil {
		return nil
	}
	return acc.Get(r)
}

// Set assigns the named attribute. A name without an accessor is ignored.
func (r *Record) Set(name string, v any) error {
	acc, ok := r.entity.Accessor(name)
	if !ok || acc.Set == nil {
		return nil
	}
	return acc.Set(r, v)
}

// Slot returns the raw value stored for attr.
func (r *Record) Slot(attr *Attribute) any {
	return r.values[attr.Position]
}

// Load stores a value read from the database without marking it dirty.
func (r *Record) Load(attr *Attribute, v any) error {
	return r.assign(attr, v, false)
}

func (r *Record) assign(attr *Attribute, v any, markDirty bool) error {
	if boxed, ok := v.(Value); ok {
		v = boxed.Raw
	}
	var (
		out any
		err error
	)
	if attr.IsReference() {
		out, err = r.reference(attr, v)
	} else {
		out, err = Coerce(v, attr.Kind)
	}
	if err != nil {
		return &QueryError{Msg: fmt.Sprintf("cannot assign %s.%s", r.entity.Name, attr.Name), Cause: err}
	}
	r.values[attr.Position] = out
	if markDirty {
		r.dirty[attr.Position] = true
	}
	return nil
}

func (r *Record) reference(attr *Attribute, v any) (any, error) {
	target := attr.Target()
	switch ref := v.(type) {
	case nil:
		return nil, nil
	case *Record:
		if target != nil && ref.entity != target {
			return nil, fmt.Errorf("expected %s record, got %s", target.Name, ref.entity.Name)
		}
		return ref, nil
	case map[string]any:
		if target == nil {
			return nil, fmt.Errorf("reference %s is not linked", attr.Name)
		}
		return target.RecordFrom(ref)
	default:
		if target == nil {
			return nil, fmt.Errorf("reference %s is not linked", attr.Name)
		}
		return target.RecordFromKey(ref)
	}
}

// Dirty reports whether any attribute was assigned since the last flush.
func (r *Record) Dirty() bool {
	for _, d := range r.dirty {
		if d {
			return true
		}
	}
	return false
}

// IsDirty reports whether attr was assigned since the last flush.
func (r *Record) IsDirty(attr *Attribute) bool {
	return r.dirty[attr.Position]
}

// ClearDirty resets the dirty flags after a flush.
func (r *Record) ClearDirty() {
	for i := range r.dirty {
		r.dirty[i] = false
	}
}

// Persisted reports whether the record is known to exist in the database.
func (r *Record) Persisted() bool {
	return r.persisted
}

// MarkPersisted flags the record as stored under its current identity.
func (r *Record) MarkPersisted() {
	r.persisted = true
	r.stored = r.ColumnKey()
}

// StoredKey returns the identity column values the record was last stored
// under. A record that was never stored reports its current column key.
func (r *Record) StoredKey() []any {
	if r.stored == nil {
		return r.ColumnKey()
	}
	return r.stored
}

// KeyChanged reports whether a stored record's identity was reassigned since
// it was last loaded or written.
func (r *Record) KeyChanged() bool {
	if !r.persisted || r.stored == nil {
		return false
	}
	return !reflect.DeepEqual(r.stored, r.ColumnKey())
}

// Key returns the identity values in declared order.
func (r *Record) Key() []any {
	ids := r.entity.Identity()
	key := make([]any, len(ids))
	for i, id := range ids {
		key[i] = r.values[id.Position]
	}
	return key
}

// ColumnValues flattens an attribute into its storage column values.
// Reference attributes yield the referenced record's identity values.
func (r *Record) ColumnValues(attr *Attribute) []any {
	v := r.values[attr.Position]
	if !attr.IsReference() {
		return []any{v}
	}
	cols := attr.ForeignColumns()
	ref, ok := v.(*Record)
	if !ok || ref == nil {
		return make([]any, len(cols))
	}
	return ref.ColumnKey()
}

// ColumnKey returns the identity as storage column values. Reference
// identity attributes are flattened to the referenced record's key.
func (r *Record) ColumnKey() []any {
	var key []any
	for _, id := range r.entity.Identity() {
		key = append(key, r.ColumnValues(id)...)
	}
	return key
}

// Values returns the record as a name/value map. References are rendered as
// the referenced identity (a scalar for single keys, a map otherwise).
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for _, attr := range r.entity.Attributes {
		v := r.values[attr.Position]
		if ref, ok := v.(*Record); ok && ref != nil {
			v = ref.keyValue()
		}
		out[attr.Name] = v
	}
	return out
}

func (r *Record) keyValue() any {
	ids := r.entity.Identity()
	if len(ids) == 1 {
		return r.values[ids[0].Position]
	}
	m := make(map[string]any, len(ids))
	for _, id := range ids {
		m[id.Name] = r.values[id.Position]
	}
	return m
}

// MarshalJSON encodes the record as a JSON object.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Values())
}

func (r *Record) String() string {
	return fmt.Sprintf("%s%v", r.entity.Name, r.Values())
}
