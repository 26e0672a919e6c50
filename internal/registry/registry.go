// Package registry provides entity registration and name resolution.
// It maps entity names (and table names) to immutable structural
// descriptors, and resolves declared relations on first use.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapdata/pkg/core"
)

// EntityRegistry maps entity names to their descriptors.
type EntityRegistry struct {
	mu sync.RWMutex

	// byName maps folded entity names to descriptors: "orderline" → *Entity
	byName map[string]*core.Entity

	// byTable maps folded table names to descriptors: "order_lines" → *Entity
	byTable map[string]*core.Entity

	// relations caches resolved relations by "owner\x00refID"
	relations map[string]*core.Relation

	// order keeps declaration order for listings
	order []*core.Entity
}

// NewEntityRegistry creates a new empty registry.
func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{
		byName:    make(map[string]*core.Entity),
		byTable:   make(map[string]*core.Entity),
		relations: make(map[string]*core.Relation),
	}
}

// Build registers every entity declaration and links references.
// meta optionally carries introspected table metadata keyed by table name;
// it fills in attribute kinds, identity and attribute lists left undeclared.
func Build(defs []core.EntityConfig, meta map[string]*core.TableMetadata) (*EntityRegistry, error) {
	r := NewEntityRegistry()
	for _, def := range defs {
		if _, err := r.Register(def, meta[TableName(def)]); err != nil {
			return nil, err
		}
	}
	if err := r.Link(); err != nil {
		return nil, err
	}
	return r, nil
}

// TableName returns the declared table of def, defaulting to the lowercased
// entity name.
func TableName(def core.EntityConfig) string {
	if def.Table != "" {
		return def.Table
	}
	return strings.ToLower(def.Name)
}

// Register builds a descriptor from def and adds it to the registry.
// References are left unlinked until Link is called.
func (r *EntityRegistry) Register(def core.EntityConfig, meta *core.TableMetadata) (*core.Entity, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("entity declaration without a name")
	}
	e := &core.Entity{
		Name:      def.Name,
		Table:     TableName(def),
		Relations: make(map[string]core.RelationDef, len(def.Relations)),
	}

	attrs := def.Attributes
	if len(attrs) == 0 && meta != nil {
		// Nothing declared: take the table's columns as attributes
		for _, col := range meta.Columns {
			attrs = append(attrs, core.AttributeConfig{Name: col.Name, Identity: col.PrimaryKey})
		}
	}

	seen := make(map[string]struct{}, len(attrs))
	for _, ac := range attrs {
		if ac.Name == "" {
			return nil, fmt.Errorf("entity %s: attribute without a name", def.Name)
		}
		key := core.FoldName(ac.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("entity %s: duplicate attribute %q", def.Name, ac.Name)
		}
		seen[key] = struct{}{}
		e.Attributes = append(e.Attributes, buildAttribute(ac, meta))
	}

	if len(e.Identity()) == 0 {
		inferIdentity(e, meta)
	}
	if len(e.Identity()) == 0 {
		return nil, fmt.Errorf("entity %s declares no identity attribute", def.Name)
	}

	for _, rel := range def.Relations {
		if rel.ID == "" || rel.Target == "" {
			return nil, fmt.Errorf("entity %s: relation needs an id and a target", def.Name)
		}
		e.Relations[core.FoldName(rel.ID)] = rel
	}
	e.BuildAccessors()

	r.mu.Lock()
	defer r.mu.Unlock()
	nameKey := core.FoldName(e.Name)
	if _, dup := r.byName[nameKey]; dup {
		return nil, fmt.Errorf("entity %s registered twice", e.Name)
	}
	r.byName[nameKey] = e
	r.byTable[core.FoldName(e.Table)] = e
	r.order = append(r.order, e)
	return e, nil
}

func buildAttribute(ac core.AttributeConfig, meta *core.TableMetadata) *core.Attribute {
	a := &core.Attribute{
		Name:      ac.Name,
		Column:    ac.Column,
		Identity:  ac.Identity,
		Generated: ac.Generated,
		Ref:       ac.Ref,
	}
	if a.IsReference() {
		a.Kind = core.KindReference
		return a
	}
	if a.Column == "" {
		a.Column = ac.Name
	}
	a.Kind = core.ParseKind(ac.Type)
	if ac.Type == "" && meta != nil {
		if col, ok := meta.Column(a.Column); ok {
			a.Kind = core.ParseKind(col.Type)
		}
	}
	return a
}

// inferIdentity marks primary key columns, or an attribute named "id", as
// the identity when none was declared.
func inferIdentity(e *core.Entity, meta *core.TableMetadata) {
	if meta != nil {
		for _, a := range e.Attributes {
			if col, ok := meta.Column(a.Column); ok && col.PrimaryKey {
				a.Identity = true
			}
		}
		if len(e.Identity()) > 0 {
			return
		}
	}
	if a, ok := e.Attribute("id"); ok {
		a.Identity = true
	}
}

// Link resolves the Ref of every reference attribute and assigns default
// foreign key columns.
func (r *EntityRegistry) Link() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.order {
		for _, a := range e.Attributes {
			if !a.IsReference() {
				continue
			}
			target, ok := r.byName[core.FoldName(a.Ref)]
			if !ok {
				return &core.ResolutionError{What: "entity", Name: a.Ref, Owner: e.Name}
			}
			a.Link(target)
			if a.Column == "" {
				ids := target.Identity()
				if len(ids) == 1 {
					a.Column = a.Name + "_" + ids[0].Column
				} else {
					a.Column = a.Name
				}
			}
		}
	}
	return nil
}

// Entity resolves an entity by name, falling back to its table name.
func (r *EntityRegistry) Entity(name string) (*core.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := core.FoldName(name)
	if e, ok := r.byName[key]; ok {
		return e, nil
	}
	if e, ok := r.byTable[key]; ok {
		return e, nil
	}
	// Qualified names: try the last component
	if parts := strings.Split(name, "."); len(parts) > 1 {
		last := core.FoldName(parts[len(parts)-1])
		if e, ok := r.byName[last]; ok {
			return e, nil
		}
		if e, ok := r.byTable[last]; ok {
			return e, nil
		}
	}
	return nil, &core.ResolutionError{What: "entity", Name: name}
}

// Entities returns all registered entities in declaration order.
func (r *EntityRegistry) Entities() []*core.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Entity, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered entities.
func (r *EntityRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Relation resolves the relation refID declared on owner. The result is
// cached; relation metadata never changes once resolved.
func (r *EntityRegistry) Relation(owner *core.Entity, refID string) (*core.Relation, error) {
	cacheKey := core.FoldName(owner.Name) + "\x00" + core.FoldName(refID)

	r.mu.RLock()
	rel, ok := r.relations[cacheKey]
	r.mu.RUnlock()
	if ok {
		return rel, nil
	}

	def, ok := owner.Relations[core.FoldName(refID)]
	if !ok {
		return nil, &core.ResolutionError{What: "relation", Name: refID, Owner: owner.Name}
	}
	rel, err := r.resolveRelation(owner, def)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.relations[cacheKey]; ok {
		return cached, nil
	}
	r.relations[cacheKey] = rel
	return rel, nil
}

func (r *EntityRegistry) resolveRelation(owner *core.Entity, def core.RelationDef) (*core.Relation, error) {
	target, err := r.Entity(def.Target)
	if err != nil {
		return nil, err
	}
	rel := &core.Relation{ID: def.ID, Owner: owner, Target: target}

	if def.Association == "" {
		rel.OwnerAttr, err = referenceTo(target, def.OwnerAttribute, owner)
		if err != nil {
			return nil, err
		}
		return rel, nil
	}

	assoc, err := r.Entity(def.Association)
	if err != nil {
		return nil, err
	}
	rel.Association = assoc
	if rel.OwnerAttr, err = referenceTo(assoc, def.OwnerAttribute, owner); err != nil {
		return nil, err
	}
	if rel.TargetAttr, err = referenceTo(assoc, def.TargetAttribute, target); err != nil {
		return nil, err
	}
	return rel, nil
}

// referenceTo finds the attribute of on that references want. An empty name
// selects the first such reference.
func referenceTo(on *core.Entity, name string, want *core.Entity) (*core.Attribute, error) {
	if name == "" {
		for _, a := range on.Attributes {
			if a.IsReference() && a.Target() == want {
				return a, nil
			}
		}
		return nil, &core.ResolutionError{What: "attribute", Name: "reference to " + want.Name, Owner: on.Name}
	}
	a, ok := on.Attribute(name)
	if !ok || !a.IsReference() {
		return nil, &core.ResolutionError{What: "attribute", Name: name, Owner: on.Name}
	}
	if a.Target() != want {
		return nil, fmt.Errorf("attribute %s.%s references %s, not %s", on.Name, a.Name, a.Ref, want.Name)
	}
	return a, nil
}
