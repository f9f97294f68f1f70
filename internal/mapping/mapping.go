// Package mapping holds the object-relational mapping metadata consumed by
// query compilation: which table an entity lives in, which columns hold each
// field, and which foreign keys implement relations.
//
// Mappings are loaded from CUE files (see LoadDir) or built in code, and are
// read-only once a Repository is returned.
package mapping

import (
	"sort"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// RelationKind classifies a field.
type RelationKind int

const (
	// Basic fields map directly to one or more columns.
	Basic RelationKind = iota
	// ToOne fields reference a single related entity.
	ToOne
	// ToMany fields reference a collection of related entities.
	ToMany
)

func (k RelationKind) String() string {
	switch k {
	case ToOne:
		return "to-one"
	case ToMany:
		return "to-many"
	}
	return "basic"
}

// EagerMode is the preferred eager fetch strategy for a relation field.
type EagerMode int

const (
	// EagerNone loads the relation lazily (not at all, for this module).
	EagerNone EagerMode = iota
	// EagerJoin loads the relation in the same statement through a join.
	EagerJoin
	// EagerParallel loads the relation with a sibling statement that shares
	// the owner statement's joins and conditions.
	EagerParallel
)

func (m EagerMode) String() string {
	switch m {
	case EagerJoin:
		return "join"
	case EagerParallel:
		return "parallel"
	}
	return "none"
}

// ParseEagerMode parses the mapping-file spelling of an eager mode.
func ParseEagerMode(s string) (EagerMode, bool) {
	switch s {
	case "", "none", "lazy":
		return EagerNone, true
	case "join", "inner", "outer":
		return EagerJoin, true
	case "parallel":
		return EagerParallel, true
	}
	return EagerNone, false
}

// ClassMapping maps an entity type to a table.
type ClassMapping struct {
	Name       string
	Table      *schema.Table
	PrimaryKey []*schema.Column
	Fields     []*FieldMapping

	Superclass *ClassMapping
	Subclasses []*ClassMapping

	// Discriminator, when set, holds DiscriminatorValue for rows of exactly
	// this class. Used for single-table inheritance.
	Discriminator      *schema.Column
	DiscriminatorValue any
}

// DescribedType returns the entity type name.
func (m *ClassMapping) DescribedType() string { return m.Name }

func (m *ClassMapping) String() string { return m.Name }

// Field returns the named field, searching superclasses. Returns nil when
// the field does not exist.
func (m *ClassMapping) Field(name string) *FieldMapping {
	for c := m; c != nil; c = c.Superclass {
		for _, f := range c.Fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// AllFields returns declared fields of the class and its superclasses,
// superclass fields first. Fields redeclared by a subclass shadow the
// inherited ones.
func (m *ClassMapping) AllFields() []*FieldMapping {
	var chain []*ClassMapping
	for c := m; c != nil; c = c.Superclass {
		chain = append(chain, c)
	}
	seen := make(map[string]int)
	var out []*FieldMapping
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].Fields {
			if pos, ok := seen[f.Name]; ok {
				out[pos] = f
				continue
			}
			seen[f.Name] = len(out)
			out = append(out, f)
		}
	}
	return out
}

// IsAssignableFrom reports whether other is m or one of its subclasses.
func (m *ClassMapping) IsAssignableFrom(other *ClassMapping) bool {
	for c := other; c != nil; c = c.Superclass {
		if c == m {
			return true
		}
	}
	return false
}

// SharesTable reports whether the subclass lives in the same table as m
// (single-table inheritance) rather than its own (table per class).
func (m *ClassMapping) SharesTable(sub *ClassMapping) bool {
	return sub.Table == m.Table
}

// ConcreteMappings returns m followed by all transitive subclasses.
func (m *ClassMapping) ConcreteMappings() []*ClassMapping {
	out := []*ClassMapping{m}
	for _, sub := range m.Subclasses {
		out = append(out, sub.ConcreteMappings()...)
	}
	return out
}

// DiscriminatorValues returns the discriminator values of m and its
// subclasses, for an IN condition restricting a single-table query.
func (m *ClassMapping) DiscriminatorValues(subs bool) []any {
	var vals []any
	if m.DiscriminatorValue != nil {
		vals = append(vals, m.DiscriminatorValue)
	}
	if subs {
		for _, sub := range m.Subclasses {
			if sub.Table == m.Table {
				vals = append(vals, sub.DiscriminatorValues(true)...)
			}
		}
	}
	return vals
}

// FieldMapping maps one persistent field.
type FieldMapping struct {
	Name  string
	Owner *ClassMapping
	Type  schema.JavaType

	// Columns hold the field value. For a ToOne field these are the foreign
	// key columns in the owner table; ToMany fields have none.
	Columns []*schema.Column

	Kind     RelationKind
	Relation *ClassMapping

	// ForeignKey implements the relation. When Inverse is set the key lives
	// in the related table and references the owner's primary key.
	ForeignKey *schema.ForeignKey
	Inverse    bool
	MappedBy   string

	Eager EagerMode

	// Index is the position of the field in its owner's declaration order.
	Index int
}

func (f *FieldMapping) String() string {
	if f.Owner == nil {
		return f.Name
	}
	return f.Owner.Name + "." + f.Name
}

// IsRelation reports whether the field references other entities.
func (f *FieldMapping) IsRelation() bool { return f.Kind != Basic }

// Repository is a read-only set of class mappings.
type Repository struct {
	classes map[string]*ClassMapping
	tables  map[string]*schema.Table
}

// NewRepository creates an empty repository. Add registers mappings while
// the repository is being built.
func NewRepository() *Repository {
	return &Repository{
		classes: make(map[string]*ClassMapping),
		tables:  make(map[string]*schema.Table),
	}
}

// Add registers a mapping and its table.
func (r *Repository) Add(m *ClassMapping) {
	r.classes[m.Name] = m
	if m.Table != nil {
		r.tables[m.Table.FullName()] = m.Table
	}
}

// Mapping returns the mapping for an entity name.
func (r *Repository) Mapping(name string) (*ClassMapping, bool) {
	m, ok := r.classes[name]
	return m, ok
}

// Mappings returns all mappings sorted by name.
func (r *Repository) Mappings() []*ClassMapping {
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*ClassMapping, len(names))
	for i, n := range names {
		out[i] = r.classes[n]
	}
	return out
}

// Tables returns the distinct tables, sorted by name.
func (r *Repository) Tables() []*schema.Table {
	names := make([]string, 0, len(r.tables))
	for n := range r.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*schema.Table, len(names))
	for i, n := range names {
		out[i] = r.tables[n]
	}
	return out
}

// table returns the named table, creating it when absent.
func (r *Repository) table(name string) *schema.Table {
	t := schema.NewTable(name)
	if existing, ok := r.tables[t.FullName()]; ok {
		return existing
	}
	r.tables[t.FullName()] = t
	return t
}
