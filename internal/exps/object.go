package exps

import (
	"fmt"
	"strings"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// Object is an entity instance loaded from a result row. Values holds
// basic fields by name; a to-one field holds the referenced object when it
// was fetched, otherwise its foreign key value; a to-many field holds a
// []*Object once fetched.
type Object struct {
	Mapping *mapping.ClassMapping
	ID      []any
	Values  map[string]any
}

// Get returns the value of field name.
func (o *Object) Get(name string) (any, bool) {
	v, ok := o.Values[name]
	return v, ok
}

// Set sets the value of field name.
func (o *Object) Set(name string, v any) {
	if o.Values == nil {
		o.Values = make(map[string]any)
	}
	o.Values[name] = v
}

// Key identifies the object within its inheritance hierarchy.
func (o *Object) Key() string {
	parts := make([]string, len(o.ID))
	for i, v := range o.ID {
		parts[i] = fmt.Sprint(v)
	}
	return rootOf(o.Mapping).Name + ":" + strings.Join(parts, ",")
}

// SameIdentity reports whether both objects are the same row of the same
// hierarchy.
func (o *Object) SameIdentity(other *Object) bool {
	if o == other {
		return true
	}
	if o == nil || other == nil || rootOf(o.Mapping) != rootOf(other.Mapping) || len(o.ID) != len(other.ID) {
		return false
	}
	for i := range o.ID {
		if !Equal(o.ID[i], other.ID[i]) {
			return false
		}
	}
	return true
}

func (o *Object) String() string { return o.Key() }

func rootOf(m *mapping.ClassMapping) *mapping.ClassMapping {
	for m != nil && m.Superclass != nil {
		m = m.Superclass
	}
	return m
}

// ClassIndicator is the result id of the column a polymorphic union selects
// to name the concrete mapping of each row.
type ClassIndicator struct{}

// selected reports whether id was projected by the select behind res.
// Results without a select fall back to a label lookup.
func selected(res sql.Result, id any) bool {
	if r, ok := res.(interface{ Select() *sql.Select }); ok && r.Select() != nil {
		return r.Select().IndexOf(id) >= 0
	}
	return res.Contains(id)
}

// LoadObject reads an instance of m, or of the concrete subclass the row
// names, from the current row of res. It returns nil when the primary key
// is null, as for an unmatched outer join.
func LoadObject(res sql.Result, m *mapping.ClassMapping, joins *sql.Joins) (*Object, error) {
	id := make([]any, len(m.PrimaryKey))
	null := true
	for i, col := range m.PrimaryKey {
		v, err := res.GetObjectAs(sql.At(col, joins), col.JavaType())
		if err != nil {
			return nil, err
		}
		id[i] = v
		null = null && v == nil
	}
	if null {
		return nil, nil
	}
	concrete, err := concreteMapping(res, m, joins)
	if err != nil {
		return nil, err
	}
	obj := &Object{Mapping: concrete, ID: id, Values: make(map[string]any)}
	for _, f := range concrete.AllFields() {
		if f.Inverse || len(f.Columns) == 0 {
			continue
		}
		if !selected(res, sql.At(f.Columns[0], joins)) {
			continue
		}
		if f.Kind == mapping.Basic && len(f.Columns) == 1 {
			v, err := res.GetObjectAs(sql.At(f.Columns[0], joins), f.Type)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
			obj.Values[f.Name] = v
			continue
		}
		fk := make([]any, len(f.Columns))
		for i, col := range f.Columns {
			v, err := res.GetObjectAs(sql.At(col, joins), col.JavaType())
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
			fk[i] = v
		}
		if len(fk) == 1 {
			obj.Values[f.Name] = fk[0]
		} else {
			obj.Values[f.Name] = fk
		}
	}
	if r, ok := res.(*sql.ResultSetResult); ok && joins.Path() == "" {
		r.SetBaseMapping(concrete)
	}
	return obj, nil
}

// concreteMapping resolves the mapping of the row: from the class
// indicator of a union, else from the discriminator, else m itself.
func concreteMapping(res sql.Result, m *mapping.ClassMapping, joins *sql.Joins) (*mapping.ClassMapping, error) {
	if joins.Path() == "" && selected(res, ClassIndicator{}) {
		v, err := res.GetObjectAs(ClassIndicator{}, schema.JavaString)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprint(v)
		var found *mapping.ClassMapping
		for _, cm := range m.ConcreteMappings() {
			if cm.Name == name {
				found = cm
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("row names %q, which is not a %s", name, m)
		}
		m = found
	}
	if m.Discriminator == nil || !selected(res, sql.At(m.Discriminator, joins)) {
		return m, nil
	}
	v, err := res.GetObjectAs(sql.At(m.Discriminator, joins), m.Discriminator.JavaType())
	if err != nil {
		return nil, err
	}
	for _, cm := range m.ConcreteMappings() {
		if cm.DiscriminatorValue != nil && Equal(cm.DiscriminatorValue, v) {
			return cm, nil
		}
	}
	return m, nil
}
