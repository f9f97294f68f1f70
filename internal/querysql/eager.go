package querysql

import (
	"fmt"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// loader turns the rows of a statement into query rows, attaching eager
// relations. Owners repeated by to-many joins are folded into one row.
type loader struct {
	st     *Statement
	rows   []any
	owners map[string]*exps.Object
	// members dedups related objects per owner and field
	members map[string]map[string]bool
}

func newLoader(st *Statement) *loader {
	return &loader{
		st:      st,
		owners:  make(map[string]*exps.Object),
		members: make(map[string]map[string]bool),
	}
}

// row loads the current row of res.
func (l *loader) row(res sql.Result) error {
	v, err := l.st.Plan.Load(res)
	if err != nil {
		return err
	}
	obj, ok := v.(*exps.Object)
	if !ok || obj == nil || len(l.st.Eager) == 0 {
		l.rows = append(l.rows, v)
		return nil
	}
	key := obj.Key()
	owner, seen := l.owners[key]
	if !seen {
		owner = obj
		l.owners[key] = owner
		l.rows = append(l.rows, owner)
		for _, el := range l.st.Eager {
			if el.Field.Kind == mapping.ToMany {
				owner.Set(el.Field.Name, []*exps.Object{})
			}
		}
	}
	for _, el := range l.st.Eager {
		if el.Select != nil {
			continue
		}
		rel, err := exps.LoadObject(res, el.Field.Relation, el.Joins)
		if err != nil {
			return fmt.Errorf("load %s: %w", el.Field, err)
		}
		l.attach(owner, el.Field, rel)
	}
	return nil
}

// parallel reads the parallel eager results of res and attaches each
// related object to its owner.
func (l *loader) parallel(res sql.Result) error {
	for _, el := range l.st.Eager {
		if el.Select == nil {
			continue
		}
		er := res.Eager(el.Field.Name)
		if er == nil {
			return fmt.Errorf("no parallel result for %s", el.Field)
		}
		owner := l.st.Plan.Query.Candidate
		for {
			ok, err := er.Next()
			if err != nil {
				return fmt.Errorf("read %s row: %w", el.Field, err)
			}
			if !ok {
				break
			}
			id, err := ownerID(er, owner)
			if err != nil {
				return fmt.Errorf("load %s owner: %w", el.Field, err)
			}
			o, ok := l.owners[(&exps.Object{Mapping: owner, ID: id}).Key()]
			if !ok {
				// the owner fell outside the range of the owner statement
				continue
			}
			rel, err := exps.LoadObject(er, el.Field.Relation, el.Joins)
			if err != nil {
				return fmt.Errorf("load %s: %w", el.Field, err)
			}
			l.attach(o, el.Field, rel)
		}
	}
	return nil
}

func ownerID(res sql.Result, m *mapping.ClassMapping) ([]any, error) {
	id := make([]any, len(m.PrimaryKey))
	for i, col := range m.PrimaryKey {
		v, err := res.GetObjectAs(sql.At(col, nil), col.JavaType())
		if err != nil {
			return nil, err
		}
		id[i] = v
	}
	return id, nil
}

// attach sets rel as the value of f on owner. To-many values collect each
// related object once; a nil rel leaves a to-many value unchanged.
func (l *loader) attach(owner *exps.Object, f *mapping.FieldMapping, rel *exps.Object) {
	if f.Kind != mapping.ToMany {
		if rel == nil {
			owner.Set(f.Name, nil)
		} else {
			owner.Set(f.Name, rel)
		}
		return
	}
	if rel == nil {
		return
	}
	key := owner.Key() + "." + f.Name
	seen := l.members[key]
	if seen == nil {
		seen = make(map[string]bool)
		l.members[key] = seen
	}
	if seen[rel.Key()] {
		return
	}
	seen[rel.Key()] = true
	list, _ := owner.Values[f.Name].([]*exps.Object)
	owner.Set(f.Name, append(list, rel))
}
