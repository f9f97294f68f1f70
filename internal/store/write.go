package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// Insert inserts one row into t. values is keyed by column name.
func (s *Store) Insert(ctx context.Context, t *schema.Table, values map[string]any) error {
	if len(values) == 0 {
		return fmt.Errorf("insert into %s: no values", t.FullName())
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]string, len(names))
	params := make([]string, len(names))
	args := make(map[string]any, len(names))
	for i, name := range names {
		col := t.Column(name)
		if col == nil {
			return fmt.Errorf("insert into %s: unknown column %q", t.FullName(), name)
		}
		cols[i] = s.dict.ColumnName(col)
		key := fmt.Sprintf("p%d", i)
		params[i] = ":" + key
		args[key] = s.dict.ToDataStoreValue(values[name], col)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dict.TableName(t), strings.Join(cols, ", "), strings.Join(params, ", "))
	if _, err := s.db.NamedExecContext(ctx, query, args); err != nil {
		return fmt.Errorf("insert into %s: %w", t.FullName(), err)
	}
	return nil
}

// InsertEntity inserts an instance of m. fields is keyed by field name;
// a to-one field takes the related primary key value. The discriminator is
// filled in from m.
func (s *Store) InsertEntity(ctx context.Context, m *mapping.ClassMapping, fields map[string]any) error {
	values := make(map[string]any, len(fields)+1)
	for name, v := range fields {
		f := m.Field(name)
		if f == nil {
			return fmt.Errorf("insert %s: unknown field %q", m.Name, name)
		}
		switch {
		case f.Kind == mapping.ToOne && !f.Inverse:
			keys, ok := v.([]any)
			if !ok {
				keys = []any{v}
			}
			if len(keys) != len(f.Columns) {
				return fmt.Errorf("insert %s: field %s needs %d key values", m.Name, name, len(f.Columns))
			}
			for i, c := range f.Columns {
				values[c.Name()] = keys[i]
			}
		case f.IsRelation():
			return fmt.Errorf("insert %s: field %s is not stored in %s", m.Name, name, m.Table.Name())
		default:
			values[f.Columns[0].Name()] = v
		}
	}
	if m.Discriminator != nil && m.DiscriminatorValue != nil {
		values[m.Discriminator.Name()] = m.DiscriminatorValue
	}
	return s.Insert(ctx, m.Table, values)
}
