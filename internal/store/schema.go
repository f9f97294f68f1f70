package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// SyncSchema creates the tables of every mapping in repo that do not exist
// yet. This function is idempotent.
func (s *Store) SyncSchema(ctx context.Context, repo *mapping.Repository) error {
	for _, t := range repo.Tables() {
		ddl := s.CreateTableSQL(t)
		s.logger.Debug("synchronizing table", "table", t.FullName())
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.FullName(), err)
		}
	}
	return nil
}

// CreateTableSQL renders the CREATE TABLE statement of t.
func (s *Store) CreateTableSQL(t *schema.Table) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(s.dict.TableName(t))
	b.WriteString(" (")
	for i, c := range t.Columns() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.dict.ColumnName(c))
		b.WriteString(" ")
		b.WriteString(columnType(c))
		if c.NotNull() {
			b.WriteString(" NOT NULL")
		}
	}
	if pk := t.PrimaryKey(); pk != nil {
		b.WriteString(", PRIMARY KEY (")
		b.WriteString(s.columnList(pk.Columns()))
		b.WriteString(")")
	}
	for _, fk := range t.ForeignKeys() {
		b.WriteString(", FOREIGN KEY (")
		b.WriteString(s.columnList(fk.Columns()))
		b.WriteString(") REFERENCES ")
		b.WriteString(s.dict.TableName(fk.PrimaryKeyTable()))
		b.WriteString(" (")
		b.WriteString(s.columnList(fk.PrimaryKeyColumns()))
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

func (s *Store) columnList(cols []*schema.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = s.dict.ColumnName(c)
	}
	return strings.Join(names, ", ")
}

func columnType(c *schema.Column) string {
	switch c.Type() {
	case schema.Varchar, schema.Char:
		size := c.Size()
		if size <= 0 {
			size = 255
		}
		return c.Type().String() + "(" + strconv.Itoa(size) + ")"
	case schema.Clob:
		return "TEXT"
	case schema.Blob, schema.Varbinary:
		return "BLOB"
	case schema.Array, schema.Other:
		return "TEXT"
	}
	return c.Type().String()
}
