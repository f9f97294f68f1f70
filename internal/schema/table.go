package schema

import (
	"fmt"
	"strings"
)

// Table is a database table. Built at mapping time, read-only afterwards.
type Table struct {
	name    string
	schema  string
	columns []*Column
	pk      *PrimaryKey
	fks     []*ForeignKey
}

// NewTable creates a table. name may be schema-qualified ("HR.EMPLOYEE").
func NewTable(name string) *Table {
	t := &Table{name: name}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		t.schema = name[:i]
		t.name = name[i+1:]
	}
	return t
}

// Name returns the unqualified table name.
func (t *Table) Name() string { return t.name }

// Schema returns the schema name, or "" when unqualified.
func (t *Table) Schema() string { return t.schema }

// FullName returns the schema-qualified name.
func (t *Table) FullName() string {
	if t.schema == "" {
		return t.name
	}
	return t.schema + "." + t.name
}

func (t *Table) String() string { return t.FullName() }

// ColumnOption customizes a column created by AddColumn.
type ColumnOption func(*Column)

// WithSize sets the declared column size.
func WithSize(size int) ColumnOption {
	return func(c *Column) { c.size = size }
}

// WithNotNull marks the column NOT NULL.
func WithNotNull() ColumnOption {
	return func(c *Column) { c.notNull = true }
}

// WithXML marks a CLOB column as holding XML, which is read as an object.
func WithXML() ColumnOption {
	return func(c *Column) { c.xml = true }
}

// AddColumn appends a column to the table and returns it. Adding a column
// whose name already exists returns the existing column.
func (t *Table) AddColumn(name string, sqlType SQLType, javaType JavaType, opts ...ColumnOption) *Column {
	if c := t.Column(name); c != nil {
		return c
	}
	c := &Column{
		name:     name,
		table:    t,
		sqlType:  sqlType,
		javaType: javaType,
		index:    len(t.columns),
	}
	for _, opt := range opts {
		opt(c)
	}
	t.columns = append(t.columns, c)
	return c
}

// Column returns the named column (case-insensitive), or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.columns {
		if strings.EqualFold(c.name, name) {
			return c
		}
	}
	return nil
}

// Columns returns the table columns in declaration order.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// SetPrimaryKey declares the primary key. All columns must belong to t.
func (t *Table) SetPrimaryKey(cols ...*Column) (*PrimaryKey, error) {
	for _, c := range cols {
		if c.table != t {
			return nil, fmt.Errorf("primary key column %s does not belong to table %s", c.QualifiedName(), t.FullName())
		}
	}
	t.pk = &PrimaryKey{table: t, columns: append([]*Column(nil), cols...)}
	return t.pk, nil
}

// PrimaryKey returns the primary key, or nil.
func (t *Table) PrimaryKey() *PrimaryKey { return t.pk }

// AddForeignKey declares a foreign key from cols (on t) to pkCols (on the
// referenced table). Column lists must have equal length.
func (t *Table) AddForeignKey(name string, cols []*Column, pkCols []*Column) (*ForeignKey, error) {
	if len(cols) == 0 || len(cols) != len(pkCols) {
		return nil, fmt.Errorf("foreign key %s: %d local columns vs %d referenced columns", name, len(cols), len(pkCols))
	}
	pkTable := pkCols[0].table
	for i := range cols {
		if cols[i].table != t {
			return nil, fmt.Errorf("foreign key %s: column %s does not belong to table %s", name, cols[i].QualifiedName(), t.FullName())
		}
		if pkCols[i].table != pkTable {
			return nil, fmt.Errorf("foreign key %s: referenced columns span several tables", name)
		}
	}
	fk := &ForeignKey{
		name:      name,
		table:     t,
		columns:   append([]*Column(nil), cols...),
		pkTable:   pkTable,
		pkColumns: append([]*Column(nil), pkCols...),
	}
	t.fks = append(t.fks, fk)
	return fk, nil
}

// ForeignKeys returns the table's foreign keys.
func (t *Table) ForeignKeys() []*ForeignKey {
	out := make([]*ForeignKey, len(t.fks))
	copy(out, t.fks)
	return out
}

// Column is a table column.
type Column struct {
	name     string
	table    *Table
	sqlType  SQLType
	javaType JavaType
	index    int
	size     int
	notNull  bool
	xml      bool
}

func (c *Column) Name() string       { return c.name }
func (c *Column) Table() *Table      { return c.table }
func (c *Column) Type() SQLType      { return c.sqlType }
func (c *Column) JavaType() JavaType { return c.javaType }
func (c *Column) Size() int          { return c.size }
func (c *Column) NotNull() bool      { return c.notNull }
func (c *Column) IsXML() bool        { return c.xml }

// Index is the 0-based position of the column within its table.
func (c *Column) Index() int { return c.index }

// IsClob reports whether the column is a non-XML CLOB and must be read as a
// string through the CLOB accessor.
func (c *Column) IsClob() bool { return c.sqlType == Clob && !c.xml }

// QualifiedName returns TABLE.COLUMN.
func (c *Column) QualifiedName() string {
	if c.table == nil {
		return c.name
	}
	return c.table.FullName() + "." + c.name
}

func (c *Column) String() string { return c.QualifiedName() }

// PrimaryKey is a table's primary key.
type PrimaryKey struct {
	table   *Table
	columns []*Column
}

func (pk *PrimaryKey) Table() *Table { return pk.table }

// Columns returns the key columns in order.
func (pk *PrimaryKey) Columns() []*Column {
	out := make([]*Column, len(pk.columns))
	copy(out, pk.columns)
	return out
}

// ForeignKey links columns of one table to the primary key columns of another.
type ForeignKey struct {
	name      string
	table     *Table
	columns   []*Column
	pkTable   *Table
	pkColumns []*Column
}

func (fk *ForeignKey) Name() string            { return fk.name }
func (fk *ForeignKey) Table() *Table           { return fk.table }
func (fk *ForeignKey) PrimaryKeyTable() *Table { return fk.pkTable }

// Columns returns the local columns.
func (fk *ForeignKey) Columns() []*Column {
	out := make([]*Column, len(fk.columns))
	copy(out, fk.columns)
	return out
}

// PrimaryKeyColumns returns the referenced columns, parallel to Columns.
func (fk *ForeignKey) PrimaryKeyColumns() []*Column {
	out := make([]*Column, len(fk.pkColumns))
	copy(out, fk.pkColumns)
	return out
}

// PrimaryKeyColumn returns the referenced column joined to local column c.
func (fk *ForeignKey) PrimaryKeyColumn(c *Column) *Column {
	for i, col := range fk.columns {
		if col == c {
			return fk.pkColumns[i]
		}
	}
	return nil
}

// ColumnFor returns the local column joined to referenced column pk.
func (fk *ForeignKey) ColumnFor(pk *Column) *Column {
	for i, col := range fk.pkColumns {
		if col == pk {
			return fk.columns[i]
		}
	}
	return nil
}

func (fk *ForeignKey) String() string {
	return fmt.Sprintf("%s(%s -> %s)", fk.name, fk.table.FullName(), fk.pkTable.FullName())
}
