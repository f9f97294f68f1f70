package sql

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// PostgresDictionary is the dialect of PostgreSQL.
type PostgresDictionary struct {
	*BaseDictionary
}

// NewPostgresDictionary returns the PostgreSQL dialect.
func NewPostgresDictionary() *PostgresDictionary {
	d := NewBaseDictionary()
	d.Name = "postgres"
	d.BindType = sqlx.DOLLAR
	d.SchemaCase = CaseLower
	d.Booleans = BooleanNative
	d.ReservedWords["LIMIT"] = true
	d.ReservedWords["OFFSET"] = true
	return &PostgresDictionary{BaseDictionary: d}
}

func (d *PostgresDictionary) Identifier(name string) string {
	name = d.ConvertSchemaCase(name)
	if d.ReservedWords[strings.ToUpper(name)] {
		return pq.QuoteIdentifier(name)
	}
	return name
}

func (d *PostgresDictionary) TableName(t *schema.Table) string {
	if t.Schema() != "" {
		return d.Identifier(t.Schema()) + "." + d.Identifier(t.Name())
	}
	return d.Identifier(t.Name())
}

func (d *PostgresDictionary) ColumnName(c *schema.Column) string {
	return d.Identifier(c.Name())
}

// StringLiteral uses the driver's quoting, which switches to escape-string syntax for
// backslashes.
func (d *PostgresDictionary) StringLiteral(s string) string {
	return pq.QuoteLiteral(s)
}

// ToDataStoreValue wraps slices so the driver sends them as arrays.
func (d *PostgresDictionary) ToDataStoreValue(v any, col *schema.Column) any {
	switch s := v.(type) {
	case []string, []int64, []float64, []bool:
		return pq.Array(s)
	case []any:
		strs := make([]string, len(s))
		for i, e := range s {
			strs[i] = fmt.Sprint(e)
		}
		return pq.StringArray(strs)
	}
	return d.BaseDictionary.ToDataStoreValue(v, col)
}

// ReadValue parses array columns from their text form.
func (d *PostgresDictionary) ReadValue(raw any, t schema.JavaType, col *schema.Column) (any, error) {
	if raw != nil && (t == schema.JavaArray || t == schema.JavaSQLArray) {
		var arr pq.StringArray
		if err := arr.Scan(raw); err != nil {
			return nil, fmt.Errorf("reading array: %w", err)
		}
		out := make([]any, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out, nil
	}
	return d.BaseDictionary.ReadValue(raw, t, col)
}
